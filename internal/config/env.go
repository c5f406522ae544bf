// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the validated service configuration. The transcription core
// receives these values already checked; it never reads the environment.
type Config struct {
	Environment string
	HTTPHost    string
	HTTPPort    string

	APIToken string

	FFmpegBin  string
	WhisperBin string
	ModelPath  string

	WaitTimeout    time.Duration
	QueueCapacity  int
	MaxUploadBytes int64
	DBPath         string
}

// Load reads an optional .env file, then parses and validates the
// environment. Missing required values fail fast at startup.
func Load() (*Config, error) {
	loadDotEnv()
	return FromEnv()
}

// loadDotEnv loads the first .env file found near the working directory.
// Absence is fine; the environment may be set system-wide.
func loadDotEnv() {
	envPaths := []string{".env", ".env.local", "../.env"}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			godotenv.Load(envPath)
			return
		}
	}
}

// FromEnv parses configuration from environment variables with defaults.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPHost:    getenv("HTTP_HOST", ""),
		HTTPPort:    getenv("HTTP_PORT", "8080"),
		APIToken:    strings.TrimSpace(os.Getenv("API_TOKEN")),
		FFmpegBin:   getenv("FFMPEG_BIN", "ffmpeg"),
		WhisperBin:  getenv("WHISPER_CPP_BIN", "whisper-cli"),
		ModelPath:   getenv("WHISPER_MODEL_PATH", "models/ggml-base.en.bin"),
		DBPath:      getenv("DB_PATH", "data/whisper-api.db"),
	}

	timeoutSec, err := getenvInt("TRANSCRIBE_TIMEOUT_SECONDS", 600)
	if err != nil {
		return nil, err
	}
	cfg.WaitTimeout = time.Duration(timeoutSec) * time.Second

	cfg.QueueCapacity, err = getenvInt("QUEUE_CAPACITY", 64)
	if err != nil {
		return nil, err
	}

	cfg.MaxUploadBytes, err = getenvInt64("MAX_UPLOAD_BYTES", 100<<20)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the startup contract.
func (c *Config) Validate() error {
	if c.APIToken == "" {
		return fmt.Errorf("API_TOKEN environment variable is required")
	}
	if c.WaitTimeout <= 0 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT_SECONDS must be positive")
	}
	if c.QueueCapacity < 1 {
		return fmt.Errorf("QUEUE_CAPACITY must be at least 1")
	}
	if c.MaxUploadBytes < 1 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Environment != "development" && c.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Environment)
	}
	return nil
}

// Development reports whether the service runs in development mode.
func (c *Config) Development() bool {
	return c.Environment == "development"
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvInt64(key string, def int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
