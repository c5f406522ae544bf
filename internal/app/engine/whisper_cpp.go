// Package engine invokes the local whisper.cpp recognizer.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/elvisthlg/whisper-api/internal/app/transcribe"
)

// WhisperCpp runs the whisper-cli binary against a normalized WAV file.
type WhisperCpp struct {
	bin       string
	modelPath string
	logger    *zap.Logger
}

// NewWhisperCpp creates an engine bound to a binary and a model file.
func NewWhisperCpp(bin, modelPath string, logger *zap.Logger) *WhisperCpp {
	return &WhisperCpp{
		bin:       bin,
		modelPath: modelPath,
		logger:    logger,
	}
}

// Transcribe runs whisper-cli in JSON output mode inside a per-job temp
// directory and returns the trimmed transcription text. Non-zero exit,
// missing output, or a malformed document yields *transcribe.EngineError.
func (e *WhisperCpp) Transcribe(ctx context.Context, wavPath, language, prompt string) (string, error) {
	outDir, err := os.MkdirTemp("", "whisper-out-")
	if err != nil {
		return "", &transcribe.EngineError{Err: err}
	}
	defer os.RemoveAll(outDir)

	prefix := filepath.Join(outDir, "result")
	args := e.args(wavPath, language, prompt, prefix)

	cmd := exec.CommandContext(ctx, e.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debug("running whisper", zap.String("bin", e.bin), zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		return "", &transcribe.EngineError{
			Diag: toolDiagnostic(stderr.Bytes(), stdout.Bytes()),
			Err:  err,
		}
	}

	payload, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return "", &transcribe.EngineError{
			Diag: "engine did not create JSON output",
			Err:  err,
		}
	}

	return parseOutput(payload)
}

func (e *WhisperCpp) args(wavPath, language, prompt, outPrefix string) []string {
	args := []string{
		"-m", e.modelPath,
		"-f", wavPath,
		"-oj",
		"-of", outPrefix,
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	if prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	return args
}

// parseOutput extracts the transcription text from the engine's JSON
// document. The text field must be a string; anything else is an engine
// error, not an empty result.
func parseOutput(payload []byte) (string, error) {
	var doc struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return "", &transcribe.EngineError{
			Diag: "engine produced malformed JSON output",
			Err:  err,
		}
	}
	if doc.Text == nil {
		return "", &transcribe.EngineError{Diag: "JSON output missing transcription text"}
	}
	return strings.TrimSpace(*doc.Text), nil
}

func toolDiagnostic(stderr, stdout []byte) string {
	if s := strings.TrimSpace(string(stderr)); s != "" {
		return s
	}
	if s := strings.TrimSpace(string(stdout)); s != "" {
		return s
	}
	return "unknown tool error"
}
