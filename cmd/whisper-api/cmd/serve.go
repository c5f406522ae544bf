package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elvisthlg/whisper-api/internal/api/server"
	"github.com/elvisthlg/whisper-api/internal/app/audio"
	"github.com/elvisthlg/whisper-api/internal/app/engine"
	"github.com/elvisthlg/whisper-api/internal/app/logging"
	"github.com/elvisthlg/whisper-api/internal/app/metrics"
	"github.com/elvisthlg/whisper-api/internal/app/repository/sqlite"
	"github.com/elvisthlg/whisper-api/internal/app/transcribe"
	"github.com/elvisthlg/whisper-api/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the transcription API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.MustNewLogger(cfg.Development())
	defer logger.Sync()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	queue := transcribe.NewQueue(cfg.QueueCapacity)
	normalizer := audio.NewFFmpegNormalizer(cfg.FFmpegBin, logger)
	whisper := engine.NewWhisperCpp(cfg.WhisperBin, cfg.ModelPath, logger)

	worker := transcribe.NewWorker(queue, normalizer, whisper, store, m, logger)
	service := transcribe.NewService(queue, store, m, logger, cfg.WaitTimeout)

	srv := server.New(server.Config{
		Host:           cfg.HTTPHost,
		Port:           cfg.HTTPPort,
		APIToken:       cfg.APIToken,
		MaxUploadBytes: cfg.MaxUploadBytes,
		ReadTimeout:    2 * time.Minute,
		// Callers hold the connection open for the whole wait; give the
		// response some headroom past the transcription timeout.
		WriteTimeout: cfg.WaitTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
		Environment:  cfg.Environment,
	}, service, registry, logger)

	worker.Start()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
	}

	// Stop ingress first so no new jobs arrive, then drain the worker.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}

	// The in-flight engine run is allowed to finish; give it real time.
	workerCtx, cancelWorker := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelWorker()
	if err := worker.Stop(workerCtx); err != nil {
		logger.Warn("worker did not stop cleanly", zap.Error(err))
	}

	return nil
}
