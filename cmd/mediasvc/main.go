package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heimdex/watermark-eraser/internal/access"
	"github.com/heimdex/watermark-eraser/internal/api"
	"github.com/heimdex/watermark-eraser/internal/config"
	"github.com/heimdex/watermark-eraser/internal/db"
	"github.com/heimdex/watermark-eraser/internal/logging"
	"github.com/heimdex/watermark-eraser/internal/media"
	"github.com/heimdex/watermark-eraser/internal/playback"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.AccessSecret() == "" {
		return errors.New(config.EnvAccessSecret + " must be set for the media service")
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting media service",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"storage", cfg.Storage(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newChunkStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	svc := media.NewService(
		media.NewRepository(database.Conn()),
		store,
		access.NewVerifier(cfg.AccessSecret()),
		logging.WithComponent(logger, "media"),
	)

	server := api.NewMediaServer(api.MediaConfig{
		Port:      cfg.MediaPort(),
		Service:   svc,
		Playback:  playback.NewServer(logger),
		Logger:    logger,
		StartTime: startTime,
		Version:   config.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newChunkStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (media.ChunkStore, error) {
	switch cfg.Storage() {
	case config.StorageS3:
		client, err := media.NewS3Client(ctx, media.S3Options{
			Region:   cfg.S3Region(),
			Endpoint: cfg.S3Endpoint(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		logger.Info("storing chunks in S3", "bucket", cfg.S3Bucket(), "prefix", cfg.S3Prefix())
		return media.NewS3ChunkStore(client, cfg.S3Bucket(), cfg.S3Prefix()), nil
	default:
		store, err := media.NewFSChunkStore(cfg.ChunkDir())
		if err != nil {
			return nil, fmt.Errorf("failed to create chunk store: %w", err)
		}
		logger.Info("storing chunks on disk", "dir", logging.SanitizePath(cfg.ChunkDir()))
		return store, nil
	}
}
