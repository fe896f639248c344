package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/heimdex/watermark-eraser/internal/access"
	"github.com/heimdex/watermark-eraser/internal/api"
	"github.com/heimdex/watermark-eraser/internal/cloud"
	"github.com/heimdex/watermark-eraser/internal/config"
	"github.com/heimdex/watermark-eraser/internal/db"
	"github.com/heimdex/watermark-eraser/internal/logging"
	"github.com/heimdex/watermark-eraser/internal/processing"
	"github.com/heimdex/watermark-eraser/internal/transfer"
	"github.com/heimdex/watermark-eraser/internal/ui"
)

const apiTokenKey = "api_token"

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

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting watermark eraser agent", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.AgentDBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	settings := db.NewSettings(database.Conn())
	apiToken, err := ensureAPIToken(settings)
	if err != nil {
		return fmt.Errorf("failed to ensure API token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║              WATERMARK ERASER AGENT v%-20s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", apiToken)
	fmt.Printf("║  Media URL:  %-45s ║\n", cfg.RemoteURL())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := access.NewGate(cfg.AccessSecret())
	client := cloud.NewHTTPClient(cfg.RemoteURL(), cfg.OwnerID(), logging.WithComponent(logger, "cloud"))

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	if err := client.Health(healthCtx); err != nil {
		logger.Warn("media service not reachable yet", "url", cfg.RemoteURL(), "error", err)
	}
	healthCancel()

	uploads := transfer.NewManager(transfer.Config{
		Remote: client,
		Gate:   gate,
		Logger: logging.WithComponent(logger, "transfer"),
		Observer: func(s transfer.Status) {
			logger.Debug("upload progress",
				"session_id", s.SessionID,
				"state", s.State,
				"progress_percent", s.ProgressPercent,
			)
		},
	})

	processor := processing.NewRunner(client, gate, processing.DelayCompleter{Delay: cfg.ProcessingDelay()}, logger)

	apiServer := api.NewAgentServer(api.AgentConfig{
		Port:        cfg.Port(),
		Token:       apiToken,
		Gate:        gate,
		Uploads:     uploads,
		Remote:      client,
		Processor:   processor,
		Logger:      logger,
		StartTime:   startTime,
		Version:     config.Version,
		ShareURL:    cfg.ShareURL(),
		BaseContext: ctx,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	quit := sync.OnceFunc(func() { close(quitCh) })

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Uploads: uploads,
			Access:  gate,
			Logger:  logger,
			OnQuit:  quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	uploads.Cancel()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	processor.Wait()

	logger.Info("shutdown complete")
	return nil
}

func ensureAPIToken(settings *db.Settings) (string, error) {
	ctx := context.Background()

	existing, err := settings.Get(ctx, apiTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := settings.Set(ctx, apiTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
