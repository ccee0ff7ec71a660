package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipforge/clipforge-server/internal/api"
	"github.com/clipforge/clipforge-server/internal/config"
	"github.com/clipforge/clipforge-server/internal/db"
	"github.com/clipforge/clipforge-server/internal/ffmpeg"
	"github.com/clipforge/clipforge-server/internal/giphy"
	"github.com/clipforge/clipforge-server/internal/logging"
	"github.com/clipforge/clipforge-server/internal/playback"
	"github.com/clipforge/clipforge-server/internal/session"
	"github.com/clipforge/clipforge-server/internal/transcribe"
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

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.SessionsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create sessions dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipforge server",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	caps := ffmpeg.CheckTools(cfg.FFmpegBinary(), cfg.FFprobeBinary())
	if !caps.HasFFmpeg {
		logger.Warn("ffmpeg not found on PATH, editing operations will fail", "binary", cfg.FFmpegBinary())
	}
	if !caps.HasFFprobe {
		logger.Warn("ffprobe not found on PATH, media metadata will be empty", "binary", cfg.FFprobeBinary())
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	var gifClient giphy.Client
	if cfg.GiphyAPIKey() != "" {
		gifClient = giphy.NewHTTPClient(cfg.GiphyBaseURL(), cfg.GiphyAPIKey(), logger)
		logger.Info("gif provider enabled")
	} else {
		gifClient = giphy.NewStubClient(logger)
	}

	var transcriber transcribe.Client
	if cfg.TranscribeAPIKey() != "" {
		poll := transcribe.PollPolicy{
			Interval: cfg.PollInterval(),
			Attempts: cfg.PollAttempts(),
		}
		transcriber = transcribe.NewHTTPClient(cfg.TranscribeBaseURL(), cfg.TranscribeAPIKey(), poll, logger)
		logger.Info("transcription provider enabled")
	} else {
		transcriber = transcribe.NewStubClient(logger)
	}

	manager := session.NewManager(session.ManagerConfig{
		Root:          cfg.SessionsDir(),
		TTL:           cfg.SessionTTL(),
		SweepInterval: cfg.SweepInterval(),
		Repository:    repo,
		Invoker:       ffmpeg.NewCLI(cfg.FFmpegBinary(), logger),
		Prober:        ffmpeg.NewProber(cfg.FFprobeBinary(), logger),
		GIFClient:     gifClient,
		Transcriber:   transcriber,
		Logger:        logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Restore(ctx); err != nil {
		logger.Warn("session restore failed, starting empty", "error", err)
	}
	manager.StartSweeper(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:         cfg.Port(),
		Manager:      manager,
		Playback:     playback.NewServer(logger),
		Capabilities: caps,
		Version:      config.Version,
		StartTime:    startTime,
		Logger:       logger,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()
	logger.Info("ready", "addr", apiServer.Addr(), "sessions", manager.Count())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
