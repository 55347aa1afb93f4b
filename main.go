package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/john/chatfunnel/internal/adapter"
	kickadapter "github.com/john/chatfunnel/internal/adapter/kick"
	rumbleadapter "github.com/john/chatfunnel/internal/adapter/rumble"
	tiktokadapter "github.com/john/chatfunnel/internal/adapter/tiktok"
	twitchadapter "github.com/john/chatfunnel/internal/adapter/twitch"
	youtubeadapter "github.com/john/chatfunnel/internal/adapter/youtube"
	"github.com/john/chatfunnel/internal/canonical"
	"github.com/john/chatfunnel/internal/capture"
	"github.com/john/chatfunnel/internal/config"
	"github.com/john/chatfunnel/internal/dispatch"
	"github.com/john/chatfunnel/internal/health"
	"github.com/john/chatfunnel/internal/rates"
	"github.com/john/chatfunnel/internal/recorder"
	"github.com/john/chatfunnel/internal/telemetry"
	"github.com/john/chatfunnel/internal/uploader"
)

func main() {
	// Get config path from environment variable or use default
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Dispatcher.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("chatfunnel starting", slog.String("config", configPath))

	telemetry.Init()

	// Setup context and signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Create output channels
	messageChan := make(chan canonical.Message, cfg.Recorder.BufferSize)
	subChan := make(chan canonical.SubscriptionEvent, cfg.Recorder.BufferSize)
	retractChan := make(chan string, cfg.Recorder.BufferSize)
	fileChan := make(chan string, 100)

	rec := recorder.New(
		cfg.Recorder.OutputDir,
		cfg.Recorder.BufferSize,
		cfg.Recorder.RotateMinutes,
		cfg.Recorder.RotateMegabytes,
		logger,
	)

	var rateCache *rates.Cache
	if cfg.Rates.URL != "" {
		rateCache = rates.New(cfg.Rates.URL, cfg.Rates.TTL(), logger)
	}

	// Build the platform adapter table
	registry := adapter.NewRegistry(
		twitchadapter.New(logger),
		youtubeadapter.New(logger, rateCache),
		kickadapter.New(logger),
		rumbleadapter.New(logger),
		tiktokadapter.New(logger, rec),
	)

	dispatcher := dispatch.New(registry, dispatch.Output{
		Messages:      messageChan,
		Subscriptions: subChan,
		Retractions:   retractChan,
	}, logger, cfg.Dispatcher.Verbose)

	captureServer := capture.New(cfg.Capture.ListenAddr, logger, dispatcher.OnRecord, dispatcher.OnEnvelope)

	// Create uploader with appropriate authentication method
	var uploaderInstance *uploader.Uploader
	if cfg.Uploader.Enabled {
		if cfg.S3.RoleARN != "" {
			logger.Info("using OIDC authentication", slog.String("role", cfg.S3.RoleARN))
			uploaderInstance, err = uploader.New(
				ctx,
				cfg.S3.Bucket,
				cfg.S3.Region,
				cfg.S3.RoleARN,
				cfg.Uploader.DeleteAfterUpload,
				cfg.Uploader.MaxRetries,
				logger,
			)
		} else {
			logger.Warn("using static AWS credentials (deprecated), migrate to OIDC")
			uploaderInstance, err = uploader.NewWithStaticCredentials(
				ctx,
				cfg.S3.Bucket,
				cfg.S3.Region,
				cfg.S3.AccessKeyID,
				cfg.S3.SecretAccessKey,
				cfg.Uploader.DeleteAfterUpload,
				cfg.Uploader.MaxRetries,
				logger,
			)
		}
		if err != nil {
			logger.Error("failed to create uploader", slog.Any("err", err))
			os.Exit(1)
		}

		// Scan for files left over from a previous run
		if err := uploaderInstance.ScanAndUploadExisting(ctx, cfg.Recorder.OutputDir); err != nil {
			logger.Warn("failed to scan for existing files", slog.Any("err", err))
		}
	}

	healthServer := health.New(cfg.Capture.HealthAddr, logger)

	// Start all components
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := captureServer.Start(); err != nil {
			logger.Error("capture server error", slog.Any("err", err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rec.Start(ctx, messageChan, subChan, retractChan, fileChan); err != nil && err != context.Canceled {
			logger.Error("recorder error", slog.Any("err", err))
		}
	}()

	if uploaderInstance != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := uploaderInstance.Start(ctx, fileChan); err != nil && err != context.Canceled {
				logger.Error("uploader error", slog.Any("err", err))
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := healthServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", slog.Any("err", err))
		}
	}()

	logger.Info("all components started")

	// Wait for shutdown signal
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := captureServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down capture server", slog.Any("err", err))
		}
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down health server", slog.Any("err", err))
		}

		// Cancel main context to stop other components
		cancel()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("all components stopped gracefully")
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded, forcing exit")
		}

		os.Exit(0)
	}()

	// Wait for shutdown
	wg.Wait()
	logger.Info("chatfunnel stopped")
}
