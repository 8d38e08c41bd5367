package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/drivehit/gallery-sync/internal/adapter/gemini"
	"github.com/drivehit/gallery-sync/internal/adapter/localstore"
	"github.com/drivehit/gallery-sync/internal/adapter/sqlite"
	"github.com/drivehit/gallery-sync/internal/config"
	"github.com/drivehit/gallery-sync/internal/logger"
	"github.com/drivehit/gallery-sync/internal/port"
	"github.com/drivehit/gallery-sync/internal/service/catalog"
	"github.com/drivehit/gallery-sync/internal/service/dispatcher"
	"github.com/drivehit/gallery-sync/internal/service/enrichment"
	"github.com/drivehit/gallery-sync/internal/service/maintenance"
	"github.com/drivehit/gallery-sync/internal/service/reconciler"
	"github.com/drivehit/gallery-sync/internal/service/server"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting gallery-sync",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Open content store
	store, err := localstore.New(cfg.Store.RootDir, localstore.Layout{
		Intake:     cfg.Store.IntakeFolder,
		Categories: cfg.Store.CategoriesFolder,
		Archive:    cfg.Store.ArchiveFolder,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to open content store", zap.Error(err))
	}

	// Open metadata index
	db, err := sqlite.Open(cfg.Database.Path, sqlite.Options{
		BusyTimeoutMs: cfg.Database.BusyTimeoutMs,
		CacheSize:     cfg.Database.CacheSize,
		CacheTTL:      cfg.Database.GetCacheTTL(),
		LockWait:      cfg.Database.GetLockWait(),
	})
	if err != nil {
		zapLogger.Fatal("failed to open database", zap.Error(err), zap.String("path", cfg.Database.Path))
	}
	defer db.Close()

	// Create caption provider
	var provider port.CaptionProvider
	if cfg.Enrichment.APIKey != "" {
		provider = gemini.New(cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey, cfg.Enrichment.Model, cfg.Enrichment.GetRequestTimeout())
	} else {
		zapLogger.Warn("no enrichment API key configured, captions will use the fallback")
	}

	enricher := enrichment.New(&enrichment.Config{
		MaxRetries:     cfg.Enrichment.MaxRetries,
		InitialBackoff: cfg.Enrichment.GetInitialBackoff(),
		CallInterval:   cfg.Enrichment.GetCallInterval(),
	}, provider, zapLogger)

	// Create webhook dispatcher
	dispatcherCfg := &dispatcher.Config{
		FlushInterval: cfg.Webhook.GetFlushInterval(),
		MaxBatch:      cfg.Webhook.MaxBatch,
		MaxRetries:    cfg.Webhook.MaxRetries,
		Secret:        cfg.Webhook.SigningSecret,
	}
	var sender port.WebhookSender
	if cfg.Webhook.Endpoint != "" {
		sender = dispatcher.NewHTTPSender(cfg.Webhook.Endpoint, 10*time.Second)
	} else {
		zapLogger.Warn("no webhook endpoint configured, change notifications will be discarded")
		sender = dispatcher.NopSender{}
	}
	dispatcherService := dispatcher.New(dispatcherCfg, sender, db.DeadLetters(), zapLogger)

	// Create reconciler
	reconcilerCfg := &reconciler.Config{
		ScanInterval: cfg.Sync.GetScanInterval(),
		LockWait:     cfg.Sync.GetLockWait(),
		Intake:       cfg.Store.IntakeFolder,
		Categories:   cfg.Store.CategoriesFolder,
		Archive:      cfg.Store.ArchiveFolder,
	}
	reconcilerService := reconciler.New(reconcilerCfg, store, db.Items(), enricher, dispatcherService, zapLogger)

	// Create catalog
	catalogService := catalog.New(db.Items(), db.Engagement(), db.DeadLetters(), store, dispatcherService, zapLogger)

	// Create maintenance service
	maintenanceCfg := &maintenance.Config{
		CleanupInterval:  time.Hour,
		DeadLetterMaxAge: time.Duration(cfg.Sync.RetentionDays) * 24 * time.Hour,
	}
	maintenanceService := maintenance.New(maintenanceCfg, db.DeadLetters(), zapLogger)

	// Create HTTP server
	serverCfg := &server.Config{
		BindAddr:        cfg.HTTP.BindAddr,
		Secret:          cfg.API.SigningSecret,
		AdminEmails:     cfg.API.AdminIdentities,
		Freshness:       cfg.API.GetFreshnessWindow(),
		RateMax:         cfg.API.RateLimitMax,
		RateWindow:      cfg.API.GetRateLimitWindow(),
		PageSizeDefault: cfg.API.PageSizeDefault,
		PageSizeMax:     cfg.API.PageSizeMax,
		ReadTimeout:     cfg.HTTP.GetReadTimeout(),
		WriteTimeout:    cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:     cfg.HTTP.GetIdleTimeout(),
	}
	httpServer := server.New(serverCfg, catalogService, reconcilerService, db, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Start reconciler
	go func() {
		if err := reconcilerService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("reconciler stopped with error", zap.Error(err))
		}
	}()

	// Start dispatcher
	go func() {
		if err := dispatcherService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("dispatcher stopped with error", zap.Error(err))
		}
	}()

	// Start maintenance service
	go func() {
		if err := maintenanceService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("store_root", cfg.Store.RootDir),
	)
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")

	// Cancel context to stop background services
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop background services
	reconcilerService.Stop()
	dispatcherService.Stop()
	maintenanceService.Stop()

	// Stop HTTP server
	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	zapLogger.Info("application stopped successfully")
}
