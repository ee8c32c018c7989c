// Command server runs the allowlist sync as a long-lived service: periodic
// syncs plus an HTTP API for on-demand triggering and run inspection.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/usgovops/logicapp-allowlist-sync/internal/api"
	"github.com/usgovops/logicapp-allowlist-sync/internal/azure"
	"github.com/usgovops/logicapp-allowlist-sync/internal/config"
	"github.com/usgovops/logicapp-allowlist-sync/internal/service"
	"github.com/usgovops/logicapp-allowlist-sync/internal/source"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage/memory"
	sqlstore "github.com/usgovops/logicapp-allowlist-sync/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.DSN == "" {
		log.Printf("No database configured, run history is in-memory only")
		store = memory.New()
	} else {
		if cfg.Database.Driver == "sqlite3" {
			if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					log.Fatalf("Failed to create data directory: %v", err)
				}
			}
		}
		store, err = sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			log.Fatalf("Failed to initialize storage: %v", err)
		}
	}
	defer store.Close()

	// Initialize the ARM client (or file shim for testing)
	var client azure.ResourceClient
	if cfg.UseFileShim() {
		log.Printf("Using file shim for ARM API: %s", cfg.Azure.FileShim)
		client = azure.NewFileShim(cfg.Azure.FileShim)
	} else {
		subscription, err := azure.SubscriptionFromResourceID(cfg.Sync.ResourceID)
		if err != nil {
			log.Fatalf("Failed to parse subscription from resource id: %v", err)
		}
		client, err = azure.New(subscription, cfg.Azure.Environment)
		if err != nil {
			log.Fatalf("Failed to initialize Azure client: %v", err)
		}
	}

	// Initialize sync service
	syncService := service.NewSyncService(store, client, source.New(cfg.Source.URLs), cfg.Sync.VerifyDelay)
	syncDefaults := service.Options{
		ResourceID:      cfg.Sync.ResourceID,
		APIVersion:      cfg.Sync.APIVersion,
		IncludeContents: cfg.Sync.IncludeContents(),
		DryRun:          cfg.Sync.DryRun,
		SkipFetch:       cfg.Sync.SkipFetchExisting,
	}

	// Create router
	router := api.NewRouter(store, syncService, syncDefaults, cfg.Server.APIKey)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // sync runs include a verification wait
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic sync
	if cfg.Sync.Interval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Sync.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if _, err := syncService.Run(ctx, syncDefaults); err != nil {
						log.Printf("Scheduled sync failed: %v", err)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
		log.Printf("Scheduled sync every %s", cfg.Sync.Interval)
	}

	log.Printf("Starting allowlist sync server on http://%s", cfg.Server.Addr())

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
