// Command sync performs one allowlist sync run and exits. It is the entry
// point for nightly pipelines; flags override the environment configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/usgovops/logicapp-allowlist-sync/internal/azure"
	"github.com/usgovops/logicapp-allowlist-sync/internal/config"
	"github.com/usgovops/logicapp-allowlist-sync/internal/service"
	"github.com/usgovops/logicapp-allowlist-sync/internal/source"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage/memory"
	sqlstore "github.com/usgovops/logicapp-allowlist-sync/internal/storage/sql"
	"github.com/usgovops/logicapp-allowlist-sync/internal/validation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override the environment
	var sourceURLs string
	flag.StringVar(&cfg.Sync.ResourceID, "resource-id", cfg.Sync.ResourceID, "target resource id")
	flag.StringVar(&cfg.Sync.APIVersion, "api-version", cfg.Sync.APIVersion, "API version override")
	flag.StringVar(&cfg.Sync.Target, "target", cfg.Sync.Target, "legacy target selector: Trigger, Content, or Both")
	flag.StringVar(&cfg.Sync.IncludeContentAccess, "include-content-access", cfg.Sync.IncludeContentAccess, "manage content access (true/false; overrides -target)")
	flag.BoolVar(&cfg.Sync.DryRun, "dry-run", cfg.Sync.DryRun, "compute and print the replacement body without writing")
	flag.BoolVar(&cfg.Sync.SkipFetchExisting, "skip-fetch", cfg.Sync.SkipFetchExisting, "skip reading the existing resource, assume an empty baseline")
	flag.StringVar(&sourceURLs, "source-url", "", "comma-separated prefix document URL candidates")
	flag.Parse()

	if sourceURLs != "" {
		cfg.Source.URLs = strings.Split(sourceURLs, ",")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if errs := validation.ValidateResourceID(cfg.Sync.ResourceID); errs.HasErrors() {
		log.Fatalf("Invalid resource id: %v", errs)
	}

	// Initialize storage (in-memory unless a database is configured)
	store, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize the ARM client (or file shim for offline runs)
	client, err := newResourceClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Azure client: %v", err)
	}

	syncService := service.NewSyncService(store, client, source.New(cfg.Source.URLs), cfg.Sync.VerifyDelay)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := syncService.Run(ctx, service.Options{
		ResourceID:      cfg.Sync.ResourceID,
		APIVersion:      cfg.Sync.APIVersion,
		IncludeContents: cfg.Sync.IncludeContents(),
		DryRun:          cfg.Sync.DryRun,
		SkipFetch:       cfg.Sync.SkipFetchExisting,
	})
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	if len(result.Body) > 0 {
		fmt.Println(string(result.Body))
	}
	log.Printf("Sync %s: %d prefixes, %d entries on %s (run %s)",
		result.Status, result.PrefixCount, result.EntryCount, result.ResourceID, result.RunID)
}

// newStore selects the run-history store. One-shot runs default to in-memory.
func newStore(cfg *config.Config) (storage.Storage, error) {
	if cfg.Database.DSN == "" {
		return memory.New(), nil
	}
	if cfg.Database.Driver == "sqlite3" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
	}
	return sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
}

// newResourceClient builds the real ARM client or the file shim.
func newResourceClient(cfg *config.Config) (azure.ResourceClient, error) {
	if cfg.UseFileShim() {
		log.Printf("Using file shim for ARM API: %s", cfg.Azure.FileShim)
		return azure.NewFileShim(cfg.Azure.FileShim), nil
	}
	subscription, err := azure.SubscriptionFromResourceID(cfg.Sync.ResourceID)
	if err != nil {
		return nil, err
	}
	return azure.New(subscription, cfg.Azure.Environment)
}
