package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/usgovops/logicapp-allowlist-sync/internal/api/handler"
	"github.com/usgovops/logicapp-allowlist-sync/internal/api/middleware"
	"github.com/usgovops/logicapp-allowlist-sync/internal/service"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	syncService *service.SyncService,
	syncDefaults service.Options,
	apiKey string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(apiKey))

		syncHandler := handler.NewSyncHandler(syncService, syncDefaults)
		r.Post("/sync", syncHandler.Trigger)

		runHandler := handler.NewRunHandler(store)
		r.Get("/runs", runHandler.List)
		r.Get("/runs/{id}", runHandler.Get)
	})

	return r
}
