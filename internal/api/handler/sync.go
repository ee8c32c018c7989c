package handler

import (
	"net/http"

	"github.com/usgovops/logicapp-allowlist-sync/internal/service"
	"github.com/usgovops/logicapp-allowlist-sync/internal/validation"
)

// SyncHandler triggers sync runs over HTTP.
type SyncHandler struct {
	syncService *service.SyncService
	defaults    service.Options
}

// NewSyncHandler creates a new SyncHandler. defaults come from configuration
// and are overridable per request.
func NewSyncHandler(syncService *service.SyncService, defaults service.Options) *SyncHandler {
	return &SyncHandler{syncService: syncService, defaults: defaults}
}

// SyncRequest is the optional POST /sync body.
type SyncRequest struct {
	ResourceID string `json:"resource_id,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
	DryRun     *bool  `json:"dry_run,omitempty"`
	SkipFetch  *bool  `json:"skip_fetch,omitempty"`
}

// Trigger runs a sync and returns its result.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	opts := h.defaults

	if r.ContentLength > 0 {
		var req SyncRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ResourceID != "" {
			opts.ResourceID = req.ResourceID
		}
		if req.APIVersion != "" {
			opts.APIVersion = req.APIVersion
		}
		if req.DryRun != nil {
			opts.DryRun = *req.DryRun
		}
		if req.SkipFetch != nil {
			opts.SkipFetch = *req.SkipFetch
		}
	}

	if errs := validation.ValidateResourceID(opts.ResourceID); errs.HasErrors() {
		respondJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	result, err := h.syncService.Run(r.Context(), opts)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
