package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TargetKind identifies the hosting model of the target resource.
type TargetKind string

const (
	// KindStandard is an App-Service-backed Logic App (Microsoft.Web/sites).
	KindStandard TargetKind = "standard"
	// KindConsumption is a serverless workflow (Microsoft.Logic/workflows).
	KindConsumption TargetKind = "consumption"
)

// KindFromResourceID infers the target kind from the resource id shape.
// Anything that matches neither known provider segment is unsupported.
func KindFromResourceID(resourceID string) (TargetKind, error) {
	switch {
	case strings.Contains(resourceID, "/Microsoft.Web/sites/"):
		return KindStandard, nil
	case strings.Contains(resourceID, "/Microsoft.Logic/workflows/"):
		return KindConsumption, nil
	default:
		return "", ErrUnsupportedResourceType
	}
}

// Sync run statuses.
const (
	RunStatusUpdated   = "updated"
	RunStatusUnchanged = "unchanged"
	RunStatusDryRun    = "dry-run"
	RunStatusFailed    = "failed"
)

// SyncRun is the persisted record of one sync attempt.
type SyncRun struct {
	ID          string    `db:"id" json:"id"`
	ResourceID  string    `db:"resource_id" json:"resource_id"`
	Kind        string    `db:"kind" json:"kind"`
	Status      string    `db:"status" json:"status"`
	PrefixCount int       `db:"prefix_count" json:"prefix_count"`
	EntryCount  int       `db:"entry_count" json:"entry_count"`
	SourceURL   string    `db:"source_url" json:"source_url"`
	DryRun      bool      `db:"dry_run" json:"dry_run"`
	Error       string    `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SyncResult is what a completed (or dry) run reports back to its caller.
type SyncResult struct {
	RunID       string          `json:"run_id"`
	ResourceID  string          `json:"resource_id"`
	Kind        TargetKind      `json:"kind"`
	Status      string          `json:"status"`
	PrefixCount int             `json:"prefix_count"`
	EntryCount  int             `json:"entry_count"`
	SourceURL   string          `json:"source_url"`
	Warnings    []string        `json:"warnings,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"` // populated on dry runs
}
