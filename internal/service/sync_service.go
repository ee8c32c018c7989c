package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/usgovops/logicapp-allowlist-sync/internal/azure"
	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
	"github.com/usgovops/logicapp-allowlist-sync/internal/prefix"
	"github.com/usgovops/logicapp-allowlist-sync/internal/reconcile"
	"github.com/usgovops/logicapp-allowlist-sync/internal/source"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage"
)

// API version used for Standard (App Service) site config when no override
// is given.
const standardAPIVersion = "2022-03-01"

// Known-good workflow API versions, tried in order after any user override.
var consumptionAPIVersions = []string{"2019-05-01", "2016-06-01"}

// Options configures one sync run.
type Options struct {
	ResourceID      string
	APIVersion      string
	IncludeContents bool
	DryRun          bool
	SkipFetch       bool
}

// SyncService orchestrates a run: fetch prefixes, reconcile against the
// existing resource, write, verify. Two concurrent runs against the same
// resource race last-write-wins; the resource APIs are full-replace and offer
// no optimistic-concurrency token.
type SyncService struct {
	store       storage.Storage
	client      azure.ResourceClient
	fetcher     source.Fetcher
	verifyDelay time.Duration
}

// NewSyncService creates a new SyncService.
func NewSyncService(store storage.Storage, client azure.ResourceClient, fetcher source.Fetcher, verifyDelay time.Duration) *SyncService {
	return &SyncService{
		store:       store,
		client:      client,
		fetcher:     fetcher,
		verifyDelay: verifyDelay,
	}
}

// Run performs one sync and records it in the run history. The returned
// result is populated as far as the run got, including on failure.
func (s *SyncService) Run(ctx context.Context, opts Options) (*domain.SyncResult, error) {
	result, err := s.run(ctx, opts)
	s.record(ctx, opts, result, err)
	return result, err
}

func (s *SyncService) run(ctx context.Context, opts Options) (*domain.SyncResult, error) {
	result := &domain.SyncResult{ResourceID: opts.ResourceID}

	if opts.ResourceID == "" {
		return result, fmt.Errorf("%w: resource id is required", domain.ErrInvalidArgument)
	}
	kind, err := domain.KindFromResourceID(opts.ResourceID)
	if err != nil {
		return result, fmt.Errorf("%w: %s", err, opts.ResourceID)
	}
	result.Kind = kind

	fetched, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return result, err
	}
	result.SourceURL = fetched.URL

	prefixes, strategy, err := prefix.Extract(fetched.Document, fetched.Raw)
	if err != nil {
		return result, err
	}
	result.PrefixCount = len(prefixes)
	log.Printf("Extracted %d prefixes (%s) from %s", len(prefixes), strategy, fetched.URL)

	switch kind {
	case domain.KindStandard:
		err = s.syncStandard(ctx, opts, prefixes, result)
	case domain.KindConsumption:
		err = s.syncConsumption(ctx, opts, prefixes, result)
	}
	return result, err
}

// syncStandard merges the prefix set into the site's ipSecurityRestrictions.
func (s *SyncService) syncStandard(ctx context.Context, opts Options, prefixes domain.PrefixSet, result *domain.SyncResult) error {
	apiVersion := opts.APIVersion
	if apiVersion == "" {
		apiVersion = standardAPIVersion
	}
	configID := opts.ResourceID + "/config/web"

	var existing []domain.IPSecurityRestriction
	if !opts.SkipFetch {
		raw, err := s.client.Get(ctx, configID, apiVersion)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrResourceRetrieval, configID, err)
		}
		existing, err = parseSiteRestrictions(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrResourceRetrieval, configID, err)
		}
	}

	merged := reconcile.MergeRestrictions(existing, prefixes, result.SourceURL)
	result.EntryCount = len(merged)

	body, err := json.Marshal(domain.SiteConfig{
		Properties: domain.SiteConfigProperties{IPSecurityRestrictions: merged},
	})
	if err != nil {
		return err
	}

	if opts.DryRun {
		return s.emitDryRun(result, body)
	}

	if _, err := s.client.CreateOrUpdate(ctx, configID, apiVersion, body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWriteFailed, err)
	}

	s.verifyStandard(ctx, configID, apiVersion, len(merged), result)
	result.Status = domain.RunStatusUpdated
	return nil
}

// verifyStandard re-reads the site config and reports the resulting entry
// count. Failures here are warnings only; the write already succeeded.
func (s *SyncService) verifyStandard(ctx context.Context, configID, apiVersion string, want int, result *domain.SyncResult) {
	raw, err := s.client.Get(ctx, configID, apiVersion)
	if err != nil {
		s.warn(result, fmt.Sprintf("verification read failed: %v", err))
		return
	}
	restrictions, err := parseSiteRestrictions(raw)
	if err != nil {
		s.warn(result, fmt.Sprintf("verification parse failed: %v", err))
		return
	}
	result.EntryCount = len(restrictions)
	if len(restrictions) != want {
		s.warn(result, fmt.Sprintf("verification count mismatch: wrote %d entries, read back %d", want, len(restrictions)))
	}
}

// syncConsumption reconciles a workflow's accessControl block.
func (s *SyncService) syncConsumption(ctx context.Context, opts Options, prefixes domain.PrefixSet, result *domain.SyncResult) error {
	versions := consumptionVersions(opts.APIVersion)

	apiVersion := versions[0]
	var existing *domain.WorkflowResource
	if !opts.SkipFetch {
		var lastErr error
		found := false
		for _, v := range versions {
			raw, err := s.client.Get(ctx, opts.ResourceID, v)
			if err != nil {
				lastErr = err
				continue
			}
			wf, err := parseWorkflow(raw)
			if err != nil {
				lastErr = err
				continue
			}
			existing, apiVersion, found = wf, v, true
			break
		}
		if !found {
			return fmt.Errorf("%w: %s: %v", domain.ErrResourceRetrieval, opts.ResourceID, lastErr)
		}
	}

	desired := reconcile.DesiredAccessControl(prefixes, opts.IncludeContents)

	// The idempotence check only applies when an existing resource was
	// actually fetched. Skip-fetch and dry runs always produce a body.
	if !opts.SkipFetch && !opts.DryRun {
		if !reconcile.NeedsUpdate(existing.Properties.AccessControl, prefixes, opts.IncludeContents) {
			result.Status = domain.RunStatusUnchanged
			result.EntryCount = len(existing.Properties.AccessControl.Triggers.Addresses())
			log.Printf("Access control already matches %d prefixes, nothing to do", len(prefixes))
			return nil
		}
	}

	body, err := json.Marshal(reconcile.BuildWorkflowBody(existing, desired))
	if err != nil {
		return err
	}
	result.EntryCount = len(prefixes)

	if opts.DryRun {
		return s.emitDryRun(result, body)
	}

	if _, err := s.client.CreateOrUpdate(ctx, opts.ResourceID, apiVersion, body); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWriteFailed, err)
	}

	// Give the write a moment to settle before the verification read.
	if s.verifyDelay > 0 {
		select {
		case <-time.After(s.verifyDelay):
		case <-ctx.Done():
			s.warn(result, fmt.Sprintf("verification skipped: %v", ctx.Err()))
			result.Status = domain.RunStatusUpdated
			return nil
		}
	}

	s.verifyConsumption(ctx, opts.ResourceID, apiVersion, len(prefixes), result)
	result.Status = domain.RunStatusUpdated
	return nil
}

// verifyConsumption re-reads the workflow and compares trigger caller counts
// against the requested prefix count. Mismatches are warnings only.
func (s *SyncService) verifyConsumption(ctx context.Context, resourceID, apiVersion string, want int, result *domain.SyncResult) {
	raw, err := s.client.Get(ctx, resourceID, apiVersion)
	if err != nil {
		s.warn(result, fmt.Sprintf("verification read failed: %v", err))
		return
	}
	wf, err := parseWorkflow(raw)
	if err != nil {
		s.warn(result, fmt.Sprintf("verification parse failed: %v", err))
		return
	}
	got := 0
	if wf.Properties.AccessControl != nil {
		got = len(wf.Properties.AccessControl.Triggers.Addresses())
	}
	result.EntryCount = got
	if got != want {
		s.warn(result, fmt.Sprintf("verification count mismatch: requested %d caller ranges, read back %d", want, got))
	}
}

// emitDryRun attaches the indented replacement body to the result.
func (s *SyncService) emitDryRun(result *domain.SyncResult, body []byte) error {
	var pretty json.RawMessage
	indented, err := indentJSON(body)
	if err != nil {
		pretty = body
	} else {
		pretty = indented
	}
	result.Body = pretty
	result.Status = domain.RunStatusDryRun
	return nil
}

func (s *SyncService) warn(result *domain.SyncResult, msg string) {
	log.Printf("Warning: %s", msg)
	result.Warnings = append(result.Warnings, msg)
}

// record persists the run outcome. Storage failures are warnings; the sync
// itself already finished.
func (s *SyncService) record(ctx context.Context, opts Options, result *domain.SyncResult, runErr error) {
	run := &domain.SyncRun{
		ID:          uuid.New().String(),
		ResourceID:  opts.ResourceID,
		Kind:        string(result.Kind),
		Status:      result.Status,
		PrefixCount: result.PrefixCount,
		EntryCount:  result.EntryCount,
		SourceURL:   result.SourceURL,
		DryRun:      opts.DryRun,
		CreatedAt:   time.Now(),
	}
	if runErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = runErr.Error()
	}
	result.RunID = run.ID
	if result.Status == "" {
		result.Status = run.Status
	}

	if err := s.store.CreateSyncRun(ctx, run); err != nil {
		log.Printf("Warning: failed to record sync run: %v", err)
	}
}

// consumptionVersions builds the candidate API version list, user-supplied
// value first.
func consumptionVersions(override string) []string {
	if override == "" {
		return consumptionAPIVersions
	}
	versions := []string{override}
	for _, v := range consumptionAPIVersions {
		if v != override {
			versions = append(versions, v)
		}
	}
	return versions
}

// parseSiteRestrictions decodes a site config/web read into restriction
// entries.
func parseSiteRestrictions(raw json.RawMessage) ([]domain.IPSecurityRestriction, error) {
	var cfg domain.SiteConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return cfg.Properties.IPSecurityRestrictions, nil
}

// parseWorkflow decodes a workflow read into the whitelisted representation.
func parseWorkflow(raw json.RawMessage) (*domain.WorkflowResource, error) {
	var wf domain.WorkflowResource
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func indentJSON(body []byte) (json.RawMessage, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}
