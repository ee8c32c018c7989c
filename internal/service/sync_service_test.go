package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
	"github.com/usgovops/logicapp-allowlist-sync/internal/service"
	"github.com/usgovops/logicapp-allowlist-sync/internal/source"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage/memory"
)

const (
	workflowID = "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Logic/workflows/wf1"
	siteID     = "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Web/sites/app1"
)

// fakeFetcher returns a canned document.
type fakeFetcher struct {
	result *source.Result
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context) (*source.Result, error) {
	return f.result, f.err
}

// jsonFetcher builds a fetcher from a JSON literal.
func jsonFetcher(t *testing.T, raw string) *fakeFetcher {
	t.Helper()
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decoding fetch document: %v", err)
	}
	return &fakeFetcher{result: &source.Result{Document: doc, Raw: raw, URL: "https://example.test/prefixes"}}
}

type putCall struct {
	ResourceID string
	APIVersion string
	Body       json.RawMessage
}

// fakeClient is an in-memory ResourceClient keyed by "resourceID@apiVersion".
type fakeClient struct {
	resources   map[string]json.RawMessage
	puts        []putCall
	failWrite   bool
	getOverride func(resourceID, apiVersion string) (json.RawMessage, error)
}

func newFakeClient() *fakeClient {
	return &fakeClient{resources: map[string]json.RawMessage{}}
}

func key(resourceID, apiVersion string) string {
	return resourceID + "@" + apiVersion
}

func (c *fakeClient) set(resourceID, apiVersion, body string) {
	c.resources[key(resourceID, apiVersion)] = json.RawMessage(body)
}

func (c *fakeClient) Get(ctx context.Context, resourceID, apiVersion string) (json.RawMessage, error) {
	if c.getOverride != nil {
		return c.getOverride(resourceID, apiVersion)
	}
	body, ok := c.resources[key(resourceID, apiVersion)]
	if !ok {
		return nil, fmt.Errorf("resource %s not found at api-version %s", resourceID, apiVersion)
	}
	return body, nil
}

func (c *fakeClient) CreateOrUpdate(ctx context.Context, resourceID, apiVersion string, body json.RawMessage) (json.RawMessage, error) {
	if c.failWrite {
		return nil, errors.New("simulated write failure")
	}
	c.puts = append(c.puts, putCall{ResourceID: resourceID, APIVersion: apiVersion, Body: body})
	c.resources[key(resourceID, apiVersion)] = body
	return body, nil
}

func newService(client *fakeClient, fetcher source.Fetcher) (*service.SyncService, *memory.Store) {
	store := memory.New()
	return service.NewSyncService(store, client, fetcher, 0), store
}

func TestConsumptionEndToEnd(t *testing.T) {
	client := newFakeClient()
	client.set(workflowID, "2019-05-01", `{
		"location": "usgovtexas",
		"tags": {"env": "prod"},
		"properties": {
			"definition": {"triggers": {}},
			"state": "Enabled",
			"accessControl": {"triggers": {"allowedCallerIpAddresses": [{"addressRange": "1.1.1.0/24"}]}}
		}
	}`)
	svc, store := newService(client, jsonFetcher(t, `{"prefixes": ["2.2.2.0/24", "3.3.3.0/24"]}`))

	result, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.RunStatusUpdated {
		t.Errorf("Expected updated status, got %s", result.Status)
	}
	if result.Kind != domain.KindConsumption {
		t.Errorf("Expected consumption kind, got %s", result.Kind)
	}
	if result.PrefixCount != 2 || result.EntryCount != 2 {
		t.Errorf("Expected 2 prefixes and 2 entries, got %d/%d", result.PrefixCount, result.EntryCount)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}

	if len(client.puts) != 1 {
		t.Fatalf("Expected 1 write, got %d", len(client.puts))
	}
	put := client.puts[0]
	if put.ResourceID != workflowID || put.APIVersion != "2019-05-01" {
		t.Errorf("Unexpected write target: %s@%s", put.ResourceID, put.APIVersion)
	}

	var wf domain.WorkflowResource
	if err := json.Unmarshal(put.Body, &wf); err != nil {
		t.Fatalf("decoding written body: %v", err)
	}
	if wf.Location != "usgovtexas" || wf.Tags["env"] != "prod" {
		t.Errorf("Expected envelope carried forward, got %+v", wf)
	}
	callers := wf.Properties.AccessControl.Triggers.AllowedCallerIPAddresses
	if len(callers) != 2 || callers[0].AddressRange != "2.2.2.0/24" || callers[1].AddressRange != "3.3.3.0/24" {
		t.Errorf("Unexpected trigger callers: %+v", callers)
	}
	if strings.Contains(string(put.Body), "contents") {
		t.Errorf("Expected no contents key in body: %s", put.Body)
	}

	// Run history
	run, err := store.GetSyncRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("GetSyncRun failed: %v", err)
	}
	if run.Status != domain.RunStatusUpdated || run.PrefixCount != 2 {
		t.Errorf("Unexpected run record: %+v", run)
	}
}

func TestConsumptionUnchangedSkipsWrite(t *testing.T) {
	client := newFakeClient()
	// Same set as the new prefixes, different order plus a duplicate.
	client.set(workflowID, "2019-05-01", `{
		"location": "usgovtexas",
		"properties": {"accessControl": {"triggers": {"allowedCallerIpAddresses": [
			{"addressRange": "3.3.3.0/24"}, {"addressRange": "2.2.2.0/24"}, {"addressRange": "3.3.3.0/24"}
		]}}}
	}`)
	svc, _ := newService(client, jsonFetcher(t, `{"prefixes": ["2.2.2.0/24", "3.3.3.0/24"]}`))

	result, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.RunStatusUnchanged {
		t.Errorf("Expected unchanged status, got %s", result.Status)
	}
	if len(client.puts) != 0 {
		t.Errorf("Expected no writes, got %d", len(client.puts))
	}
}

func TestConsumptionAPIVersionFallback(t *testing.T) {
	client := newFakeClient()
	// Resource only readable at the older api version.
	client.set(workflowID, "2016-06-01", `{
		"location": "usgovtexas",
		"properties": {"accessControl": {"triggers": {"allowedCallerIpAddresses": [{"addressRange": "1.1.1.0/24"}]}}}
	}`)
	svc, _ := newService(client, jsonFetcher(t, `{"prefixes": ["2.2.2.0/24"]}`))

	result, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.RunStatusUpdated {
		t.Errorf("Expected updated status, got %s", result.Status)
	}
	if len(client.puts) != 1 || client.puts[0].APIVersion != "2016-06-01" {
		t.Fatalf("Expected write at 2016-06-01, got %+v", client.puts)
	}
}

func TestConsumptionDryRunEmitsBody(t *testing.T) {
	client := newFakeClient()
	client.set(workflowID, "2019-05-01", `{
		"location": "usgovtexas",
		"properties": {"accessControl": {"triggers": {"allowedCallerIpAddresses": [{"addressRange": "2.2.2.0/24"}]}}}
	}`)
	// Existing already matches; a dry run still produces the body.
	svc, _ := newService(client, jsonFetcher(t, `{"prefixes": ["2.2.2.0/24"]}`))

	result, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID, DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.RunStatusDryRun {
		t.Errorf("Expected dry-run status, got %s", result.Status)
	}
	if len(result.Body) == 0 {
		t.Error("Expected a dry-run body")
	}
	if len(client.puts) != 0 {
		t.Errorf("Expected no writes, got %d", len(client.puts))
	}
}

func TestConsumptionSkipFetchAlwaysWrites(t *testing.T) {
	client := newFakeClient()
	svc, _ := newService(client, jsonFetcher(t, `{"prefixes": ["2.2.2.0/24"]}`))

	result, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID, SkipFetch: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.RunStatusUpdated {
		t.Errorf("Expected updated status, got %s", result.Status)
	}
	if len(client.puts) != 1 {
		t.Fatalf("Expected 1 write from the empty baseline, got %d", len(client.puts))
	}
	if client.puts[0].APIVersion != "2019-05-01" {
		t.Errorf("Expected first candidate api version, got %s", client.puts[0].APIVersion)
	}
}

func TestConsumptionVerificationMismatchWarns(t *testing.T) {
	client := newFakeClient()
	client.set(workflowID, "2019-05-01", `{
		"location": "usgovtexas",
		"properties": {"accessControl": {"triggers": {"allowedCallerIpAddresses": [{"addressRange": "1.1.1.0/24"}]}}}
	}`)
	svc, _ := newService(client, jsonFetcher(t, `{"prefixes": ["2.2.2.0/24", "3.3.3.0/24"]}`))

	// After the write, reads report a single caller range.
	wrote := false
	client.getOverride = func(resourceID, apiVersion string) (json.RawMessage, error) {
		if wrote {
			return json.RawMessage(`{"properties": {"accessControl": {"triggers": {"allowedCallerIpAddresses": [{"addressRange": "2.2.2.0/24"}]}}}}`), nil
		}
		wrote = true
		return client.resources[key(resourceID, apiVersion)], nil
	}

	result, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.RunStatusUpdated {
		t.Errorf("Expected updated status despite mismatch, got %s", result.Status)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected a count-mismatch warning")
	}
	if result.EntryCount != 1 {
		t.Errorf("Expected verified entry count 1, got %d", result.EntryCount)
	}
}

func TestStandardEndToEnd(t *testing.T) {
	client := newFakeClient()
	client.set(siteID+"/config/web", "2022-03-01", `{
		"properties": {"ipSecurityRestrictions": [
			{"ipAddress": "203.0.113.0/24", "action": "Allow", "priority": 300, "name": "Custom1"},
			{"ipAddress": "10.9.9.0/24", "action": "Allow", "priority": 310, "name": "AzureGov_LogicApps_USGovTX_1"}
		]}
	}`)
	svc, _ := newService(client, jsonFetcher(t, `["1.2.3.0/24", "4.5.6.0/24"]`))

	result, err := svc.Run(context.Background(), service.Options{ResourceID: siteID})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Kind != domain.KindStandard {
		t.Errorf("Expected standard kind, got %s", result.Kind)
	}
	if result.Status != domain.RunStatusUpdated {
		t.Errorf("Expected updated status, got %s", result.Status)
	}
	if result.EntryCount != 3 {
		t.Errorf("Expected 3 verified entries, got %d", result.EntryCount)
	}

	if len(client.puts) != 1 {
		t.Fatalf("Expected 1 write, got %d", len(client.puts))
	}
	put := client.puts[0]
	if put.ResourceID != siteID+"/config/web" {
		t.Errorf("Expected write to config/web, got %s", put.ResourceID)
	}

	var cfg domain.SiteConfig
	if err := json.Unmarshal(put.Body, &cfg); err != nil {
		t.Fatalf("decoding written body: %v", err)
	}
	entries := cfg.Properties.IPSecurityRestrictions
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Name != "Custom1" || entries[0].Priority != 10 {
		t.Errorf("Expected preserved Custom1 at priority 10, got %+v", entries[0])
	}
	if entries[1].Name != "AzureGov_LogicApps_USGovTX_1" || entries[1].IPAddress != "1.2.3.0/24" || entries[1].Priority != 20 {
		t.Errorf("Unexpected first generated entry: %+v", entries[1])
	}
	if entries[2].Name != "AzureGov_LogicApps_USGovTX_2" || entries[2].IPAddress != "4.5.6.0/24" || entries[2].Priority != 30 {
		t.Errorf("Unexpected second generated entry: %+v", entries[2])
	}
}

func TestStandardDryRun(t *testing.T) {
	client := newFakeClient()
	client.set(siteID+"/config/web", "2022-03-01", `{"properties": {"ipSecurityRestrictions": []}}`)
	svc, _ := newService(client, jsonFetcher(t, `["1.2.3.0/24"]`))

	result, err := svc.Run(context.Background(), service.Options{ResourceID: siteID, DryRun: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Status != domain.RunStatusDryRun {
		t.Errorf("Expected dry-run status, got %s", result.Status)
	}
	if !strings.Contains(string(result.Body), "ipSecurityRestrictions") {
		t.Errorf("Expected restrictions in dry-run body: %s", result.Body)
	}
	if len(client.puts) != 0 {
		t.Errorf("Expected no writes, got %d", len(client.puts))
	}
}

func TestUnsupportedResourceType(t *testing.T) {
	client := newFakeClient()
	svc, store := newService(client, jsonFetcher(t, `["1.2.3.0/24"]`))

	badID := "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Sql/servers/db1"
	result, err := svc.Run(context.Background(), service.Options{ResourceID: badID})
	if !errors.Is(err, domain.ErrUnsupportedResourceType) {
		t.Fatalf("Expected ErrUnsupportedResourceType, got %v", err)
	}

	// Failures are recorded too.
	run, err := store.GetSyncRun(context.Background(), result.RunID)
	if err != nil {
		t.Fatalf("GetSyncRun failed: %v", err)
	}
	if run.Status != domain.RunStatusFailed || run.Error == "" {
		t.Errorf("Unexpected failure record: %+v", run)
	}
}

func TestMissingResourceID(t *testing.T) {
	svc, _ := newService(newFakeClient(), jsonFetcher(t, `["1.2.3.0/24"]`))

	_, err := svc.Run(context.Background(), service.Options{})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: all candidates failed", domain.ErrFetchFailed)}
	svc, _ := newService(newFakeClient(), fetcher)

	_, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID})
	if !errors.Is(err, domain.ErrFetchFailed) {
		t.Errorf("Expected ErrFetchFailed, got %v", err)
	}
}

func TestResourceRetrievalFailure(t *testing.T) {
	// No stored resource at any candidate api version.
	svc, _ := newService(newFakeClient(), jsonFetcher(t, `{"prefixes": ["2.2.2.0/24"]}`))

	_, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID})
	if !errors.Is(err, domain.ErrResourceRetrieval) {
		t.Errorf("Expected ErrResourceRetrieval, got %v", err)
	}
}

func TestWriteFailure(t *testing.T) {
	client := newFakeClient()
	client.failWrite = true
	client.set(workflowID, "2019-05-01", `{"location": "usgovtexas", "properties": {}}`)
	svc, _ := newService(client, jsonFetcher(t, `{"prefixes": ["2.2.2.0/24"]}`))

	_, err := svc.Run(context.Background(), service.Options{ResourceID: workflowID})
	if !errors.Is(err, domain.ErrWriteFailed) {
		t.Errorf("Expected ErrWriteFailed, got %v", err)
	}
}
