package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/usgovops/logicapp-allowlist-sync/internal/api"
	"github.com/usgovops/logicapp-allowlist-sync/internal/azure"
	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
	"github.com/usgovops/logicapp-allowlist-sync/internal/service"
	"github.com/usgovops/logicapp-allowlist-sync/internal/source"
	"github.com/usgovops/logicapp-allowlist-sync/internal/storage/memory"
)

const workflowID = "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Logic/workflows/wf1"

// staticFetcher serves a fixed prefix document.
type staticFetcher struct {
	raw string
}

func (f *staticFetcher) Fetch(ctx context.Context) (*source.Result, error) {
	var doc any
	_ = json.Unmarshal([]byte(f.raw), &doc)
	return &source.Result{Document: doc, Raw: f.raw, URL: "https://example.test/prefixes"}, nil
}

// testServer wires the router to in-memory storage and a file-shim client.
type testServer struct {
	handler http.Handler
	store   *memory.Store
	shim    *azure.FileShim
	apiKey  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	shim := azure.NewFileShim(filepath.Join(t.TempDir(), "resources.json"))

	// Seed the existing workflow.
	_, err := shim.CreateOrUpdate(context.Background(), workflowID, "2019-05-01", json.RawMessage(`{
		"location": "usgovtexas",
		"properties": {"accessControl": {"triggers": {"allowedCallerIpAddresses": [{"addressRange": "1.1.1.0/24"}]}}}
	}`))
	if err != nil {
		t.Fatalf("seeding shim: %v", err)
	}

	fetcher := &staticFetcher{raw: `{"prefixes": ["2.2.2.0/24", "3.3.3.0/24"]}`}
	syncService := service.NewSyncService(store, shim, fetcher, 0)

	apiKey := "test-api-key"
	defaults := service.Options{ResourceID: workflowID}
	handler := api.NewRouter(store, syncService, defaults, apiKey)

	return &testServer{handler: handler, store: store, shim: shim, apiKey: apiKey}
}

func (ts *testServer) request(method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/api/v1/runs", nil, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/runs", nil, "wrong-key")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/v1/runs", nil, ts.apiKey)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with valid key, got %d", rr.Code)
	}
}

func TestTriggerSync(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/sync", nil, ts.apiKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result domain.SyncResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Status != domain.RunStatusUpdated {
		t.Errorf("Expected updated status, got %s", result.Status)
	}
	if result.PrefixCount != 2 {
		t.Errorf("Expected 2 prefixes, got %d", result.PrefixCount)
	}

	// The run should be visible in history.
	rr = ts.request("GET", "/api/v1/runs/"+result.RunID, nil, ts.apiKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var run domain.SyncRun
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	if run.Status != domain.RunStatusUpdated {
		t.Errorf("Expected updated run, got %+v", run)
	}
}

func TestTriggerSyncDryRunOverride(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/sync", map[string]any{"dry_run": true}, ts.apiKey)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result domain.SyncResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Status != domain.RunStatusDryRun {
		t.Errorf("Expected dry-run status, got %s", result.Status)
	}
	if len(result.Body) == 0 {
		t.Error("Expected a dry-run body")
	}
}

func TestTriggerSyncInvalidResourceID(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/sync", map[string]any{"resource_id": "not-a-resource-id"}, ts.apiKey)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestRunNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/api/v1/runs/nonexistent", nil, ts.apiKey)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}
