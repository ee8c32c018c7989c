package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
)

// FileShim is a testing implementation that stores resources in a local JSON
// file keyed by resource id. It lets the full sync flow run without Azure
// credentials or network access.
type FileShim struct {
	filePath string
	mu       sync.RWMutex
}

// Ensure FileShim implements ResourceClient.
var _ ResourceClient = (*FileShim)(nil)

// NewFileShim creates a new file-based shim.
func NewFileShim(filePath string) *FileShim {
	return &FileShim{filePath: filePath}
}

// Get reads a resource body from the file.
func (f *FileShim) Get(ctx context.Context, resourceID, apiVersion string) (json.RawMessage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	resources, err := f.load()
	if err != nil {
		return nil, err
	}
	body, ok := resources[resourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return body, nil
}

// CreateOrUpdate writes a resource body to the file.
func (f *FileShim) CreateOrUpdate(ctx context.Context, resourceID, apiVersion string, body json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	resources, err := f.load()
	if err != nil {
		return nil, err
	}
	resources[resourceID] = body

	data, err := json.MarshalIndent(resources, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resources: %w", err)
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return nil, fmt.Errorf("writing resource file: %w", err)
	}

	log.Printf("[FileShim] Resource %s written to %s (api-version %s)", resourceID, f.filePath, apiVersion)
	return body, nil
}

// load reads the backing file. A missing file is an empty resource map.
func (f *FileShim) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("reading resource file: %w", err)
	}
	resources := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("parsing resource file: %w", err)
	}
	return resources, nil
}
