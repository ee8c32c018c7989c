// Package source downloads the published prefix document. Candidate URLs are
// tried in order; per-URL transport errors and 5xx responses are retried with
// exponential backoff before falling through to the next candidate.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/usgovops/logicapp-allowlist-sync/internal/domain"
)

// Result is one successfully downloaded document. Document is nil when the
// body was not JSON; Raw always carries the response text for the regex
// fallback in the extractor.
type Result struct {
	Document any
	Raw      string
	URL      string
}

// Fetcher retrieves the prefix document.
type Fetcher interface {
	Fetch(ctx context.Context) (*Result, error)
}

// Client fetches the document over HTTP.
type Client struct {
	urls       []string
	httpClient *http.Client
	maxRetries uint64
}

// Ensure Client implements Fetcher.
var _ Fetcher = (*Client)(nil)

// New creates a fetcher over the given candidate URLs, tried in order.
func New(urls []string) *Client {
	return &Client{
		urls:       urls,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: 2,
	}
}

// Fetch downloads the first candidate that responds with a 2xx body. A body
// that fails to parse as JSON is not an error here; the extractor's raw-text
// fallback handles it.
func (c *Client) Fetch(ctx context.Context) (*Result, error) {
	var lastErr error
	for _, url := range c.urls {
		body, err := c.fetchOne(ctx, url)
		if err != nil {
			log.Printf("Warning: fetching %s: %v", url, err)
			lastErr = err
			continue
		}

		result := &Result{Raw: string(body), URL: url}
		var doc any
		if err := json.Unmarshal(body, &doc); err == nil {
			result.Document = doc
		}
		return result, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", domain.ErrFetchFailed, lastErr)
	}
	return nil, domain.ErrFetchFailed
}

// fetchOne downloads a single URL with backoff on transient failures.
func (c *Client) fetchOne(ctx context.Context, url string) ([]byte, error) {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
