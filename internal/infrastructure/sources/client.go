// Package sources contains the external lookup tiers consumed by the
// resolution waterfall. Every adapter satisfies the same contract: a
// hit, domain.ErrSourceMiss when the source answered but does not know
// the barcode, or domain.ErrSourceFailure for anything else. Nothing in
// this package ever panics or blocks past the caller's deadline.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/shelfscore/backend/internal/domain"
)

const defaultUserAgent = "ShelfScore/1.0"

// newRetryClient builds the shared HTTP client used by all adapters:
// a couple of quick retries for transient failures, bounded overall by
// the per-source context deadline the pipeline sets.
func newRetryClient(timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 250 * time.Millisecond
	client.RetryWaitMax = 1 * time.Second
	client.Logger = nil
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	return client
}

// fetch executes a GET and maps the outcome onto the adapter contract:
// 404 is a miss, any other non-2xx status, transport error or body read
// failure is a source failure.
func fetch(ctx context.Context, client *retryablehttp.Client, reqURL, userAgent string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrSourceFailure, err)
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrSourceMiss
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrSourceFailure, err)
	}
	return body, nil
}
