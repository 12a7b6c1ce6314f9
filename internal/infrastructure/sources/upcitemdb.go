package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/shelfscore/backend/internal/domain"
)

// UPCItemDBClient is the generic multi-category lookup, the waterfall's
// last resort. The trial API allows roughly 100 requests per day, so
// calls are paced through a local rate limiter.
type UPCItemDBClient struct {
	client      *retryablehttp.Client
	baseURL     string
	userAgent   string
	rateLimiter *rate.Limiter
}

// NewUPCItemDB creates the generic UPC adapter. requestsPerMinute <= 0
// falls back to the trial quota pacing (6/min, burst of 3).
func NewUPCItemDB(baseURL, userAgent string, timeout time.Duration, requestsPerMinute int) *UPCItemDBClient {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 6
	}
	limiter := rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 3)

	return &UPCItemDBClient{
		client:      newRetryClient(timeout),
		baseURL:     baseURL,
		userAgent:   userAgent,
		rateLimiter: limiter,
	}
}

// Name implements domain.SourceAdapter.
func (c *UPCItemDBClient) Name() string { return "upcitemdb" }

// Lookup implements domain.SourceAdapter.
func (c *UPCItemDBClient) Lookup(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrSourceFailure, err)
	}

	params := url.Values{}
	params.Set("upc", barcode)
	reqURL := fmt.Sprintf("%s/prod/trial/lookup?%s", c.baseURL, params.Encode())

	body, err := fetch(ctx, c.client, reqURL, c.userAgent)
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(body)
	if doc.Get("code").String() != "OK" {
		return nil, fmt.Errorf("%w: response code %q", domain.ErrSourceFailure, doc.Get("code").String())
	}

	item := doc.Get("items.0")
	if !item.Exists() {
		return nil, domain.ErrSourceMiss
	}
	title := item.Get("title").String()
	if title == "" {
		return nil, domain.ErrSourceMiss
	}

	return &domain.ProductRecord{
		Barcode:      barcode,
		Name:         title,
		Brand:        item.Get("brand").String(),
		CategoryHint: item.Get("category").String(),
		ImageRef:     item.Get("images.0").String(),
		SourceLabel:  c.Name(),
		Confidence:   domain.ConfidenceLow,
		LastUpdated:  time.Now().UTC(),
	}, nil
}
