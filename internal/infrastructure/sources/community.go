package sources

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/shelfscore/backend/internal/domain"
)

// CommunityClient looks up the crowdsourced community database. It is
// the highest-trust external tier: a hit here short-circuits the rest
// of the waterfall.
type CommunityClient struct {
	client    *retryablehttp.Client
	baseURL   string
	userAgent string
}

// NewCommunityClient creates a community database adapter.
func NewCommunityClient(baseURL, userAgent string, timeout time.Duration) *CommunityClient {
	return &CommunityClient{
		client:    newRetryClient(timeout),
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

// Name implements domain.SourceAdapter.
func (c *CommunityClient) Name() string { return "community" }

// Lookup implements domain.SourceAdapter.
func (c *CommunityClient) Lookup(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	reqURL := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, url.PathEscape(barcode))

	body, err := fetch(ctx, c.client, reqURL, c.userAgent)
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(body)
	if !doc.Get("found").Bool() {
		return nil, domain.ErrSourceMiss
	}

	product := doc.Get("product")
	name := product.Get("name").String()
	if name == "" {
		return nil, fmt.Errorf("%w: product entry without a name", domain.ErrSourceFailure)
	}

	return &domain.ProductRecord{
		Barcode:         barcode,
		Name:            name,
		Brand:           product.Get("brand").String(),
		IngredientsText: product.Get("ingredients_text").String(),
		ProductType:     product.Get("product_type").String(),
		CategoryHint:    product.Get("category").String(),
		Nutrition:       numericMap(product.Get("nutrition")),
		ImageRef:        product.Get("image_ref").String(),
		SourceLabel:     c.Name(),
		Confidence:      domain.ConfidenceHigh,
		LastUpdated:     time.Now().UTC(),
	}, nil
}

// numericMap flattens a JSON object into its numeric entries, dropping
// anything the producer shaped unexpectedly.
func numericMap(obj gjson.Result) map[string]float64 {
	if !obj.IsObject() {
		return nil
	}
	values := make(map[string]float64)
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Number {
			values[key.String()] = value.Float()
		}
		return true
	})
	if len(values) == 0 {
		return nil
	}
	return values
}
