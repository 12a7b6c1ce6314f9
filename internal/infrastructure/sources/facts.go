package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/shelfscore/backend/internal/domain"
)

// FactsClient talks to the Open Food Facts family of catalogs (Open
// Food Facts and Open Beauty Facts share the same v2 product API).
type FactsClient struct {
	client      *retryablehttp.Client
	baseURL     string
	userAgent   string
	label       string
	productType string
}

// NewOpenFoodFacts creates the food catalog adapter.
func NewOpenFoodFacts(baseURL, userAgent string, timeout time.Duration) *FactsClient {
	return &FactsClient{
		client:      newRetryClient(timeout),
		baseURL:     baseURL,
		userAgent:   userAgent,
		label:       "openfoodfacts",
		productType: "food",
	}
}

// NewOpenBeautyFacts creates the cosmetics / personal care adapter.
func NewOpenBeautyFacts(baseURL, userAgent string, timeout time.Duration) *FactsClient {
	return &FactsClient{
		client:      newRetryClient(timeout),
		baseURL:     baseURL,
		userAgent:   userAgent,
		label:       "openbeautyfacts",
		productType: "cosmetic",
	}
}

// Name implements domain.SourceAdapter.
func (c *FactsClient) Name() string { return c.label }

// Lookup implements domain.SourceAdapter.
func (c *FactsClient) Lookup(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	reqURL := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, url.PathEscape(barcode))

	body, err := fetch(ctx, c.client, reqURL, c.userAgent)
	if err != nil {
		return nil, err
	}

	doc := gjson.ParseBytes(body)
	// status 0 means "product not found" in the v2 API
	if doc.Get("status").Int() != 1 {
		return nil, domain.ErrSourceMiss
	}

	product := doc.Get("product")
	name := product.Get("product_name").String()
	if name == "" {
		return nil, fmt.Errorf("%w: product entry without a name", domain.ErrSourceFailure)
	}

	return &domain.ProductRecord{
		Barcode:         barcode,
		Name:            name,
		Brand:           firstSegment(product.Get("brands").String()),
		IngredientsText: product.Get("ingredients_text").String(),
		ProductType:     c.productType,
		CategoryHint:    firstSegment(product.Get("categories").String()),
		Nutrition:       numericMap(product.Get("nutriments")),
		ImageRef:        product.Get("image_front_url").String(),
		SourceLabel:     c.label,
		Confidence:      domain.ConfidenceMedium,
		LastUpdated:     time.Now().UTC(),
	}, nil
}

// firstSegment takes the first entry of a comma-separated catalog field
// ("Brand A,Brand B" or "Snacks, Sweet snacks").
func firstSegment(s string) string {
	if idx := strings.Index(s, ","); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
