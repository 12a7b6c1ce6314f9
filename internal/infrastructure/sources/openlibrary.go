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

// OpenLibraryClient resolves Bookland EANs against the Open Library
// books API. Consulted ahead of the food/cosmetics catalogs when the
// barcode carries a 978/979 prefix.
type OpenLibraryClient struct {
	client    *retryablehttp.Client
	baseURL   string
	userAgent string
}

// NewOpenLibrary creates the book catalog adapter.
func NewOpenLibrary(baseURL, userAgent string, timeout time.Duration) *OpenLibraryClient {
	return &OpenLibraryClient{
		client:    newRetryClient(timeout),
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

// Name implements domain.SourceAdapter.
func (c *OpenLibraryClient) Name() string { return "openlibrary" }

// Lookup implements domain.SourceAdapter.
func (c *OpenLibraryClient) Lookup(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	params := url.Values{}
	params.Set("bibkeys", "ISBN:"+barcode)
	params.Set("format", "json")
	params.Set("jscmd", "data")
	reqURL := fmt.Sprintf("%s/api/books?%s", c.baseURL, params.Encode())

	body, err := fetch(ctx, c.client, reqURL, c.userAgent)
	if err != nil {
		return nil, err
	}

	// The response is keyed by the bibkey; an unknown ISBN yields {}.
	book := gjson.GetBytes(body, "ISBN:"+barcode)
	if !book.Exists() {
		return nil, domain.ErrSourceMiss
	}

	title := book.Get("title").String()
	if title == "" {
		return nil, fmt.Errorf("%w: book entry without a title", domain.ErrSourceFailure)
	}

	return &domain.ProductRecord{
		Barcode:      barcode,
		Name:         title,
		Brand:        book.Get("publishers.0.name").String(),
		ProductType:  "book",
		CategoryHint: "books",
		ImageRef:     book.Get("cover.medium").String(),
		SourceLabel:  c.Name(),
		Confidence:   domain.ConfidenceMedium,
		LastUpdated:  time.Now().UTC(),
	}, nil
}
