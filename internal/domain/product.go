package domain

import "time"

// Confidence grades how much we trust the source that produced a record.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ProductIdentity is the stable identity derived from a normalized
// (brand, name) pair. It is what ties repeated evaluations of the same
// product together when no barcode is available.
type ProductIdentity struct {
	IdentityKey     string `json:"identityKey"`
	NormalizedName  string `json:"normalizedName"`
	NormalizedBrand string `json:"normalizedBrand"`
}

// ProductRecord is the descriptive data for a barcode, as resolved from
// the cache or one of the external sources.
type ProductRecord struct {
	Barcode         string             `json:"barcode"`
	Name            string             `json:"name"`
	Brand           string             `json:"brand,omitempty"`
	IngredientsText string             `json:"ingredientsText,omitempty"`
	ProductType     string             `json:"productType,omitempty"` // "food", "cosmetic", "book", ...
	CategoryHint    string             `json:"categoryHint,omitempty"`
	Nutrition       map[string]float64 `json:"nutrition,omitempty"`
	ImageRef        string             `json:"imageRef,omitempty"`
	SourceLabel     string             `json:"sourceLabel"`
	Confidence      Confidence         `json:"confidence"`
	LastUpdated     time.Time          `json:"lastUpdated"`
}
