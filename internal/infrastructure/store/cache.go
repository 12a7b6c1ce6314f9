package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shelfscore/backend/internal/domain"
)

// ProductCache is the barcode-keyed product cache backed by the shared
// store. Implements domain.ProductCacheRepository.
type ProductCache struct {
	store *Store
}

// Products returns the product cache repository.
func (s *Store) Products() *ProductCache {
	return &ProductCache{store: s}
}

// Get returns the cached record for a barcode, or domain.ErrCacheMiss.
func (c *ProductCache) Get(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT barcode, name, brand, ingredients_text, product_type, category_hint,
		       nutrition_json, image_ref, source_label, confidence, last_updated
		FROM product_cache WHERE barcode = ?`, barcode)

	var record domain.ProductRecord
	var nutritionJSON, confidence, lastUpdated string
	err := row.Scan(
		&record.Barcode, &record.Name, &record.Brand, &record.IngredientsText,
		&record.ProductType, &record.CategoryHint, &nutritionJSON,
		&record.ImageRef, &record.SourceLabel, &confidence, &lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read product cache: %w", err)
	}

	record.Confidence = domain.Confidence(confidence)
	if nutritionJSON != "" && nutritionJSON != "{}" {
		if err := json.Unmarshal([]byte(nutritionJSON), &record.Nutrition); err != nil {
			return nil, fmt.Errorf("decode nutrition: %w", err)
		}
	}
	if record.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdated); err != nil {
		return nil, fmt.Errorf("parse last_updated: %w", err)
	}
	return &record, nil
}

// Put upserts a record keyed by barcode. Insert-or-replace: the whole
// row is overwritten, last-write-wins, no merging.
func (c *ProductCache) Put(ctx context.Context, record *domain.ProductRecord) error {
	if record == nil || record.Barcode == "" {
		return domain.ErrInvalidRequest
	}

	nutritionJSON := []byte("{}")
	if len(record.Nutrition) > 0 {
		var err error
		if nutritionJSON, err = json.Marshal(record.Nutrition); err != nil {
			return fmt.Errorf("encode nutrition: %w", err)
		}
	}

	lastUpdated := record.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO product_cache (
			barcode, name, brand, ingredients_text, product_type, category_hint,
			nutrition_json, image_ref, source_label, confidence, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (barcode) DO UPDATE SET
			name = excluded.name,
			brand = excluded.brand,
			ingredients_text = excluded.ingredients_text,
			product_type = excluded.product_type,
			category_hint = excluded.category_hint,
			nutrition_json = excluded.nutrition_json,
			image_ref = excluded.image_ref,
			source_label = excluded.source_label,
			confidence = excluded.confidence,
			last_updated = excluded.last_updated`,
		record.Barcode, record.Name, record.Brand, record.IngredientsText,
		record.ProductType, record.CategoryHint, string(nutritionJSON),
		record.ImageRef, record.SourceLabel, string(record.Confidence),
		lastUpdated.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert product cache: %w", err)
	}
	return nil
}
