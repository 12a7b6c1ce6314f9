package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shelfscore/backend/internal/domain"
)

// ResolutionConfig holds the waterfall tunables.
type ResolutionConfig struct {
	// SourceTimeout bounds each external tier call. Acceptable range is
	// 5-15s; the default is 8s.
	SourceTimeout time.Duration
}

// SourceSet is the ordered collection of external tiers the waterfall
// draws from. Any adapter may be nil, in which case its tier is skipped.
type SourceSet struct {
	Community domain.SourceAdapter // crowdsourced, high confidence
	Books     domain.SourceAdapter // book catalog, for Bookland EANs
	Food      domain.SourceAdapter // open food catalog
	Beauty    domain.SourceAdapter // cosmetics / personal care catalog
	Generic   domain.SourceAdapter // multi-category lookup, last resort
}

// ResolutionService resolves a barcode to descriptive product data via
// a strictly ordered, fail-soft waterfall: local cache first, then the
// external tiers. Tiers never run in parallel; ordering is
// deterministic and cheap tiers are never starved by slow ones.
type ResolutionService struct {
	cache   domain.ProductCacheRepository
	sources SourceSet
	timeout time.Duration
	log     *logrus.Logger
}

// NewResolutionService creates a resolution service with its cache and
// ordered source tiers.
func NewResolutionService(
	cache domain.ProductCacheRepository,
	sources SourceSet,
	config ResolutionConfig,
	log *logrus.Logger,
) *ResolutionService {
	timeout := config.SourceTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &ResolutionService{
		cache:   cache,
		sources: sources,
		timeout: timeout,
		log:     log,
	}
}

// ResolveBarcode walks the tiers in order and returns the first
// confident hit. Every adapter failure degrades to "miss, next tier";
// only total exhaustion yields domain.ErrProductNotFound. A hit beyond
// the cache is written back into the cache so the next lookup is local.
func (s *ResolutionService) ResolveBarcode(ctx context.Context, barcode string) (*domain.ProductRecord, error) {
	if barcode == "" {
		return nil, domain.ErrInvalidRequest
	}

	// Tier 1: local cache, no network.
	if record, err := s.cache.Get(ctx, barcode); err == nil {
		s.log.WithField("barcode", barcode).Debug("resolved from local cache")
		return record, nil
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		s.log.WithError(err).WithField("barcode", barcode).Warn("cache read failed, continuing to sources")
	}

	for _, adapter := range s.tiersFor(barcode) {
		record, err := s.lookup(ctx, adapter, barcode)
		if err != nil {
			if ctx.Err() != nil {
				// caller abandoned the waterfall; no partial cache state exists
				return nil, ctx.Err()
			}
			if errors.Is(err, domain.ErrSourceMiss) {
				s.log.WithFields(logrus.Fields{"source": adapter.Name(), "barcode": barcode}).Debug("source miss")
			} else {
				s.log.WithError(err).WithFields(logrus.Fields{"source": adapter.Name(), "barcode": barcode}).Warn("source failure, trying next tier")
			}
			continue
		}

		// Warm the cache; a write failure is a warning, the caller still
		// gets the record.
		if err := s.cache.Put(ctx, record); err != nil {
			s.log.WithError(err).WithField("barcode", barcode).Warn("cache write failed")
		}
		s.log.WithFields(logrus.Fields{"source": adapter.Name(), "barcode": barcode}).Info("resolved product")
		return record, nil
	}

	return nil, domain.ErrProductNotFound
}

// tiersFor returns the external tiers in the order this barcode should
// consult them: community first, then the domain catalogs (books ahead
// of food/cosmetics when the barcode is a Bookland EAN), then generic.
func (s *ResolutionService) tiersFor(barcode string) []domain.SourceAdapter {
	var ordered []domain.SourceAdapter

	appendTier := func(adapter domain.SourceAdapter) {
		if adapter != nil {
			ordered = append(ordered, adapter)
		}
	}

	appendTier(s.sources.Community)
	if IsBookBarcode(barcode) {
		appendTier(s.sources.Books)
		appendTier(s.sources.Food)
		appendTier(s.sources.Beauty)
	} else {
		appendTier(s.sources.Food)
		appendTier(s.sources.Beauty)
	}
	appendTier(s.sources.Generic)

	return ordered
}

// lookup runs a single adapter call bounded by the per-source timeout.
func (s *ResolutionService) lookup(ctx context.Context, adapter domain.SourceAdapter, barcode string) (*domain.ProductRecord, error) {
	tierCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return adapter.Lookup(tierCtx, barcode)
}

// IsBookBarcode reports whether a barcode is a Bookland EAN-13
// (978/979 prefix), which routes resolution to the book catalog first.
func IsBookBarcode(barcode string) bool {
	if len(barcode) != 13 {
		return false
	}
	for _, r := range barcode {
		if r < '0' || r > '9' {
			return false
		}
	}
	prefix := barcode[:3]
	return prefix == "978" || prefix == "979"
}
