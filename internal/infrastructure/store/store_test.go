package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfscore/backend/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	t.Run("creates schema in a fresh database", func(t *testing.T) {
		s := openTestStore(t)

		stats, err := s.Ledger().Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalEvents)
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.db")
		s, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())

		s, err = Open(path)
		require.NoError(t, err)
		require.NoError(t, s.Close())
	})
}

func TestProductCache(t *testing.T) {
	ctx := context.Background()

	record := &domain.ProductRecord{
		Barcode:         "5012345678900",
		Name:            "Choco Crunch",
		Brand:           "SweetCo",
		IngredientsText: "cocoa, sugar, palm oil",
		ProductType:     "food",
		CategoryHint:    "snacks",
		Nutrition:       map[string]float64{"energy-kcal_100g": 520, "sugars_100g": 38},
		ImageRef:        "https://img.example/choco.jpg",
		SourceLabel:     "openfoodfacts",
		Confidence:      domain.ConfidenceMedium,
		LastUpdated:     time.Now().UTC().Truncate(time.Millisecond),
	}

	t.Run("get and put round trip", func(t *testing.T) {
		cache := openTestStore(t).Products()

		require.NoError(t, cache.Put(ctx, record))

		got, err := cache.Get(ctx, record.Barcode)
		require.NoError(t, err)
		assert.Equal(t, record.Name, got.Name)
		assert.Equal(t, record.Brand, got.Brand)
		assert.Equal(t, record.Nutrition, got.Nutrition)
		assert.Equal(t, record.Confidence, got.Confidence)
		assert.True(t, record.LastUpdated.Equal(got.LastUpdated))
	})

	t.Run("miss returns ErrCacheMiss", func(t *testing.T) {
		cache := openTestStore(t).Products()
		_, err := cache.Get(ctx, "unknown")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("put overwrites, never merges", func(t *testing.T) {
		cache := openTestStore(t).Products()
		require.NoError(t, cache.Put(ctx, record))

		replacement := &domain.ProductRecord{
			Barcode:     record.Barcode,
			Name:        "Choco Crunch Dark",
			SourceLabel: "community",
			Confidence:  domain.ConfidenceHigh,
		}
		require.NoError(t, cache.Put(ctx, replacement))

		got, err := cache.Get(ctx, record.Barcode)
		require.NoError(t, err)
		assert.Equal(t, "Choco Crunch Dark", got.Name)
		assert.Equal(t, "community", got.SourceLabel)
		// fields absent from the replacement are gone, not merged
		assert.Empty(t, got.IngredientsText)
		assert.Nil(t, got.Nutrition)
	})

	t.Run("rejects empty barcode", func(t *testing.T) {
		cache := openTestStore(t).Products()
		err := cache.Put(ctx, &domain.ProductRecord{Name: "no barcode"})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestConsensusStore(t *testing.T) {
	ctx := context.Background()

	seed := func(score int) func(*domain.ConsensusRecord) *domain.ConsensusRecord {
		return func(current *domain.ConsensusRecord) *domain.ConsensusRecord {
			if current == nil {
				return &domain.ConsensusRecord{
					IdentityKey:   "abc123",
					WeightedScore: score,
					SampleCount:   1,
					LastUpdated:   time.Now().UTC(),
				}
			}
			next := *current
			next.WeightedScore = score
			next.SampleCount = current.SampleCount + 1
			next.LastUpdated = time.Now().UTC()
			return &next
		}
	}

	t.Run("update creates then mutates in place", func(t *testing.T) {
		consensus := openTestStore(t).Consensus()

		record, err := consensus.Update(ctx, "abc123", seed(80))
		require.NoError(t, err)
		assert.Equal(t, 80, record.WeightedScore)
		assert.Equal(t, 1, record.SampleCount)

		record, err = consensus.Update(ctx, "abc123", seed(70))
		require.NoError(t, err)
		assert.Equal(t, 70, record.WeightedScore)
		assert.Equal(t, 2, record.SampleCount)

		got, err := consensus.Get(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, 2, got.SampleCount)
	})

	t.Run("fold sees the stored record", func(t *testing.T) {
		consensus := openTestStore(t).Consensus()
		_, err := consensus.Update(ctx, "abc123", seed(80))
		require.NoError(t, err)

		var seen *domain.ConsensusRecord
		_, err = consensus.Update(ctx, "abc123", func(current *domain.ConsensusRecord) *domain.ConsensusRecord {
			seen = current
			return seed(50)(current)
		})
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, 80, seen.WeightedScore)
	})

	t.Run("violations snapshot round trips", func(t *testing.T) {
		consensus := openTestStore(t).Consensus()
		violations := []domain.Violation{{Name: "palm_oil", Points: -10, Evidence: "third ingredient"}}

		_, err := consensus.Update(ctx, "abc123", func(*domain.ConsensusRecord) *domain.ConsensusRecord {
			return &domain.ConsensusRecord{
				IdentityKey:    "abc123",
				WeightedScore:  60,
				SampleCount:    1,
				LastViolations: violations,
				LastUpdated:    time.Now().UTC(),
			}
		})
		require.NoError(t, err)

		got, err := consensus.Get(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, violations, got.LastViolations)
	})

	t.Run("unknown identity returns ErrConsensusNotFound", func(t *testing.T) {
		consensus := openTestStore(t).Consensus()
		_, err := consensus.Get(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrConsensusNotFound)
	})
}

func TestScanLedger(t *testing.T) {
	ctx := context.Background()

	event := func(id, userID string, day time.Time, verdict domain.Verdict) *domain.ScanEvent {
		return &domain.ScanEvent{
			ScanID:      id,
			UserID:      userID,
			Timestamp:   day,
			IdentityKey: "abc123",
			Score:       75,
			Verdict:     verdict,
		}
	}
	day := func(s string) time.Time {
		t2, _ := time.Parse(time.RFC3339, s)
		return t2
	}

	t.Run("consecutive days build a streak, a gap resets it", func(t *testing.T) {
		ledger := openTestStore(t).Ledger()

		require.NoError(t, ledger.Append(ctx, event("s1", "u1", day("2026-03-01T09:00:00Z"), domain.VerdictAcceptable)))
		require.NoError(t, ledger.Append(ctx, event("s2", "u1", day("2026-03-02T10:00:00Z"), domain.VerdictAcceptable)))
		require.NoError(t, ledger.Append(ctx, event("s3", "u1", day("2026-03-03T11:00:00Z"), domain.VerdictCaution)))

		stats, err := ledger.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.CurrentStreak)
		assert.Equal(t, 3, stats.BestStreak)
		assert.Equal(t, 3, stats.TotalEvents)
		assert.Equal(t, 1, stats.FlaggedEvents)

		// two-day gap resets the current streak but not the best
		require.NoError(t, ledger.Append(ctx, event("s4", "u1", day("2026-03-05T08:00:00Z"), domain.VerdictHighCaution)))

		stats, err = ledger.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.CurrentStreak)
		assert.Equal(t, 3, stats.BestStreak)
		assert.Equal(t, 2, stats.FlaggedEvents)
	})

	t.Run("same-day events leave the streak unchanged", func(t *testing.T) {
		ledger := openTestStore(t).Ledger()

		require.NoError(t, ledger.Append(ctx, event("s1", "u1", day("2026-03-01T09:00:00Z"), domain.VerdictAcceptable)))
		require.NoError(t, ledger.Append(ctx, event("s2", "u1", day("2026-03-01T21:00:00Z"), domain.VerdictAcceptable)))

		stats, err := ledger.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.CurrentStreak)
		assert.Equal(t, 2, stats.TotalEvents)
	})

	t.Run("stats equal a replay of the log", func(t *testing.T) {
		ledger := openTestStore(t).Ledger()

		require.NoError(t, ledger.Append(ctx, event("s1", "u1", day("2026-03-01T09:00:00Z"), domain.VerdictExceptional)))
		require.NoError(t, ledger.Append(ctx, event("s2", "u2", day("2026-03-02T09:00:00Z"), domain.VerdictCaution)))
		require.NoError(t, ledger.Append(ctx, event("s3", "u1", day("2026-03-04T09:00:00Z"), domain.VerdictHighCaution)))

		stats, err := ledger.Stats(ctx)
		require.NoError(t, err)
		replayed, err := ledger.Replay(ctx)
		require.NoError(t, err)
		assert.Equal(t, stats, replayed)
	})

	t.Run("events round trip with geo and violations", func(t *testing.T) {
		ledger := openTestStore(t).Ledger()

		full := event("s1", "u1", day("2026-03-01T09:00:00Z"), domain.VerdictCaution)
		full.Violations = []domain.Violation{{Name: "added_sugar", Points: -15}}
		full.ValueDiscrepancy = true
		full.ScoreCapped = true
		full.Geo = &domain.GeoPoint{Lat: 40.0003, Lon: -73.0006, Geohash: "drh5dc"}
		require.NoError(t, ledger.Append(ctx, full))

		events, err := ledger.RecentByUser(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		got := events[0]
		assert.Equal(t, full.Violations, got.Violations)
		assert.True(t, got.ValueDiscrepancy)
		assert.True(t, got.ScoreCapped)
		require.NotNil(t, got.Geo)
		assert.Equal(t, "drh5dc", got.Geo.Geohash)
	})

	t.Run("recent listing is per user, newest first, hides hidden", func(t *testing.T) {
		ledger := openTestStore(t).Ledger()

		require.NoError(t, ledger.Append(ctx, event("s1", "u1", day("2026-03-01T09:00:00Z"), domain.VerdictAcceptable)))
		require.NoError(t, ledger.Append(ctx, event("s2", "u1", day("2026-03-02T09:00:00Z"), domain.VerdictAcceptable)))
		require.NoError(t, ledger.Append(ctx, event("s3", "u2", day("2026-03-02T10:00:00Z"), domain.VerdictAcceptable)))

		events, err := ledger.RecentByUser(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "s2", events[0].ScanID)
		assert.Equal(t, "s1", events[1].ScanID)

		require.NoError(t, ledger.Hide(ctx, "s2"))
		events, err = ledger.RecentByUser(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "s1", events[0].ScanID)
	})

	t.Run("hide of an unknown scan fails", func(t *testing.T) {
		ledger := openTestStore(t).Ledger()
		assert.ErrorIs(t, ledger.Hide(ctx, "missing"), domain.ErrScanNotFound)
	})
}
