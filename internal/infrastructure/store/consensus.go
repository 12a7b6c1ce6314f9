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

// ConsensusStore persists consensus records keyed by identity key.
// Implements domain.ConsensusRepository.
type ConsensusStore struct {
	store *Store
}

// Consensus returns the consensus repository.
func (s *Store) Consensus() *ConsensusStore {
	return &ConsensusStore{store: s}
}

// Get returns the consensus record for an identity key, or
// domain.ErrConsensusNotFound.
func (c *ConsensusStore) Get(ctx context.Context, identityKey string) (*domain.ConsensusRecord, error) {
	return scanConsensusRow(c.store.db.QueryRowContext(ctx, `
		SELECT identity_key, weighted_score, sample_count, category, violations_json, last_updated
		FROM consensus_records WHERE identity_key = ?`, identityKey))
}

// Update applies fold atomically inside a transaction. The read and the
// write share the transaction so concurrent updates to the same
// identity serialize at the storage layer; the weighted-average fold is
// not commutative, so interleaving would corrupt the estimate.
func (c *ConsensusStore) Update(
	ctx context.Context,
	identityKey string,
	fold func(current *domain.ConsensusRecord) *domain.ConsensusRecord,
) (*domain.ConsensusRecord, error) {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin consensus tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanConsensusRow(tx.QueryRowContext(ctx, `
		SELECT identity_key, weighted_score, sample_count, category, violations_json, last_updated
		FROM consensus_records WHERE identity_key = ?`, identityKey))
	if err != nil && !errors.Is(err, domain.ErrConsensusNotFound) {
		return nil, err
	}

	next := fold(current)
	if next == nil {
		return nil, fmt.Errorf("consensus fold returned nil for %q", identityKey)
	}

	violationsJSON := []byte("[]")
	if len(next.LastViolations) > 0 {
		if violationsJSON, err = json.Marshal(next.LastViolations); err != nil {
			return nil, fmt.Errorf("encode violations: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO consensus_records (
			identity_key, weighted_score, sample_count, category, violations_json, last_updated
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity_key) DO UPDATE SET
			weighted_score = excluded.weighted_score,
			sample_count = excluded.sample_count,
			category = excluded.category,
			violations_json = excluded.violations_json,
			last_updated = excluded.last_updated`,
		next.IdentityKey, next.WeightedScore, next.SampleCount, next.Category,
		string(violationsJSON), next.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert consensus: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consensus: %w", err)
	}
	return next, nil
}

func scanConsensusRow(row *sql.Row) (*domain.ConsensusRecord, error) {
	var record domain.ConsensusRecord
	var violationsJSON, lastUpdated string
	err := row.Scan(
		&record.IdentityKey, &record.WeightedScore, &record.SampleCount,
		&record.Category, &violationsJSON, &lastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrConsensusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read consensus: %w", err)
	}

	if violationsJSON != "" && violationsJSON != "[]" {
		if err := json.Unmarshal([]byte(violationsJSON), &record.LastViolations); err != nil {
			return nil, fmt.Errorf("decode violations: %w", err)
		}
	}
	if record.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdated); err != nil {
		return nil, fmt.Errorf("parse last_updated: %w", err)
	}
	return &record, nil
}
