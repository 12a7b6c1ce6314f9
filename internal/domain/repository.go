package domain

import "context"

// SourceAdapter is the uniform contract every external lookup tier
// implements. Lookup returns ErrSourceMiss when the source responded but
// does not carry the barcode, and ErrSourceFailure (wrapped) on any
// timeout, transport or payload problem. It must never panic past its
// own boundary and must respect ctx deadlines.
type SourceAdapter interface {
	Name() string
	Lookup(ctx context.Context, barcode string) (*ProductRecord, error)
}

// ProductCacheRepository is the local barcode cache. Put has
// insert-or-replace semantics keyed by barcode (last-write-wins); Get
// returns ErrCacheMiss when the barcode is unknown. No staleness policy
// is enforced here; callers decide via LastUpdated.
type ProductCacheRepository interface {
	Get(ctx context.Context, barcode string) (*ProductRecord, error)
	Put(ctx context.Context, record *ProductRecord) error
}

// ConsensusRepository persists consensus records keyed by identity key.
// Update applies fold atomically (read-modify-write serialized at the
// storage layer): fold receives the current record, or nil on first
// observation, and returns the record to store.
type ConsensusRepository interface {
	Get(ctx context.Context, identityKey string) (*ConsensusRecord, error)
	Update(ctx context.Context, identityKey string, fold func(current *ConsensusRecord) *ConsensusRecord) (*ConsensusRecord, error)
}

// ScanLedgerRepository is the append-only event log plus its derived
// rolling statistics. Append persists the event and folds the stats in
// the same transaction; Stats returns the materialized view.
type ScanLedgerRepository interface {
	Append(ctx context.Context, event *ScanEvent) error
	Hide(ctx context.Context, scanID string) error
	RecentByUser(ctx context.Context, userID string, limit int) ([]ScanEvent, error)
	Stats(ctx context.Context) (*RollingStats, error)
}
