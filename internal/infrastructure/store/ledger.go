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

// ScanLedger is the append-only scan event log plus the rolling-stats
// materialized view. Implements domain.ScanLedgerRepository.
type ScanLedger struct {
	store *Store
}

// Ledger returns the scan ledger repository.
func (s *Store) Ledger() *ScanLedger {
	return &ScanLedger{store: s}
}

// Append persists the immutable event and folds the rolling stats in
// the same transaction, so the materialized view can never drift from
// the log it summarizes.
func (l *ScanLedger) Append(ctx context.Context, event *domain.ScanEvent) error {
	if event == nil || event.ScanID == "" {
		return domain.ErrInvalidRequest
	}

	violationsJSON := []byte("[]")
	if len(event.Violations) > 0 {
		var err error
		if violationsJSON, err = json.Marshal(event.Violations); err != nil {
			return fmt.Errorf("encode violations: %w", err)
		}
	}

	var geoLat, geoLon sql.NullFloat64
	var geohash sql.NullString
	if event.Geo != nil {
		geoLat = sql.NullFloat64{Float64: event.Geo.Lat, Valid: true}
		geoLon = sql.NullFloat64{Float64: event.Geo.Lon, Valid: true}
		geohash = sql.NullString{String: event.Geo.Geohash, Valid: true}
	}

	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_events (
			scan_id, user_id, timestamp, identity_key, score, verdict,
			violations_json, value_discrepancy, score_capped,
			geo_lat, geo_lon, geohash, hidden
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		event.ScanID, event.UserID, event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.IdentityKey, event.Score, string(event.Verdict),
		string(violationsJSON), boolToInt(event.ValueDiscrepancy), boolToInt(event.ScoreCapped),
		geoLat, geoLon, geohash,
	)
	if err != nil {
		return fmt.Errorf("insert scan event: %w", err)
	}

	stats, err := scanStatsRow(tx.QueryRowContext(ctx, `
		SELECT total_events, flagged_events, current_streak, best_streak, last_event_date
		FROM rolling_stats WHERE id = 1`))
	if err != nil {
		return err
	}

	next := stats.Advance(domain.StatsDay(event.Timestamp), event.Verdict.Flagged())
	_, err = tx.ExecContext(ctx, `
		UPDATE rolling_stats SET
			total_events = ?, flagged_events = ?, current_streak = ?,
			best_streak = ?, last_event_date = ?
		WHERE id = 1`,
		next.TotalEvents, next.FlaggedEvents, next.CurrentStreak,
		next.BestStreak, next.LastEventDate,
	)
	if err != nil {
		return fmt.Errorf("update rolling stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}

// Hide soft-deletes an event. The row stays in the log; nothing is ever
// physically removed.
func (l *ScanLedger) Hide(ctx context.Context, scanID string) error {
	res, err := l.store.db.ExecContext(ctx,
		"UPDATE scan_events SET hidden = 1 WHERE scan_id = ?", scanID)
	if err != nil {
		return fmt.Errorf("hide scan event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("hide scan event: %w", err)
	}
	if affected == 0 {
		return domain.ErrScanNotFound
	}
	return nil
}

// RecentByUser returns a user's visible events, newest first, via the
// (user_id, timestamp) index.
func (l *ScanLedger) RecentByUser(ctx context.Context, userID string, limit int) ([]domain.ScanEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.store.db.QueryContext(ctx, `
		SELECT scan_id, user_id, timestamp, identity_key, score, verdict,
		       violations_json, value_discrepancy, score_capped,
		       geo_lat, geo_lon, geohash, hidden
		FROM scan_events
		WHERE user_id = ? AND hidden = 0
		ORDER BY timestamp DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query scan events: %w", err)
	}
	defer rows.Close()

	var events []domain.ScanEvent
	for rows.Next() {
		event, err := scanEventRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scan events: %w", err)
	}
	return events, nil
}

// Stats returns the rolling statistics singleton.
func (l *ScanLedger) Stats(ctx context.Context) (*domain.RollingStats, error) {
	stats, err := scanStatsRow(l.store.db.QueryRowContext(ctx, `
		SELECT total_events, flagged_events, current_streak, best_streak, last_event_date
		FROM rolling_stats WHERE id = 1`))
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Replay rebuilds the rolling stats from the event log in timestamp
// order. The result must equal Stats; used to verify the materialized
// view.
func (l *ScanLedger) Replay(ctx context.Context) (*domain.RollingStats, error) {
	rows, err := l.store.db.QueryContext(ctx,
		"SELECT timestamp, verdict FROM scan_events ORDER BY timestamp ASC")
	if err != nil {
		return nil, fmt.Errorf("query events for replay: %w", err)
	}
	defer rows.Close()

	var stats domain.RollingStats
	for rows.Next() {
		var timestamp, verdict string
		if err := rows.Scan(&timestamp, &verdict); err != nil {
			return nil, fmt.Errorf("scan replay row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("parse replay timestamp: %w", err)
		}
		stats = stats.Advance(domain.StatsDay(ts), domain.Verdict(verdict).Flagged())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate replay rows: %w", err)
	}
	return &stats, nil
}

func scanStatsRow(row *sql.Row) (domain.RollingStats, error) {
	var stats domain.RollingStats
	err := row.Scan(
		&stats.TotalEvents, &stats.FlaggedEvents, &stats.CurrentStreak,
		&stats.BestStreak, &stats.LastEventDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RollingStats{}, nil
	}
	if err != nil {
		return domain.RollingStats{}, fmt.Errorf("read rolling stats: %w", err)
	}
	return stats, nil
}

func scanEventRow(rows *sql.Rows) (*domain.ScanEvent, error) {
	var event domain.ScanEvent
	var timestamp, verdict, violationsJSON string
	var valueDiscrepancy, scoreCapped, hidden int
	var geoLat, geoLon sql.NullFloat64
	var geohash sql.NullString

	err := rows.Scan(
		&event.ScanID, &event.UserID, &timestamp, &event.IdentityKey,
		&event.Score, &verdict, &violationsJSON, &valueDiscrepancy,
		&scoreCapped, &geoLat, &geoLon, &geohash, &hidden,
	)
	if err != nil {
		return nil, fmt.Errorf("scan event row: %w", err)
	}

	if event.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
		return nil, fmt.Errorf("parse event timestamp: %w", err)
	}
	event.Verdict = domain.Verdict(verdict)
	event.ValueDiscrepancy = valueDiscrepancy != 0
	event.ScoreCapped = scoreCapped != 0
	event.Hidden = hidden != 0
	if violationsJSON != "" && violationsJSON != "[]" {
		if err := json.Unmarshal([]byte(violationsJSON), &event.Violations); err != nil {
			return nil, fmt.Errorf("decode event violations: %w", err)
		}
	}
	if geoLat.Valid && geoLon.Valid {
		event.Geo = &domain.GeoPoint{
			Lat:     geoLat.Float64,
			Lon:     geoLon.Float64,
			Geohash: geohash.String,
		}
	}
	return &event, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
