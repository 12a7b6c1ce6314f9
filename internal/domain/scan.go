package domain

import "time"

// GeoPoint is a privacy-bounded location: the coordinate is already
// jittered and the geohash is derived from the jittered value. The raw
// coordinate never appears here.
type GeoPoint struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Geohash string  `json:"geohash"`
}

// ScanEvent is one evaluation event as appended to the ledger.
// Immutable once written; soft-deletable via Hidden, never physically
// removed.
type ScanEvent struct {
	ScanID           string      `json:"scanId"`
	UserID           string      `json:"userId"`
	Timestamp        time.Time   `json:"timestamp"`
	IdentityKey      string      `json:"identityKey"`
	Score            int         `json:"score"`
	Verdict          Verdict     `json:"verdict"`
	Violations       []Violation `json:"violations,omitempty"`
	ValueDiscrepancy bool        `json:"valueDiscrepancy"`
	ScoreCapped      bool        `json:"scoreCapped"`
	Geo              *GeoPoint   `json:"geo,omitempty"`
	Hidden           bool        `json:"hidden,omitempty"`
}

// statsDateLayout is the calendar-day granularity used for streaks.
const statsDateLayout = "2006-01-02"

// StatsDay formats a timestamp at the granularity streaks operate on.
func StatsDay(t time.Time) string {
	return t.UTC().Format(statsDateLayout)
}

// RollingStats is a materialized view over the scan ledger. It is not
// independently authoritative: replaying Advance over the event log in
// timestamp order reconstructs it exactly.
type RollingStats struct {
	TotalEvents   int    `json:"totalEvents"`
	FlaggedEvents int    `json:"flaggedEvents"`
	CurrentStreak int    `json:"currentStreak"`
	BestStreak    int    `json:"bestStreak"`
	LastEventDate string `json:"lastEventDate,omitempty"`
}

// Advance folds one event into the stats. day is the event's calendar
// day (StatsDay). A day exactly one after the previous event extends the
// streak, the same day leaves it unchanged, any gap resets it to 1.
func (s RollingStats) Advance(day string, flagged bool) RollingStats {
	next := s
	next.TotalEvents++
	if flagged {
		next.FlaggedEvents++
	}

	switch {
	case s.LastEventDate == day:
		// second scan of the day, streak unchanged
	case isNextDay(s.LastEventDate, day):
		next.CurrentStreak++
	default:
		next.CurrentStreak = 1
	}

	if next.CurrentStreak > next.BestStreak {
		next.BestStreak = next.CurrentStreak
	}
	next.LastEventDate = day
	return next
}

// isNextDay reports whether day is exactly one calendar day after prev.
func isNextDay(prev, day string) bool {
	if prev == "" {
		return false
	}
	p, err := time.Parse(statsDateLayout, prev)
	if err != nil {
		return false
	}
	return p.AddDate(0, 0, 1).Format(statsDateLayout) == day
}
