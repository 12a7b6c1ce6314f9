package domain

import "time"

// ConsensusRecord is the trust-weighted rolling score for one product
// identity across every evaluation ever folded into it. Records are
// created on first observation and updated in place; they are never
// deleted (the sample count is a historical trust signal).
type ConsensusRecord struct {
	IdentityKey    string      `json:"identityKey"`
	WeightedScore  int         `json:"weightedScore"` // always in [0,100]
	SampleCount    int         `json:"sampleCount"`   // monotonically non-decreasing
	Category       string      `json:"category,omitempty"`
	LastViolations []Violation `json:"lastViolations,omitempty"`
	LastUpdated    time.Time   `json:"lastUpdated"`
}

// Trustworthy reports whether the consensus has been corroborated by
// enough independent observations to be applied by a consumer.
func (r *ConsensusRecord) Trustworthy(minSamples int) bool {
	return r != nil && r.SampleCount >= minSamples
}
