package domain

// Violation is a single itemized deduction claimed by the evaluation
// producer. Points are stored as reported; only their magnitude matters
// when reconciling the claimed score.
type Violation struct {
	Name     string  `json:"name"`
	Points   float64 `json:"points"`
	Evidence string  `json:"evidence,omitempty"`
}

// RawEvaluation is the evaluation document after parsing, with defaults
// filled for every optional field. The producer's JSON is never trusted
// directly; this is the only shape the rest of the system sees.
type RawEvaluation struct {
	ClaimedScore     float64     `json:"claimedScore"`
	Violations       []Violation `json:"violations"`
	ValueDiscrepancy bool        `json:"valueDiscrepancy"`
	Readable         bool        `json:"readable"`
}

// Verdict is the label derived from a validated score's band.
type Verdict string

const (
	VerdictExceptional Verdict = "exceptional"  // [90,100]
	VerdictAcceptable  Verdict = "acceptable"   // [70,89]
	VerdictCaution     Verdict = "caution"      // [40,69]
	VerdictHighCaution Verdict = "high_caution" // [0,39]
	VerdictUnclear     Verdict = "unclear"      // unreadable document
)

// Flagged reports whether the verdict counts toward flagged-event stats.
func (v Verdict) Flagged() bool {
	return v == VerdictCaution || v == VerdictHighCaution
}

// ValidatedScore is the policy-compliant result of reconciling a raw
// evaluation against its own deductions and the business-rule caps.
type ValidatedScore struct {
	Score            int     `json:"score"`
	Verdict          Verdict `json:"verdict"`
	ValueDiscrepancy bool    `json:"valueDiscrepancy"`
	ScoreCapped      bool    `json:"scoreCapped"`
}
