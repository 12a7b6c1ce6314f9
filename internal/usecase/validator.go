package usecase

import (
	"math"

	"github.com/tidwall/gjson"

	"github.com/shelfscore/backend/internal/domain"
)

// Verdict band boundaries (inclusive lower bounds).
const (
	bandExceptional = 90
	bandAcceptable  = 70
	bandCaution     = 40
)

// ValidatorConfig holds the reconciliation tunables. The defaults match
// long-standing policy values; they are heuristic, so they stay named
// and configurable rather than derived.
type ValidatorConfig struct {
	// ReconcileTolerance is the leniency margin allowed between the
	// claimed score and what the listed deductions justify, absorbing
	// minor rounding by the producer.
	ReconcileTolerance float64
	// DiscrepancyCap is the hard ceiling applied when the producer
	// flagged a value discrepancy.
	DiscrepancyCap int
}

// ScoreValidator reconciles externally-produced evaluations into
// policy-compliant scores. It is the single point where a producer's
// claimed numbers are made trustworthy before anything else sees them.
type ScoreValidator struct {
	tolerance float64
	cap       int
}

// NewScoreValidator creates a validator, applying defaults for zero
// config values (tolerance 5, cap 60).
func NewScoreValidator(config ValidatorConfig) *ScoreValidator {
	tolerance := config.ReconcileTolerance
	if tolerance <= 0 {
		tolerance = 5
	}
	cap := config.DiscrepancyCap
	if cap <= 0 {
		cap = 60
	}
	return &ScoreValidator{tolerance: tolerance, cap: cap}
}

// ParseEvaluation converts the producer's loosely-shaped JSON document
// into a RawEvaluation with defaults for every optional or malformed
// field. An unparseable document, or one with no score at all, comes
// back with Readable=false. Never returns an error: the terminal
// degraded state is an unreadable evaluation, not a failure.
func ParseEvaluation(data []byte) domain.RawEvaluation {
	raw := domain.RawEvaluation{Readable: true}

	if !gjson.ValidBytes(data) {
		raw.Readable = false
		return raw
	}
	doc := gjson.ParseBytes(data)

	if r := doc.Get("readable"); r.Exists() && !r.Bool() {
		raw.Readable = false
	}

	score := doc.Get("score")
	if !score.Exists() {
		// missing score is indistinguishable from an unreadable document
		raw.Readable = false
		return raw
	}
	// gjson coerces numeric-like strings ("87") for us
	raw.ClaimedScore = score.Float()

	doc.Get("violations").ForEach(func(_, v gjson.Result) bool {
		raw.Violations = append(raw.Violations, domain.Violation{
			Name:     v.Get("name").String(),
			Points:   v.Get("points").Float(),
			Evidence: v.Get("evidence").String(),
		})
		return true
	})

	raw.ValueDiscrepancy = doc.Get("value_discrepancy").Bool()
	return raw
}

// Validate reconciles a raw evaluation into a normalized score and
// verdict. The output can never exceed what the evaluation's own
// deductions justify, and can never escape the discrepancy cap.
func (v *ScoreValidator) Validate(raw domain.RawEvaluation) domain.ValidatedScore {
	if !raw.Readable {
		return domain.ValidatedScore{Score: 0, Verdict: domain.VerdictUnclear}
	}

	claimed := clampScore(raw.ClaimedScore)

	// What the itemized deductions actually justify.
	deducted := 0.0
	for _, violation := range raw.Violations {
		deducted += math.Abs(violation.Points)
	}
	expected := math.Max(0, 100-deducted)

	capped := false
	if claimed > expected+v.tolerance {
		claimed = expected
		capped = true
	}

	// Applied after reconciliation so a favorable deduction sum cannot
	// defeat the business-rule cap.
	if raw.ValueDiscrepancy && claimed > float64(v.cap) {
		claimed = float64(v.cap)
		capped = true
	}

	score := int(math.Round(claimed))
	return domain.ValidatedScore{
		Score:            score,
		Verdict:          verdictFor(score),
		ValueDiscrepancy: raw.ValueDiscrepancy,
		ScoreCapped:      capped,
	}
}

// clampScore coerces any claimed value into [0,100]; out-of-range input
// is clamped, never rejected.
func clampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// verdictFor maps a normalized score to its fixed band.
func verdictFor(score int) domain.Verdict {
	switch {
	case score >= bandExceptional:
		return domain.VerdictExceptional
	case score >= bandAcceptable:
		return domain.VerdictAcceptable
	case score >= bandCaution:
		return domain.VerdictCaution
	default:
		return domain.VerdictHighCaution
	}
}
