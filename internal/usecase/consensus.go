package usecase

import (
	"context"
	"math"
	"time"

	"github.com/shelfscore/backend/internal/domain"
)

// ConsensusConfig holds the weighting tunables. The steady-state weight
// and sample thresholds are heuristic policy values; they stay named
// and configurable rather than re-derived.
type ConsensusConfig struct {
	// SteadyStateWeight is the inertia once enough samples exist: one
	// new sample can shift the consensus by at most (1-w) of the delta.
	SteadyStateWeight float64
	// EarlySampleThreshold is the sample count below which the
	// fast-converging n/(n+1) weighting applies.
	EarlySampleThreshold int
	// TrustThreshold is the minimum sample count before a consumer
	// should apply the consensus.
	TrustThreshold int
}

// ConsensusService folds repeated noisy evaluations of one identity
// into a stable running estimate. The fold itself is pure; serialization
// of concurrent updates is the repository's job (the weighted average is
// not commutative under interleaving).
type ConsensusService struct {
	repo   domain.ConsensusRepository
	config ConsensusConfig
	now    func() time.Time
}

// NewConsensusService creates a consensus service, applying defaults
// for zero config values (weight 0.9, early threshold 3, trust 2).
func NewConsensusService(repo domain.ConsensusRepository, config ConsensusConfig) *ConsensusService {
	if config.SteadyStateWeight <= 0 || config.SteadyStateWeight >= 1 {
		config.SteadyStateWeight = 0.9
	}
	if config.EarlySampleThreshold <= 0 {
		config.EarlySampleThreshold = 3
	}
	if config.TrustThreshold <= 0 {
		config.TrustThreshold = 2
	}
	return &ConsensusService{repo: repo, config: config, now: time.Now}
}

// Update folds a new observation into the identity's consensus record,
// creating it on first observation. The stored violation list is
// replaced with this observation's snapshot; only the running score
// carries history.
func (s *ConsensusService) Update(
	ctx context.Context,
	identityKey string,
	score int,
	violations []domain.Violation,
	category string,
) (*domain.ConsensusRecord, error) {
	now := s.now().UTC()

	return s.repo.Update(ctx, identityKey, func(current *domain.ConsensusRecord) *domain.ConsensusRecord {
		if current == nil {
			return &domain.ConsensusRecord{
				IdentityKey:    identityKey,
				WeightedScore:  clampConsensus(score),
				SampleCount:    1,
				Category:       category,
				LastViolations: violations,
				LastUpdated:    now,
			}
		}

		w := s.weightFor(current.SampleCount)
		blended := float64(current.WeightedScore)*w + float64(score)*(1-w)

		next := *current
		next.WeightedScore = clampConsensus(int(math.Round(blended)))
		next.SampleCount = current.SampleCount + 1
		next.LastViolations = violations
		next.LastUpdated = now
		if category != "" {
			next.Category = category
		}
		return &next
	})
}

// Get returns the current consensus record for an identity, or
// domain.ErrConsensusNotFound.
func (s *ConsensusService) Get(ctx context.Context, identityKey string) (*domain.ConsensusRecord, error) {
	return s.repo.Get(ctx, identityKey)
}

// TrustThreshold exposes the configured minimum sample count so callers
// can label a consensus as trustworthy.
func (s *ConsensusService) TrustThreshold() int {
	return s.config.TrustThreshold
}

// weightFor returns the inertia of the existing consensus given how
// many samples back it: n/(n+1) while converging, then the fixed
// steady-state weight.
func (s *ConsensusService) weightFor(sampleCount int) float64 {
	if sampleCount < s.config.EarlySampleThreshold {
		return float64(sampleCount) / float64(sampleCount+1)
	}
	return s.config.SteadyStateWeight
}

func clampConsensus(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
