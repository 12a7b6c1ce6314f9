package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shelfscore/backend/internal/domain"
)

// ScanRequest is one evaluation event as submitted by the caller. The
// caller supplies either a barcode or a name/brand pair, the raw
// evaluation document produced by its evaluation capability, and
// optionally the true location (which is jittered before anything is
// persisted).
type ScanRequest struct {
	UserID      string
	Barcode     string
	ProductName string
	Brand       string
	Evaluation  []byte
	Lat         *float64
	Lon         *float64
}

// ScanResult is everything derived from recording one scan.
type ScanResult struct {
	Event     *domain.ScanEvent
	Product   *domain.ProductRecord
	Identity  domain.ProductIdentity
	Consensus *domain.ConsensusRecord
	Stats     *domain.RollingStats
}

// ScanService orchestrates a full evaluation event: resolve the
// product, validate the externally-produced evaluation, fold the
// consensus, append to the ledger, and privacy-encode the location.
// No step past validation is fatal; the worst case is a result with
// fewer derived fields, never an error surfaced for a persistence
// hiccup.
type ScanService struct {
	resolution *ResolutionService
	validator  *ScoreValidator
	consensus  *ConsensusService
	ledger     domain.ScanLedgerRepository
	privacy    *PrivacyEncoder
	log        *logrus.Logger
	now        func() time.Time
}

// NewScanService creates a scan service with its collaborators.
func NewScanService(
	resolution *ResolutionService,
	validator *ScoreValidator,
	consensus *ConsensusService,
	ledger domain.ScanLedgerRepository,
	privacy *PrivacyEncoder,
	log *logrus.Logger,
) *ScanService {
	if log == nil {
		log = logrus.New()
	}
	return &ScanService{
		resolution: resolution,
		validator:  validator,
		consensus:  consensus,
		ledger:     ledger,
		privacy:    privacy,
		log:        log,
		now:        time.Now,
	}
}

// RecordScan records one evaluation event end to end.
func (s *ScanService) RecordScan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	if req.UserID == "" || len(req.Evaluation) == 0 {
		return nil, domain.ErrInvalidRequest
	}
	if req.Barcode == "" && req.ProductName == "" {
		return nil, domain.ErrInvalidRequest
	}

	result := &ScanResult{}

	// Resolve descriptive data when a barcode is present. NotFound is
	// not an error here: the evaluation still stands on its own.
	name, brand, category := req.ProductName, req.Brand, ""
	if req.Barcode != "" {
		record, err := s.resolution.ResolveBarcode(ctx, req.Barcode)
		switch {
		case err == nil:
			result.Product = record
			category = record.CategoryHint
			if name == "" {
				name = record.Name
			}
			if brand == "" {
				brand = record.Brand
			}
		case errors.Is(err, domain.ErrProductNotFound):
			s.log.WithField("barcode", req.Barcode).Debug("barcode unresolved, scoring without product data")
		default:
			return nil, err
		}
	}

	result.Identity = ResolveIdentity(name, brand)

	raw := ParseEvaluation(req.Evaluation)
	validated := s.validator.Validate(raw)

	event := &domain.ScanEvent{
		ScanID:           uuid.NewString(),
		UserID:           req.UserID,
		Timestamp:        s.now().UTC(),
		IdentityKey:      result.Identity.IdentityKey,
		Score:            validated.Score,
		Verdict:          validated.Verdict,
		Violations:       raw.Violations,
		ValueDiscrepancy: validated.ValueDiscrepancy,
		ScoreCapped:      validated.ScoreCapped,
	}
	if req.Lat != nil && req.Lon != nil {
		event.Geo = s.privacy.EncodePoint(*req.Lat, *req.Lon)
	}
	result.Event = event

	consensusRecord, err := s.consensus.Update(ctx, event.IdentityKey, event.Score, event.Violations, category)
	if err != nil {
		s.log.WithError(err).WithField("identityKey", event.IdentityKey).Warn("consensus update failed")
	} else {
		result.Consensus = consensusRecord
	}

	if err := s.ledger.Append(ctx, event); err != nil {
		s.log.WithError(err).WithField("scanId", event.ScanID).Warn("ledger append failed")
	} else if stats, err := s.ledger.Stats(ctx); err == nil {
		result.Stats = stats
	}

	return result, nil
}

// ConsensusFor returns the consensus for an identity along with whether
// it has enough corroboration to be applied by the caller.
func (s *ScanService) ConsensusFor(ctx context.Context, identityKey string) (*domain.ConsensusRecord, bool, error) {
	record, err := s.consensus.Get(ctx, identityKey)
	if err != nil {
		return nil, false, err
	}
	return record, record.Trustworthy(s.consensus.TrustThreshold()), nil
}
