package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/eligibility"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

// EligibilityLookups groups the two upstream sources consulted for every evaluation.
type EligibilityLookups struct {
	Exclusions   core.ExclusionsLookup
	Registration core.RegistrationLookup
}

// EligibilityServiceOptions groups dependencies for EligibilityService.
type EligibilityServiceOptions struct {
	Lookups       EligibilityLookups          // Required: exclusions and registration sources
	SizeStandards core.SizeStandardRepository // Optional: size table; the built-in fallback is used when nil
	Logger        *slog.Logger                // Optional: structured logger
}

// EligibilityService runs the evaluation pipeline: validate, look up, classify, decide.
type EligibilityService struct {
	exclusions    core.ExclusionsLookup
	registration  core.RegistrationLookup
	sizeStandards core.SizeStandardRepository
	fallback      map[string]model.SizeStandard
	logger        *slog.Logger
}

var _ core.Evaluator = (*EligibilityService)(nil)

// NewEligibilityService constructs a new EligibilityService.
func NewEligibilityService(opts EligibilityServiceOptions) (*EligibilityService, error) {
	if opts.Lookups.Exclusions == nil {
		return nil, errors.New("ExclusionsLookup is required")
	}
	if opts.Lookups.Registration == nil {
		return nil, errors.New("RegistrationLookup is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &EligibilityService{
		exclusions:    opts.Lookups.Exclusions,
		registration:  opts.Lookups.Registration,
		sizeStandards: opts.SizeStandards,
		fallback:      eligibility.FallbackSizeStandards(),
		logger:        logger.With("component", "eligibility_service"),
	}, nil
}

// Evaluate validates req, runs the lookups concurrently, and assembles the verdict.
// Lookup failures other than not-found surface as upstream_unavailable.
func (s *EligibilityService) Evaluate(
	ctx context.Context,
	req *model.EligibilityRequest,
) (*model.EligibilityVerdict, error) {
	if err := eligibility.ValidateRequest(req); err != nil {
		return nil, err
	}

	var (
		excl model.ExclusionsResult
		reg  model.RegistrationResult
		std  *model.SizeStandard
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := s.exclusions.LookupExclusions(gctx, req.Identifier)
		if apperrors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return lookupError(model.EvidenceSourceExclusions, err)
		}
		if res != nil {
			excl = *res
		}
		return nil
	})
	g.Go(func() error {
		res, err := s.registration.LookupRegistration(gctx, req.Identifier)
		if apperrors.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return lookupError(model.EvidenceSourceEntity, err)
		}
		if res != nil {
			reg = *res
		}
		return nil
	})
	g.Go(func() error {
		std = s.lookupSizeStandard(gctx, req.NAICS)
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "eligibility lookup failed", "naics", req.NAICS, "error", err)
		return nil, err
	}

	return eligibility.Decide(eligibility.Inputs{
		Request:      req,
		Exclusions:   excl,
		Registration: reg,
		Size:         eligibility.ClassifySize(req.NAICS, std, req.SizeBasis),
	}), nil
}

// SizeStandard returns the table row for naics, falling back to the built-in table.
func (s *EligibilityService) SizeStandard(ctx context.Context, naics string) (*model.SizeStandard, error) {
	if !model.ValidNAICS(naics) {
		return nil, apperrors.ValidationField("naics", "invalid NAICS")
	}
	std := s.lookupSizeStandard(ctx, naics)
	if std == nil {
		return nil, apperrors.NotFound("NAICS not found")
	}
	return std, nil
}

// lookupSizeStandard returns nil when neither the table nor the fallback has a row.
// Repository failures degrade to the fallback table.
func (s *EligibilityService) lookupSizeStandard(ctx context.Context, naics string) *model.SizeStandard {
	if s.sizeStandards != nil {
		std, err := s.sizeStandards.Get(ctx, naics)
		switch {
		case err == nil && std != nil:
			return std
		case err != nil && !apperrors.IsNotFound(err):
			s.logger.WarnContext(ctx, "size standard lookup failed, using fallback table",
				"naics", naics, "error", err)
		}
	}
	if row, ok := s.fallback[naics]; ok {
		return &row
	}
	return nil
}

func lookupError(source string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s lookup: %w", source, err)
	}
	if apperrors.IsUpstreamUnavailable(err) {
		return err
	}
	return apperrors.UpstreamUnavailable(source, err)
}
