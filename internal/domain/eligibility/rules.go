// Package eligibility holds the pure decision rules of the eligibility pipeline: input validation,
// size classification, reason ordering, and verdict/summary assembly. It performs no I/O.
package eligibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

const summarySeparator = "; "

// ValidateRequest rejects requests that must never reach an external lookup.
func ValidateRequest(req *model.EligibilityRequest) error {
	if req == nil {
		return apperrors.Validation("request is required")
	}
	if !model.ValidNAICS(req.NAICS) {
		return apperrors.ValidationField("naics", "invalid NAICS")
	}
	if req.Identifier.IsEmpty() {
		return apperrors.ValidationField("identifier", "identifier requires uei, cage, or legal_name")
	}
	if req.SizeBasis != nil && !req.SizeBasis.Kind.Valid() {
		return apperrors.ValidationField("size_basis.kind", "size basis kind must be receipts or employees")
	}
	return nil
}

// ClassifySize compares the supplied basis against the size standard for naics.
// A nil std means the table has no row for the code.
func ClassifySize(naics string, std *model.SizeStandard, basis *model.SizeBasis) model.SizeResult {
	res := model.SizeResult{
		Status: model.SizeStatusUnknown,
		Basis:  model.SizeBasisUnknown,
		NAICS:  naics,
	}
	if basis != nil {
		res.Value = basis.Value
	}
	if std == nil {
		return res
	}

	threshold := std.Threshold
	unit := std.Unit
	res.Threshold = &threshold
	res.Unit = &unit

	if basis == nil || basis.Kind == "" {
		return res
	}
	res.Basis = basis.Kind
	if basis.Value == nil || basis.Kind != std.Basis {
		return res
	}

	if *basis.Value <= std.Threshold {
		res.Status = model.SizeStatusSmall
	} else {
		res.Status = model.SizeStatusOtherThanSmall
	}
	return res
}

// Inputs carries everything the verdict depends on once the lookups have answered.
type Inputs struct {
	Request      *model.EligibilityRequest
	Exclusions   model.ExclusionsResult
	Registration model.RegistrationResult
	Size         model.SizeResult
}

// Decide assembles the verdict. The reasons list order is exclusions, registration, size.
func Decide(in Inputs) *model.EligibilityVerdict {
	required := in.Request.RequireActiveRegistration()
	reasons := make([]model.Reason, 0, 3)
	evidence := make([]model.Evidence, 0, 2)

	hasExclusions := in.Exclusions.Count > 0
	if in.Exclusions.Evidence != nil {
		evidence = append(evidence, *in.Exclusions.Evidence)
	}
	reasons = append(reasons, exclusionReason(in.Exclusions.Count))

	if in.Registration.Evidence != nil {
		evidence = append(evidence, *in.Registration.Evidence)
	}
	active := in.Registration.Active != nil && *in.Registration.Active
	if required {
		reasons = append(reasons, registrationReason(in.Registration.Active))
	}

	reasons = append(reasons, sizeReason(in.Size.Status))

	registrationOK := active || !required
	eligible := !hasExclusions && registrationOK && in.Size.Status != model.SizeStatusOtherThanSmall

	if !in.Request.WantsEvidence() {
		evidence = []model.Evidence{}
	}

	hits := in.Exclusions.Hits
	if hits == nil {
		hits = []model.ExclusionHit{}
	}

	return &model.EligibilityVerdict{
		Eligible: eligible,
		Summary:  summary(hasExclusions, required, registrationOK, in.Size),
		Reasons:  reasons,
		SAM: model.SAMSummary{
			UEI:    in.Registration.UEI,
			CAGE:   in.Registration.CAGE,
			Active: in.Registration.Active,
		},
		Exclusions: model.ExclusionSummary{Count: in.Exclusions.Count, Hits: hits},
		Size:       in.Size,
		Evidence:   evidence,
	}
}

func exclusionReason(count int) model.Reason {
	if count > 0 {
		return model.Reason{Code: model.ReasonHasExclusions, Message: fmt.Sprintf("%d exclusion(s) found", count)}
	}
	return model.Reason{Code: model.ReasonNoExclusions, Message: "No active exclusions found."}
}

func registrationReason(active *bool) model.Reason {
	switch {
	case active == nil:
		return model.Reason{Code: model.ReasonSAMUnknown, Message: "Could not verify SAM registration status."}
	case *active:
		return model.Reason{Code: model.ReasonSAMActive, Message: "Entity has an active registration."}
	default:
		return model.Reason{Code: model.ReasonSAMInactive, Message: "Entity registration not active."}
	}
}

func sizeReason(status model.SizeStatus) model.Reason {
	switch status {
	case model.SizeStatusSmall:
		return model.Reason{Code: model.ReasonSizeSmall, Message: "Meets small business threshold."}
	case model.SizeStatusOtherThanSmall:
		return model.Reason{Code: model.ReasonSizeOTS, Message: "Exceeds small business threshold."}
	default:
		return model.Reason{Code: model.ReasonSizeUnknown, Message: "Size basis missing or mismatched for this NAICS."}
	}
}

func summary(hasExclusions, required, registrationOK bool, size model.SizeResult) string {
	bits := make([]string, 0, 3)
	if hasExclusions {
		bits = append(bits, "Has exclusions")
	} else {
		bits = append(bits, "No exclusions")
	}

	if required {
		if registrationOK {
			bits = append(bits, "active SAM")
		} else {
			bits = append(bits, "SAM not active/unknown")
		}
	}

	switch size.Status {
	case model.SizeStatusSmall:
		bits = append(bits, fmt.Sprintf("size SMALL for %s (threshold: %s)", size.NAICS, formatThreshold(size.Threshold)))
	case model.SizeStatusOtherThanSmall:
		bits = append(bits, fmt.Sprintf("size OTS for %s (threshold: %s)", size.NAICS, formatThreshold(size.Threshold)))
	default:
		bits = append(bits, "size evidence required")
	}
	return strings.Join(bits, summarySeparator)
}

func formatThreshold(t *float64) string {
	if t == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*t, 'f', -1, 64)
}
