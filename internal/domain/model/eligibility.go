package model

import (
	"strings"
	"time"
)

// SizeBasisKind names the measure a size standard is expressed in.
type SizeBasisKind string

// SizeStatus is the outcome of comparing a size basis against a standard.
type SizeStatus string

const (
	// SizeBasisReceipts measures average annual receipts.
	SizeBasisReceipts SizeBasisKind = "receipts"
	// SizeBasisEmployees measures average employee headcount.
	SizeBasisEmployees SizeBasisKind = "employees"
	// SizeBasisUnknown is reported when no basis could be determined.
	SizeBasisUnknown SizeBasisKind = "unknown"

	SizeStatusSmall          SizeStatus = "small"
	SizeStatusOtherThanSmall SizeStatus = "other_than_small"
	SizeStatusUnknown        SizeStatus = "unknown"
)

// Valid returns true for the two basis kinds a caller may supply.
func (k SizeBasisKind) Valid() bool {
	return k == SizeBasisReceipts || k == SizeBasisEmployees
}

// Reason codes, in the order the pipeline can emit them.
const (
	ReasonHasExclusions = "HAS_EXCLUSIONS"
	ReasonNoExclusions  = "NO_EXCLUSIONS"
	ReasonSAMActive     = "SAM_ACTIVE"
	ReasonSAMInactive   = "SAM_INACTIVE"
	ReasonSAMUnknown    = "SAM_UNKNOWN"
	ReasonSizeSmall     = "SIZE_SMALL"
	ReasonSizeOTS       = "SIZE_OTS"
	ReasonSizeUnknown   = "SIZE_UNKNOWN"
)

// Evidence source tags.
const (
	EvidenceSourceExclusions = "sam_exclusions_api"
	EvidenceSourceEntity     = "sam_entity_api"
)

// Identifier names the business being evaluated. At least one field is required.
type Identifier struct {
	UEI       string `json:"uei,omitempty"`
	CAGE      string `json:"cage,omitempty"`
	LegalName string `json:"legal_name,omitempty"`
}

// Normalized trims every field and upper-cases UEI and CAGE, which SAM treats as case-insensitive codes.
func (i Identifier) Normalized() Identifier {
	return Identifier{
		UEI:       strings.ToUpper(strings.TrimSpace(i.UEI)),
		CAGE:      strings.ToUpper(strings.TrimSpace(i.CAGE)),
		LegalName: strings.TrimSpace(i.LegalName),
	}
}

// IsEmpty reports whether no identifying field is set.
func (i Identifier) IsEmpty() bool {
	return strings.TrimSpace(i.UEI) == "" &&
		strings.TrimSpace(i.CAGE) == "" &&
		strings.TrimSpace(i.LegalName) == ""
}

// SizeBasis is the caller-supplied measure used for the size determination.
type SizeBasis struct {
	Kind  SizeBasisKind `json:"kind"`
	Value *float64      `json:"value,omitempty"`
}

// EligibilityRequest is the input of a single evaluation, synchronous or queued.
type EligibilityRequest struct {
	Identifier       Identifier `json:"identifier"`
	NAICS            string     `json:"naics"`
	SizeBasis        *SizeBasis `json:"size_basis,omitempty"`
	RequireActiveSAM *bool      `json:"require_active_sam,omitempty"`
	IncludeEvidence  *bool      `json:"include_evidence,omitempty"`
}

// RequireActiveRegistration defaults to true when unset.
func (r *EligibilityRequest) RequireActiveRegistration() bool {
	return r.RequireActiveSAM == nil || *r.RequireActiveSAM
}

// WantsEvidence defaults to true when unset.
func (r *EligibilityRequest) WantsEvidence() bool {
	return r.IncludeEvidence == nil || *r.IncludeEvidence
}

// Reason is one coded explanation of the verdict.
type Reason struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Evidence records which external source was consulted and when.
type Evidence struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Reference string    `json:"reference"`
}

// SAMSummary is the registration summary. Active is nil when the status is unknown.
type SAMSummary struct {
	UEI    *string `json:"uei"`
	CAGE   *string `json:"cage"`
	Active *bool   `json:"active"`
}

// ExclusionHit is one exclusion record returned by the exclusions source.
type ExclusionHit struct {
	Name            string  `json:"name"`
	Type            *string `json:"type"`
	ExclusionStatus *string `json:"exclusion_status"`
	ExclusionEnd    *string `json:"exclusion_end"`
}

// ExclusionSummary aggregates exclusion hits.
type ExclusionSummary struct {
	Count int            `json:"count"`
	Hits  []ExclusionHit `json:"hits"`
}

// SizeResult is the size determination for the requested NAICS.
type SizeResult struct {
	Status    SizeStatus    `json:"status"`
	Basis     SizeBasisKind `json:"basis"`
	Value     *float64      `json:"value"`
	Threshold *float64      `json:"threshold"`
	Unit      *string       `json:"unit"`
	NAICS     string        `json:"naics"`
}

// EligibilityVerdict is the structured outcome of one evaluation.
type EligibilityVerdict struct {
	Eligible   bool             `json:"eligible"`
	Summary    string           `json:"summary"`
	Reasons    []Reason         `json:"reasons"`
	SAM        SAMSummary       `json:"sam"`
	Exclusions ExclusionSummary `json:"exclusions"`
	Size       SizeResult       `json:"size"`
	Evidence   []Evidence       `json:"evidence"`
}

// ExclusionsResult is the normalised answer of an exclusions lookup.
type ExclusionsResult struct {
	Count    int
	Hits     []ExclusionHit
	Evidence *Evidence
}

// RegistrationResult is the normalised answer of a registration lookup.
type RegistrationResult struct {
	UEI      *string
	CAGE     *string
	Active   *bool
	Evidence *Evidence
}
