package testutil

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/target/eligibility-api/internal/domain/model"
)

// EligibilityRequestBuilder provides a fluent interface for building EligibilityRequest values for testing.
type EligibilityRequestBuilder struct {
	req model.EligibilityRequest
}

// NewEligibilityRequest creates a builder with a UEI identifier and NAICS 541511.
func NewEligibilityRequest() *EligibilityRequestBuilder {
	return &EligibilityRequestBuilder{
		req: model.EligibilityRequest{
			Identifier: model.Identifier{UEI: "ABCDEF123456"},
			NAICS:      "541511",
		},
	}
}

// WithNAICS sets the NAICS code.
func (b *EligibilityRequestBuilder) WithNAICS(code string) *EligibilityRequestBuilder {
	b.req.NAICS = code
	return b
}

// WithIdentifier replaces the identifier.
func (b *EligibilityRequestBuilder) WithIdentifier(id model.Identifier) *EligibilityRequestBuilder {
	b.req.Identifier = id
	return b
}

// WithReceipts sets a receipts size basis.
func (b *EligibilityRequestBuilder) WithReceipts(value float64) *EligibilityRequestBuilder {
	b.req.SizeBasis = &model.SizeBasis{Kind: model.SizeBasisReceipts, Value: &value}
	return b
}

// WithEmployees sets an employees size basis.
func (b *EligibilityRequestBuilder) WithEmployees(value float64) *EligibilityRequestBuilder {
	b.req.SizeBasis = &model.SizeBasis{Kind: model.SizeBasisEmployees, Value: &value}
	return b
}

// WithoutRegistrationCheck disables the active-registration requirement.
func (b *EligibilityRequestBuilder) WithoutRegistrationCheck() *EligibilityRequestBuilder {
	b.req.RequireActiveSAM = BoolPtr(false)
	return b
}

// WithoutEvidence suppresses evidence in the verdict.
func (b *EligibilityRequestBuilder) WithoutEvidence() *EligibilityRequestBuilder {
	b.req.IncludeEvidence = BoolPtr(false)
	return b
}

// Build returns a copy of the request.
func (b *EligibilityRequestBuilder) Build() model.EligibilityRequest {
	return b.req
}

// JSON returns the request encoded as a job item payload.
func (b *EligibilityRequestBuilder) JSON() []byte {
	raw, err := json.Marshal(b.req)
	if err != nil {
		panic(err)
	}
	return raw
}

// NewJobRequest returns a valid CreateJobRequest with a fresh id.
func NewJobRequest(total int) *model.CreateJobRequest {
	return &model.CreateJobRequest{
		ID:    uuid.NewString(),
		Total: total,
	}
}

// Payloads builds n item payloads, each with a distinct UEI.
func Payloads(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = NewEligibilityRequest().
			WithIdentifier(model.Identifier{UEI: "UEI" + uuid.NewString()[:8]}).
			JSON()
	}
	return out
}
