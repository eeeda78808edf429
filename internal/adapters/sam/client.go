// Package sam queries the SAM.gov entity and exclusions APIs and normalises
// their responses into the lookup results the eligibility pipeline consumes.
package sam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/eligibility-api/internal/core"
	"github.com/target/eligibility-api/internal/domain/model"
	apperrors "github.com/target/eligibility-api/internal/errors"
)

const (
	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 8 << 20

	mockUEI  = "MOCKUEI123456"
	mockCAGE = "MOCK1"
)

// Response projections. SAM nests results under _embedded.
const (
	exclusionHitsExpr = `_embedded.exclusions[].{name: name, type: exclusionType, ` +
		`exclusion_status: exclusionStatus, exclusion_end: exclusionEndDate}`
	firstEntityExpr = `_embedded.entities[0].{uei: entity.uei, cage: entity.cageCode, status: registration.status}`
)

// Config configures the SAM.gov client.
type Config struct {
	EntityURL     string
	ExclusionsURL string
	APIKey        string
	Timeout       time.Duration
	// Mock answers every lookup locally.
	Mock   bool
	Client *http.Client
	// Now is the evidence clock; time.Now when nil.
	Now func() time.Time
}

// Client implements both upstream lookups against SAM.gov.
type Client struct {
	entityURL     string
	exclusionsURL string
	apiKey        string
	mock          bool
	http          *http.Client
	now           func() time.Time
}

var (
	_ core.ExclusionsLookup   = (*Client)(nil)
	_ core.RegistrationLookup = (*Client)(nil)
)

// NewClient validates cfg. Endpoint URLs are only required outside mock mode.
func NewClient(cfg Config) (*Client, error) {
	for _, expr := range []string{exclusionHitsExpr, firstEntityExpr} {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile projection %q: %w", expr, err)
		}
	}

	c := &Client{
		entityURL:     strings.TrimSpace(cfg.EntityURL),
		exclusionsURL: strings.TrimSpace(cfg.ExclusionsURL),
		apiKey:        cfg.APIKey,
		mock:          cfg.Mock,
		http:          cfg.Client,
		now:           cfg.Now,
	}

	if !c.mock {
		for name, raw := range map[string]string{"entity": c.entityURL, "exclusions": c.exclusionsURL} {
			u, err := url.Parse(raw)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return nil, fmt.Errorf("sam %s url %q is not absolute", name, raw)
			}
		}
	}

	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// LookupExclusions returns the active exclusion records for id. A 404 is an empty result.
func (c *Client) LookupExclusions(ctx context.Context, id model.Identifier) (*model.ExclusionsResult, error) {
	id = id.Normalized()
	if c.mock {
		// Nothing was fetched, so there is no evidence to attach.
		return &model.ExclusionsResult{Hits: []model.ExclusionHit{}}, nil
	}

	params := url.Values{}
	setIfPresent(params, "uei", id.UEI)
	setIfPresent(params, "cageCode", id.CAGE)
	setIfPresent(params, "name", id.LegalName)

	doc, ref, err := c.get(ctx, model.EvidenceSourceExclusions, c.exclusionsURL, params)
	if err != nil {
		return nil, err
	}

	res := &model.ExclusionsResult{
		Hits:     []model.ExclusionHit{},
		Evidence: c.evidence(model.EvidenceSourceExclusions, ref),
	}
	if doc == nil {
		return res, nil
	}

	projected, err := jmespath.Search(exclusionHitsExpr, doc)
	if err != nil {
		return nil, apperrors.UpstreamUnavailable(model.EvidenceSourceExclusions, err)
	}
	rows, _ := projected.([]any)
	for _, row := range rows {
		fields, ok := row.(map[string]any)
		if !ok {
			continue
		}
		res.Hits = append(res.Hits, model.ExclusionHit{
			Name:            stringValue(fields["name"]),
			Type:            optionalString(fields["type"]),
			ExclusionStatus: optionalString(fields["exclusion_status"]),
			ExclusionEnd:    optionalString(fields["exclusion_end"]),
		})
	}
	res.Count = len(res.Hits)
	return res, nil
}

// LookupRegistration reports whether the first matching entity has an Active registration.
// A 404 or an empty entity list yields Active == nil and echoes the requested identifiers.
func (c *Client) LookupRegistration(ctx context.Context, id model.Identifier) (*model.RegistrationResult, error) {
	id = id.Normalized()
	if c.mock {
		active := true
		return &model.RegistrationResult{
			UEI:    optionalString(fallback(id.UEI, mockUEI)),
			CAGE:   optionalString(fallback(id.CAGE, mockCAGE)),
			Active: &active,
		}, nil
	}

	params := url.Values{}
	params.Set("includes", "coreData,registration")
	setIfPresent(params, "uei", id.UEI)
	setIfPresent(params, "cageCode", id.CAGE)
	setIfPresent(params, "legalBusinessName", id.LegalName)

	doc, ref, err := c.get(ctx, model.EvidenceSourceEntity, c.entityURL, params)
	if err != nil {
		return nil, err
	}

	unknown := &model.RegistrationResult{
		UEI:      optionalString(id.UEI),
		CAGE:     optionalString(id.CAGE),
		Evidence: c.evidence(model.EvidenceSourceEntity, ref),
	}
	if doc == nil {
		return unknown, nil
	}

	projected, err := jmespath.Search(firstEntityExpr, doc)
	if err != nil {
		return nil, apperrors.UpstreamUnavailable(model.EvidenceSourceEntity, err)
	}
	fields, ok := projected.(map[string]any)
	if !ok {
		return unknown, nil
	}

	active := stringValue(fields["status"]) == "Active"
	return &model.RegistrationResult{
		UEI:      optionalString(fields["uei"]),
		CAGE:     optionalString(fields["cage"]),
		Active:   &active,
		Evidence: unknown.Evidence,
	}, nil
}

// get performs the lookup. It returns a nil document for 404 and the request URL
// with the api_key parameter removed as the evidence reference.
func (c *Client) get(ctx context.Context, source, base string, params url.Values) (any, string, error) {
	reference := base
	if encoded := params.Encode(); encoded != "" {
		reference += "?" + encoded
	}

	withKey := url.Values{}
	for k, v := range params {
		withKey[k] = v
	}
	withKey.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+withKey.Encode(), nil)
	if err != nil {
		return nil, reference, fmt.Errorf("build %s request: %w", source, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, reference, ctx.Err()
		}
		return nil, reference, apperrors.UpstreamUnavailable(source, scrubKey(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, reference, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, reference, apperrors.UpstreamUnavailable(source,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}

	var doc any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&doc); err != nil {
		return nil, reference, apperrors.UpstreamUnavailable(source, fmt.Errorf("decode response: %w", err))
	}
	return doc, reference, nil
}

func (c *Client) evidence(source, reference string) *model.Evidence {
	return &model.Evidence{
		Source:    source,
		FetchedAt: c.now().UTC().Truncate(time.Second),
		Reference: reference,
	}
}

// scrubKey removes the API key from transport errors, which embed the request URL.
func scrubKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), key, "REDACTED"))
}

func setIfPresent(v url.Values, key, value string) {
	if s := strings.TrimSpace(value); s != "" {
		v.Set(key, s)
	}
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
