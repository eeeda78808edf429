// Package core defines the ports between the eligibility services and their adapters,
// plus the small pieces of business logic that only compose those ports.
package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/target/eligibility-api/internal/domain/model"
)

// CacheRepository defines the interface for caching operations.
// The core defines it and the data layer provides the Redis implementation.
type CacheRepository interface {
	// Set stores a value with the given key and TTL. A zero TTL never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns nil when the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete returns true if the key was deleted.
	Delete(ctx context.Context, key string) (bool, error)

	// Health reports whether the backing store is reachable; /v1/health surfaces it.
	Health(ctx context.Context) error
}

// CachedLookups decorates the upstream lookups with a read-through cache.
// Cache failures are logged and never fail a lookup.
type CachedLookups struct {
	cache        CacheRepository
	exclusions   ExclusionsLookup
	registration RegistrationLookup
	ttl          time.Duration
	logger       *slog.Logger
}

// CachedLookupsOptions bundles dependencies for NewCachedLookups.
type CachedLookupsOptions struct {
	Cache        CacheRepository
	Exclusions   ExclusionsLookup
	Registration RegistrationLookup
	TTL          time.Duration
	Logger       *slog.Logger
}

// DefaultLookupCacheTTL is used when no TTL is configured.
const DefaultLookupCacheTTL = 15 * time.Minute

// NewCachedLookups creates a new CachedLookups.
func NewCachedLookups(opts CachedLookupsOptions) *CachedLookups {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultLookupCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedLookups{
		cache:        opts.Cache,
		exclusions:   opts.Exclusions,
		registration: opts.Registration,
		ttl:          ttl,
		logger:       logger.With("component", "lookup_cache"),
	}
}

// LookupExclusions returns the cached exclusions answer or queries the upstream and caches it.
// The upstream sees the same normalised identifier the key is derived from.
func (c *CachedLookups) LookupExclusions(ctx context.Context, id model.Identifier) (*model.ExclusionsResult, error) {
	id = id.Normalized()
	key := lookupCacheKey("exclusions", id)
	var cached model.ExclusionsResult
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	res, err := c.exclusions.LookupExclusions(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, res)
	return res, nil
}

// LookupRegistration returns the cached registration answer or queries the upstream and caches it.
func (c *CachedLookups) LookupRegistration(ctx context.Context, id model.Identifier) (*model.RegistrationResult, error) {
	id = id.Normalized()
	key := lookupCacheKey("registration", id)
	var cached model.RegistrationResult
	if c.load(ctx, key, &cached) {
		return &cached, nil
	}

	res, err := c.registration.LookupRegistration(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, res)
	return res, nil
}

func (c *CachedLookups) load(ctx context.Context, key string, dst any) bool {
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "lookup cache read failed", "key", key, "error", err)
		return false
	}
	if len(raw) == 0 {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.WarnContext(ctx, "lookup cache entry unreadable", "key", key, "error", err)
		return false
	}
	return true
}

func (c *CachedLookups) store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "lookup cache write failed", "key", key, "error", err)
	}
}

// lookupCacheKey derives a bounded key from an already normalised identifier.
func lookupCacheKey(kind string, id model.Identifier) string {
	norm := strings.Join([]string{id.UEI, id.CAGE, id.LegalName}, "|")
	sum := sha256.Sum256([]byte(norm))
	return "sam:" + kind + ":" + hex.EncodeToString(sum[:16])
}
