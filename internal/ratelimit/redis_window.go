package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter and starts the window on first use.
// It returns the post-increment count and the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisWindow shares fixed-window buckets across replicas through Redis.
// When Redis is unreachable the request is admitted and the failure logged.
type RedisWindow struct {
	client redis.UniversalClient
	opts   Options
	prefix string
	logger *slog.Logger
}

// RedisWindowOptions bundles dependencies for NewRedisWindow.
type RedisWindowOptions struct {
	Client redis.UniversalClient
	Limits Options
	Prefix string
	Logger *slog.Logger
}

// NewRedisWindow creates a Redis-backed fixed-window limiter.
func NewRedisWindow(opts RedisWindowOptions) *RedisWindow {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisWindow{
		client: opts.Client,
		opts:   opts.Limits.withDefaults(),
		prefix: prefix,
		logger: logger.With("component", "rate_limiter"),
	}
}

// Admit implements Limiter.
func (l *RedisWindow) Admit(ctx context.Context, key string) Decision {
	now := l.opts.Clock()
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.opts.Window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.WarnContext(ctx, "rate limiter unavailable; admitting request", "error", err)
		return Decision{
			Allowed:   true,
			Limit:     l.opts.Capacity,
			Remaining: l.opts.Capacity,
			ResetAt:   now.Add(l.opts.Window),
		}
	}
	return decide(l.opts.Capacity, res[0], time.Duration(res[1])*time.Millisecond, now)
}

func decide(capacity int, count int64, ttl time.Duration, now time.Time) Decision {
	d := Decision{
		Allowed: count <= int64(capacity),
		Limit:   capacity,
		ResetAt: now.Add(ttl),
	}
	if d.Allowed {
		d.Remaining = capacity - int(count)
	}
	return d
}
