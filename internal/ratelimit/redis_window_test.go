package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/eligibility-api/internal/testutil"
)

func TestDecide(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		count         int64
		wantAllowed   bool
		wantRemaining int
	}{
		{name: "first request", count: 1, wantAllowed: true, wantRemaining: 2},
		{name: "last admitted", count: 3, wantAllowed: true, wantRemaining: 0},
		{name: "over capacity", count: 4, wantAllowed: false, wantRemaining: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decide(3, tt.count, 30*time.Second, now)
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			assert.Equal(t, tt.wantRemaining, d.Remaining)
			assert.Equal(t, now.Add(30*time.Second), d.ResetAt)
		})
	}
}

func TestRedisWindow_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisWindow(RedisWindowOptions{Client: client, Limits: Options{Capacity: 1}})
	for i := 0; i < 3; i++ {
		assert.True(t, l.Admit(context.Background(), "k").Allowed)
	}
}

func TestRedisWindow_SharedWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	opts := RedisWindowOptions{Client: client, Limits: Options{Capacity: 2, Window: time.Minute}, Prefix: "rl:test:"}
	a := NewRedisWindow(opts)
	b := NewRedisWindow(opts)

	first := a.Admit(ctx, "key")
	require.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)

	second := b.Admit(ctx, "key")
	require.True(t, second.Allowed)
	assert.Equal(t, 0, second.Remaining)

	third := a.Admit(ctx, "key")
	assert.False(t, third.Allowed)
	assert.WithinDuration(t, time.Now().Add(time.Minute), third.ResetAt, 5*time.Second)

	ttl := client.PTTL(ctx, "rl:test:key").Val()
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}
