package app

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
)

func TestRedisConnOpt(t *testing.T) {
	opt, err := RedisConnOpt("redis://:secret@cache.internal:6380/2")
	require.NoError(t, err)
	client, ok := opt.(asynq.RedisClientOpt)
	require.True(t, ok)
	require.Equal(t, "cache.internal:6380", client.Addr)
	require.Equal(t, 2, client.DB)
	require.Equal(t, "secret", client.Password)

	_, err = RedisConnOpt("http://cache.internal")
	require.Error(t, err)
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(context.Background(), "redis://"+mr.Addr(), false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	require.True(t, mr.Exists("k"))

	_, err = NewRedis(context.Background(), "::not a url", false)
	require.Error(t, err)
}

func TestNewWithoutDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg, err := config.LoadForTests(map[string]string{
		"BACKEND_BASE_URL": "https://api.example.test",
		"REDIS_URL":        "redis://" + mr.Addr(),
		"JWT_SECRET":       "secret",
		"DATABASE_URL":     "",
	})
	require.NoError(t, err)

	deps, err := New(context.Background(), cfg, zerolog.Nop())
	t.Cleanup(func() { _ = deps.Close() })
	require.NoError(t, err)
	require.Nil(t, deps.DB)
	require.False(t, deps.Audit.Enabled)
	require.NotNil(t, deps.Backend)
	require.IsType(t, ratelimit.Fixed{}, deps.PublicLimiter)
	require.IsType(t, ratelimit.SlidingWindow{}, deps.CheckoutLimiter)

	names := make([]string, 0)
	for _, check := range deps.HealthChecks() {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"redis", "backend"}, names)

	decision, err := deps.CheckoutLimiter.Allow(context.Background(), "user:u-1")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 10, decision.Limit)
}
