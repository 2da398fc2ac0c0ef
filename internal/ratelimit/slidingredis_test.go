package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindowAllow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	window := 2 * time.Second
	max := 2
	limiter := SlidingWindow{Client: client, Prefix: "test:", Window: window, Max: max}

	ctx := context.Background()
	for i := 0; i < max; i++ {
		d, err := limiter.Allow(ctx, "key")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if d.Remaining != max-(i+1) {
			t.Fatalf("unexpected remaining: %d", d.Remaining)
		}
	}

	d, err := limiter.Allow(ctx, "key")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected third request to be rejected")
	}
	if d.Remaining != 0 {
		t.Fatalf("expected remaining 0, got %d", d.Remaining)
	}

	mr.FastForward(window)

	d, err = limiter.Allow(ctx, "key")
	if err != nil {
		t.Fatalf("allow after window: %v", err)
	}
	if !d.Allowed {
		t.Fatal("expected request after window to be allowed")
	}
}

func TestNewSlidingWindowParsesRate(t *testing.T) {
	w, err := NewSlidingWindow(nil, "checkout:", "10-M")
	require.NoError(t, err)
	require.Equal(t, time.Minute, w.Window)
	require.Equal(t, 10, w.Max)

	d, err := w.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	require.True(t, d.Allowed)
}
