package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Fixed adapts a ulule fixed-window limiter.
type Fixed struct {
	L *limiter.Limiter
}

// NewFixed parses a formatted rate such as "120-M" and binds it to store.
func NewFixed(rate string, store limiter.Store) (Fixed, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return Fixed{}, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return Fixed{L: limiter.New(store, parsed)}, nil
}

// NewRedisStore returns a limiter store that shares counters across replicas.
func NewRedisStore(client *redis.Client, prefix string) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	})
}

// NewSlidingWindow builds a SlidingWindow from a formatted rate.
func NewSlidingWindow(client redis.UniversalClient, prefix, rate string) (SlidingWindow, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return SlidingWindow{}, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return SlidingWindow{Client: client, Prefix: prefix, Window: parsed.Period, Max: int(parsed.Limit)}, nil
}

func (f Fixed) Allow(ctx context.Context, key string) (Decision, error) {
	lctx, err := f.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		ResetAt:   time.Unix(lctx.Reset, 0),
	}, nil
}
