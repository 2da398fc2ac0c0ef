package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-storefront/internal/resilience"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness flag. It is cleared when shutdown begins so
// load balancers drain the instance before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// Check is a named dependency probe.
type Check struct {
	Name    string
	Timeout time.Duration
	Probe   func(ctx context.Context) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(h.Checks)+1)
	healthy := ready.Load()
	if !healthy {
		status["server"] = "shutting down"
	}
	for _, check := range h.Checks {
		result := "ok"
		if err := run(r.Context(), check); err != nil {
			result = err.Error()
			healthy = false
		}
		status[check.Name] = result
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func run(ctx context.Context, check Check) error {
	if check.Probe == nil {
		return errors.New("not configured")
	}
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return check.Probe(ctx)
}

// Pinger is satisfied by pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DBCheck probes a database pool.
func DBCheck(db Pinger, timeout time.Duration) Check {
	return Check{Name: "db", Timeout: timeout, Probe: db.Ping}
}

// RedisCheck probes Redis.
func RedisCheck(client redis.UniversalClient, timeout time.Duration) Check {
	return Check{Name: "redis", Timeout: timeout, Probe: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// BreakerCheck fails while the backend circuit breaker is open.
func BreakerCheck(name string, breaker *resilience.Breaker) Check {
	return Check{Name: name, Probe: func(context.Context) error {
		if breaker != nil && breaker.State() == resilience.Open {
			return resilience.ErrOpenCircuit
		}
		return nil
	}}
}
