package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker short-circuits a call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State of a Breaker.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

func (s State) gauge() float64 {
	switch s {
	case Closed, Open, HalfOpen:
		return float64(s)
	default:
		return -1
	}
}

// BreakerConfig tunes a Breaker. Zero values select the defaults noted per field.
type BreakerConfig struct {
	// Name labels metrics and logs. Defaults to "default".
	Name string
	// Window is the number of most recent outcomes the failure ratio is taken over. Defaults to 50.
	Window int
	// MinRequests outcomes must be observed before the breaker may open. Defaults to 1.
	MinRequests int
	// FailureRatio in (0, 1] that opens the breaker. Defaults to 0.5.
	FailureRatio float64
	// OpenFor is the cool-off before probing again. Defaults to 30s.
	OpenFor time.Duration
	// Probes is the number of successful half-open calls needed to close. Defaults to 1.
	Probes int
	Logger *zerolog.Logger
	Now    func() time.Time
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = "default"
	}
	if c.MinRequests <= 0 {
		c.MinRequests = 1
	}
	if c.Window <= 0 {
		c.Window = 50
	}
	if c.Window < c.MinRequests {
		c.Window = c.MinRequests
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.5
	}
	if c.FailureRatio > 1 {
		c.FailureRatio = 1
	}
	if c.OpenFor <= 0 {
		c.OpenFor = 30 * time.Second
	}
	if c.Probes <= 0 {
		c.Probes = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Breaker opens when the failure ratio over a rolling window of outcomes
// crosses the threshold, then admits a bounded number of probes after the
// cool-off. A nil *Breaker allows every call.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	outcomes []bool
	next     int
	seen     int
	failures int
	since    time.Time
	admitted int
	passed   int
}

// NewBreaker builds a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg = cfg.withDefaults()
	b := &Breaker{cfg: cfg, outcomes: make([]bool, cfg.Window)}
	BreakerState.WithLabelValues(cfg.Name).Set(Closed.gauge())
	return b
}

// Name returns the metrics label of b.
func (b *Breaker) Name() string { return b.cfg.Name }

// Allow reports whether a call may proceed. In half-open only Probes calls are
// admitted per cool-off period; a probe whose outcome is never reported is
// replaced once the period elapses.
func (b *Breaker) Allow(ctx context.Context) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()
	switch b.state {
	case Open:
		if now.Sub(b.since) < b.cfg.OpenFor {
			return false
		}
		b.transition(ctx, HalfOpen, now)
		b.admitted = 1
		return true
	case HalfOpen:
		if now.Sub(b.since) >= b.cfg.OpenFor {
			b.since = now
			b.admitted = b.passed
		}
		if b.admitted >= b.cfg.Probes {
			return false
		}
		b.admitted++
		return true
	default:
		return true
	}
}

// Report records the outcome of a call admitted by Allow.
func (b *Breaker) Report(ctx context.Context, success bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()
	switch b.state {
	case Open:
		return
	case HalfOpen:
		if !success {
			b.transition(ctx, Open, now)
			return
		}
		b.passed++
		if b.passed >= b.cfg.Probes {
			b.transition(ctx, Closed, now)
		}
		return
	}

	b.record(success)
	if b.seen < b.cfg.MinRequests {
		return
	}
	if float64(b.failures)/float64(b.seen) >= b.cfg.FailureRatio {
		b.transition(ctx, Open, now)
	}
}

// State returns the effective state; an open breaker past its cool-off
// reports HalfOpen.
func (b *Breaker) State() State {
	if b == nil {
		return Closed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.cfg.Now().Sub(b.since) >= b.cfg.OpenFor {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) record(success bool) {
	if b.seen == len(b.outcomes) {
		if !b.outcomes[b.next] {
			b.failures--
		}
	} else {
		b.seen++
	}
	b.outcomes[b.next] = success
	if !success {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.outcomes)
}

func (b *Breaker) reset() {
	for i := range b.outcomes {
		b.outcomes[i] = false
	}
	b.next, b.seen, b.failures = 0, 0, 0
	b.admitted, b.passed = 0, 0
}

func (b *Breaker) transition(ctx context.Context, to State, now time.Time) {
	from := b.state
	b.state = to
	b.since = now
	b.reset()

	name := b.cfg.Name
	BreakerState.WithLabelValues(name).Set(to.gauge())
	BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	if to == Open {
		BreakerOpenedTotal.WithLabelValues(name).Inc()
	}

	evt := b.logger(ctx).Info().
		Str("breaker", name).
		Str("from_state", from.String()).
		Str("to_state", to.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if b.cfg.Logger != nil {
		return b.cfg.Logger
	}
	return zerolog.Ctx(ctx)
}
