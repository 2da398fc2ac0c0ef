package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "storefront",
		Name:      "breaker_state",
		Help:      "Breaker state per upstream (0 closed, 1 open, 2 half-open).",
	}, []string{"breaker"})

	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "breaker_transitions_total",
		Help:      "Breaker state changes.",
	}, []string{"breaker", "from", "to"})

	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Name:      "breaker_opened_total",
		Help:      "Times a breaker tripped open.",
	}, []string{"breaker"})
)
