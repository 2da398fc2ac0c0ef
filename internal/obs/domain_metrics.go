package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts checkout quotes by outcome.
	QuoteTotal *prometheus.CounterVec
	// ShippingMissTotal counts quotes whose selected courier was not offered.
	ShippingMissTotal prometheus.Counter
	// PaymentInitTotal counts payment initiations by outcome.
	PaymentInitTotal *prometheus.CounterVec
	// BackendRequestTotal counts commerce backend calls by resource and status class.
	BackendRequestTotal *prometheus.CounterVec
	// BackendLatency records backend call latency in milliseconds.
	BackendLatency *prometheus.HistogramVec
	// TaskEnqueueTotal counts background task submissions by type and outcome.
	TaskEnqueueTotal *prometheus.CounterVec
	// CacheLookupTotal counts cache hits and misses per cache.
	CacheLookupTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
// Calls after the first are no-ops.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quote_total",
			Help:      "Count of checkout quotes by outcome.",
		}, []string{"result"})
		ShippingMissTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_option_miss_total",
			Help:      "Quotes where the selected shipping option was not among the offered rates.",
		})
		PaymentInitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_init_total",
			Help:      "Count of payment initiations by outcome.",
		}, []string{"result"})
		BackendRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Count of commerce backend requests by resource and status class.",
		}, []string{"resource", "class"})
		BackendLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_ms",
			Help:      "Latency of commerce backend requests in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"resource"})
		TaskEnqueueTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_enqueue_total",
			Help:      "Count of background task submissions by type and outcome.",
		}, []string{"type", "result"})
		CacheLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookup_total",
			Help:      "Count of cache lookups by cache and outcome.",
		}, []string{"cache", "result"})

		QuoteTotal = register(reg, QuoteTotal)
		ShippingMissTotal = register(reg, ShippingMissTotal)
		PaymentInitTotal = register(reg, PaymentInitTotal)
		BackendRequestTotal = register(reg, BackendRequestTotal)
		BackendLatency = register(reg, BackendLatency)
		TaskEnqueueTotal = register(reg, TaskEnqueueTotal)
		CacheLookupTotal = register(reg, CacheLookupTotal)
	})
}

// The helpers below tolerate unregistered metrics so packages can be tested in isolation.

// IncQuote records a checkout quote outcome.
func IncQuote(result string) {
	if QuoteTotal != nil {
		QuoteTotal.WithLabelValues(result).Inc()
	}
}

// IncShippingMiss records an unmatched shipping selection.
func IncShippingMiss() {
	if ShippingMissTotal != nil {
		ShippingMissTotal.Inc()
	}
}

// IncPaymentInit records a payment initiation outcome.
func IncPaymentInit(result string) {
	if PaymentInitTotal != nil {
		PaymentInitTotal.WithLabelValues(result).Inc()
	}
}

// ObserveBackend records a backend call.
func ObserveBackend(resource string, status int, millis float64) {
	if BackendRequestTotal != nil {
		BackendRequestTotal.WithLabelValues(resource, statusClass(status)).Inc()
	}
	if BackendLatency != nil {
		BackendLatency.WithLabelValues(resource).Observe(millis)
	}
}

// IncTaskEnqueue records a task submission.
func IncTaskEnqueue(taskType, result string) {
	if TaskEnqueueTotal != nil {
		TaskEnqueueTotal.WithLabelValues(taskType, result).Inc()
	}
}

// IncCacheLookup records a cache hit or miss.
func IncCacheLookup(cache string, hit bool) {
	if CacheLookupTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupTotal.WithLabelValues(cache, result).Inc()
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return fmt.Sprintf("%dxx", status/100)
}
