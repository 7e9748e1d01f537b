package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart store operations and remote sync round-trips.
type CartMetrics struct {
	operations   *prometheus.CounterVec
	failures     *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operations_total",
		Help: "Cart store operations by name and ownership mode.",
	}, []string{"operation", "mode"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_failures_total",
		Help: "Cart store operations that surfaced an error.",
	}, []string{"operation", "mode"})
	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of remote cart round-trips in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(operations, failures, syncDuration)
	return &CartMetrics{
		operations:   operations,
		failures:     failures,
		syncDuration: syncDuration,
	}
}

// IncOperation counts one store operation.
func (c *CartMetrics) IncOperation(operation, mode string) {
	if c == nil || c.operations == nil {
		return
	}
	c.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(mode)).Inc()
}

// IncFailure counts one failed store operation.
func (c *CartMetrics) IncFailure(operation, mode string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(operation), normalizeLabel(mode)).Inc()
}

// ObserveSync records the duration of a remote round-trip.
func (c *CartMetrics) ObserveSync(operation string, duration time.Duration) {
	if c == nil || c.syncDuration == nil {
		return
	}
	c.syncDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
