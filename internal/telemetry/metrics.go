package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "appointly"

// Booking outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

type Metrics struct {
	BookingOps           *prometheus.CounterVec
	AllocationRetries    prometheus.Counter
	AllocationDuration   prometheus.Histogram
	AvailabilityRequests *prometheus.CounterVec
	AvailabilityCache    *prometheus.CounterVec
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BookingOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "operations_total",
			Help:      "Booking operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		AllocationRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "allocation_retries_total",
			Help:      "Allocation attempts repeated after a retryable storage failure.",
		}),
		AllocationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bookings",
			Name:      "allocation_duration_seconds",
			Help:      "Time spent allocating a booking, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		AvailabilityRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "requests_total",
			Help:      "Availability resolutions by granularity and outcome.",
		}, []string{"granularity", "outcome"}),
		AvailabilityCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "cache_total",
			Help:      "Availability cache lookups by result.",
		}, []string{"result"}),
	}
}
