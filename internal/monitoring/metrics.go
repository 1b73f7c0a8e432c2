package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drain outcome label values.
const (
	OutcomeEOF         = "eof"
	OutcomeTimeout     = "timeout"
	OutcomeSelectError = "select_error"
	OutcomeReadError   = "read_error"
	OutcomeSinkError   = "sink_error"
)

// Metrics holds all Prometheus metrics for pipe relays.
type Metrics struct {
	// Relay lifecycle
	RelaysActive prometheus.Gauge
	RelaysTotal  prometheus.Counter

	// Drain task
	BytesDrained  prometheus.Counter
	DrainOutcomes *prometheus.CounterVec
	DrainDuration prometheus.Histogram

	// Capture runs
	CapturesTotal   *prometheus.CounterVec
	CaptureDuration prometheus.Histogram
}

// NewMetrics creates metrics registered with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates metrics registered with the given registerer.
// Tests use a fresh prometheus.NewRegistry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RelaysActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pipetap_relays_active",
			Help: "Number of relays currently draining",
		}),
		RelaysTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipetap_relays_total",
			Help: "Total number of relays created",
		}),
		BytesDrained: factory.NewCounter(prometheus.CounterOpts{
			Name: "pipetap_bytes_drained_total",
			Help: "Total bytes forwarded from pipes to output sinks",
		}),
		DrainOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipetap_drain_outcomes_total",
			Help: "Drain task terminations by outcome",
		}, []string{"outcome"}),
		DrainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipetap_drain_duration_seconds",
			Help:    "Lifetime of drain tasks",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		CapturesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pipetap_captures_total",
			Help: "Capture runs by status",
		}, []string{"status"}),
		CaptureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipetap_capture_duration_seconds",
			Help:    "Duration of capture runs including drain",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
}

// RecordDrain records one drain task termination.
func (m *Metrics) RecordDrain(outcome string, seconds float64) {
	m.DrainOutcomes.WithLabelValues(outcome).Inc()
	m.DrainDuration.Observe(seconds)
	m.RelaysActive.Dec()
}

// RecordRelayStart records a relay whose drain task has started.
func (m *Metrics) RecordRelayStart() {
	m.RelaysTotal.Inc()
	m.RelaysActive.Inc()
}

// RecordCapture records one completed capture run.
func (m *Metrics) RecordCapture(status string, seconds float64) {
	m.CapturesTotal.WithLabelValues(status).Inc()
	m.CaptureDuration.Observe(seconds)
}
