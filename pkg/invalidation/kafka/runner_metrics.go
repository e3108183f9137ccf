package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for processed invalidation events.
const (
	outcomeApplied = "applied"
	outcomeStale   = "stale"
	outcomePoison  = "poison"
	outcomeRetry   = "retry"
)

// runnerMetrics tracks how deal change events turn into cache evictions.
// With a nil Registerer the collectors still work but are never exported.
type runnerMetrics struct {
	events  *prometheus.CounterVec
	evicted prometheus.Counter
	apply   *prometheus.HistogramVec
	age     prometheus.Gauge
}

func newRunnerMetrics(reg prometheus.Registerer) *runnerMetrics {
	m := &runnerMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dealmap",
			Subsystem: "invalidation",
			Name:      "events_total",
			Help:      "Deal change events consumed, by outcome.",
		}, []string{"outcome"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dealmap",
			Subsystem: "invalidation",
			Name:      "evicted_keys_total",
			Help:      "Cached deal views deleted because a deal changed.",
		}),
		apply: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dealmap",
			Subsystem: "invalidation",
			Name:      "apply_seconds",
			Help:      "Time from decoding a deal change to finishing its evictions.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"op"}),
		age: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dealmap",
			Subsystem: "invalidation",
			Name:      "last_event_age_seconds",
			Help:      "Age of the most recently consumed deal change when it arrived.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.evicted, m.apply, m.age)
	}
	return m
}

func (m *runnerMetrics) outcome(o string) { m.events.WithLabelValues(o).Inc() }

func (m *runnerMetrics) arrived(ts time.Time) {
	if !ts.IsZero() {
		m.age.Set(time.Since(ts).Seconds())
	}
}

func (m *runnerMetrics) applied(op string, keys int, took time.Duration) {
	m.evicted.Add(float64(keys))
	m.apply.WithLabelValues(op).Observe(took.Seconds())
}
