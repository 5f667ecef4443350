package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the bot's full set of exported counters and gauges,
// registered against a private registry so Serve controls exactly
// what /metrics exposes.
type Metrics struct {
	Registry *prometheus.Registry

	PingsDetected       prometheus.Counter
	PongsIssued         prometheus.Counter
	PongsConfirmed      prometheus.Counter
	StaleReconciliations prometheus.Counter
	IterationDuration   prometheus.Histogram
	IterationFailures   prometheus.Counter
}

// NewMetrics constructs and registers every collector.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		PingsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pingpongbot",
			Name:      "pings_detected_total",
			Help:      "Number of Ping events observed on chain.",
		}),
		PongsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pingpongbot",
			Name:      "pongs_issued_total",
			Help:      "Number of Pong transactions submitted to the network.",
		}),
		PongsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pingpongbot",
			Name:      "pongs_confirmed_total",
			Help:      "Number of exchanges fully completed (Pong observed on chain).",
		}),
		StaleReconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pingpongbot",
			Name:      "stale_reconciliations_total",
			Help:      "Number of stale pongs reissued after being dropped or replaced with bumped fees.",
		}),
		IterationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pingpongbot",
			Name:      "iteration_duration_seconds",
			Help:      "Wall-clock duration of one run-loop iteration.",
			Buckets:   prometheus.DefBuckets,
		}),
		IterationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pingpongbot",
			Name:      "iteration_failures_total",
			Help:      "Number of iterations that returned an error.",
		}),
	}

	reg.MustRegister(
		m.PingsDetected,
		m.PongsIssued,
		m.PongsConfirmed,
		m.StaleReconciliations,
		m.IterationDuration,
		m.IterationFailures,
	)
	return m
}
