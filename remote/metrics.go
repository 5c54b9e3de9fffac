package remote

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the ambient observability surface SPEC_FULL.md adds
// on top of spec.md: per-node gauges/counters for endpoint and watch
// health, registered against whatever prometheus.Registerer the
// embedding application already runs (no teacher equivalent —
// TAnNbR-Distributed-framework carries no metrics package at all).
type Metrics struct {
	Endpoints         prometheus.Gauge
	WatchPairs        prometheus.Gauge
	BatchesSent       prometheus.Counter
	BatchesReceived   prometheus.Counter
	DeadLetters       prometheus.Counter
	DialFailures      prometheus.Counter
}

// NewMetrics constructs and registers the wireactor metric family under
// reg. Passing prometheus.NewRegistry() keeps it isolated for tests;
// passing prometheus.DefaultRegisterer wires it into the process-wide
// /metrics endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Endpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wireactor_endpoints",
			Help: "Number of peer addresses with a live endpoint writer.",
		}),
		WatchPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wireactor_watch_pairs",
			Help: "Number of outstanding remote (watcher, watchee) pairs.",
		}),
		BatchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wireactor_batches_sent_total",
			Help: "Envelope batches written to peers.",
		}),
		BatchesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wireactor_batches_received_total",
			Help: "Envelope batches read from peers.",
		}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wireactor_dead_letters_total",
			Help: "Messages that could not be delivered to their target.",
		}),
		DialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wireactor_dial_failures_total",
			Help: "Outbound connection attempts that exhausted their retry budget.",
		}),
	}
	reg.MustRegister(m.Endpoints, m.WatchPairs, m.BatchesSent, m.BatchesReceived, m.DeadLetters, m.DialFailures)
	return m
}
