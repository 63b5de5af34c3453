// Package metrics exposes Prometheus collectors for page generation and the job registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pagegen"

// Outcome labels for finished generation runs.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
	OutcomePanic    = "panic"
)

// Generation groups the collectors fed by the generation runner and registry.
type Generation struct {
	Attempts      *prometheus.CounterVec
	Runs          *prometheus.CounterVec
	Scores        prometheus.Histogram
	ModelLatency  prometheus.Histogram
	InFlight      prometheus.Gauge
	Swept         prometheus.Counter
	ArtifactFails prometheus.Counter
}

// New builds the collectors and registers them with reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer) *Generation {
	g := &Generation{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "attempts_total",
				Help:      "Total number of model attempts by result",
			},
			[]string{"result"},
		),
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "runs_total",
				Help:      "Total number of finished generation jobs by outcome",
			},
			[]string{"outcome"},
		),
		Scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "compliance_score",
			Help:      "Compliance score of every scored candidate document",
			Buckets:   []float64{0.3, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		}),
		ModelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "request_duration_seconds",
			Help:      "Latency of model backend calls",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "in_flight",
			Help:      "Number of generation jobs currently running",
		}),
		Swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "swept_total",
			Help:      "Total number of expired jobs removed by the sweeper",
		}),
		ArtifactFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifacts",
			Name:      "upload_failures_total",
			Help:      "Total number of accepted documents that could not be stored",
		}),
	}
	if reg != nil {
		reg.MustRegister(g.Attempts, g.Runs, g.Scores, g.ModelLatency, g.InFlight, g.Swept, g.ArtifactFails)
	}
	return g
}

// RegisterJobGauges exposes live job counts per status, read on every scrape.
func RegisterJobGauges(reg prometheus.Registerer, live func() map[string]int) {
	reg.MustRegister(&jobsCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "live"),
			"Number of unexpired jobs by status",
			[]string{"status"}, nil,
		),
		live: live,
	})
}

type jobsCollector struct {
	desc *prometheus.Desc
	live func() map[string]int
}

func (c *jobsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *jobsCollector) Collect(ch chan<- prometheus.Metric) {
	for status, n := range c.live() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(n), status)
	}
}

// OnSweep adapts the Swept counter to the registry's sweep hook.
func (g *Generation) OnSweep(removed int) {
	if g == nil || removed <= 0 {
		return
	}
	g.Swept.Add(float64(removed))
}

// The helpers below are no-ops on a nil *Generation so callers can run without metrics.

func (g *Generation) ObserveAttempt(result string) {
	if g == nil {
		return
	}
	g.Attempts.WithLabelValues(result).Inc()
}

func (g *Generation) ObserveRun(outcome string) {
	if g == nil {
		return
	}
	g.Runs.WithLabelValues(outcome).Inc()
}

func (g *Generation) ObserveScore(score float64) {
	if g == nil {
		return
	}
	g.Scores.Observe(score)
}

func (g *Generation) ObserveModelLatency(d time.Duration) {
	if g == nil {
		return
	}
	g.ModelLatency.Observe(d.Seconds())
}

func (g *Generation) RunStarted() {
	if g == nil {
		return
	}
	g.InFlight.Inc()
}

func (g *Generation) RunDone() {
	if g == nil {
		return
	}
	g.InFlight.Dec()
}

func (g *Generation) ArtifactFailed() {
	if g == nil {
		return
	}
	g.ArtifactFails.Inc()
}
