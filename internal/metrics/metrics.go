// Package metrics exports run statistics in the Prometheus text format for
// the node_exporter textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ruleforge/internal/paths"
)

const namespace = "ruleforge"

// RunStats is the subset of a run result exported as metrics.
type RunStats struct {
	Method   string
	Words    int
	Clusters int
	Pairs    int
	DeadEnds int
	Rules    int
	Seconds  float64
}

// Recorder owns a private registry so repeated runs in one process never
// collide with the global default registry.
type Recorder struct {
	registry *prometheus.Registry

	words    *prometheus.GaugeVec
	clusters *prometheus.GaugeVec
	pairs    *prometheus.GaugeVec
	deadEnds *prometheus.GaugeVec
	rules    *prometheus.GaugeVec
	duration *prometheus.GaugeVec
	lastRun  prometheus.Gauge
}

// NewRecorder registers the run gauges on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	gauge := func(name, help string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"method"})
	}

	return &Recorder{
		registry: reg,
		words:    gauge("words", "Passwords read by the last run."),
		clusters: gauge("clusters", "Clusters used for synthesis by the last run."),
		pairs:    gauge("pairs", "Representative/member pairs synthesised by the last run."),
		deadEnds: gauge("dead_ends", "Pairs for which no rule sequence was found."),
		rules:    gauge("rules", "Rules written by the last run."),
		duration: gauge("run_duration_seconds", "Wall time of the last run."),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Observe records one finished run.
func (r *Recorder) Observe(s RunStats) {
	r.words.WithLabelValues(s.Method).Set(float64(s.Words))
	r.clusters.WithLabelValues(s.Method).Set(float64(s.Clusters))
	r.pairs.WithLabelValues(s.Method).Set(float64(s.Pairs))
	r.deadEnds.WithLabelValues(s.Method).Set(float64(s.DeadEnds))
	r.rules.WithLabelValues(s.Method).Set(float64(s.Rules))
	r.duration.WithLabelValues(s.Method).Set(s.Seconds)
	r.lastRun.SetToCurrentTime()
}

// Gatherer exposes the registry, mainly for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	if err := paths.EnsureParent(path); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
