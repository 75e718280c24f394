// Package metrics exports sweep progress and scores as prometheus metrics,
// written to a node-exporter style textfile at the end of a sweep.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ochairo/ripbench/internal/domain/entities"
)

const namespace = "ripbench"

// SweepMetrics collects metrics for one sweep on a private registry
type SweepMetrics struct {
	registry *prometheus.Registry

	binaries         *prometheus.CounterVec
	analyzerDuration *prometheus.HistogramVec
	functions        *prometheus.GaugeVec
	score            *prometheus.GaugeVec
	undefined        prometheus.Gauge
}

// NewSweepMetrics creates the metric set. Every series carries the opt label.
func NewSweepMetrics(opt entities.OptLevel) *SweepMetrics {
	constLabels := prometheus.Labels{"opt": string(opt)}
	m := &SweepMetrics{
		registry: prometheus.NewRegistry(),
		binaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "sweep",
			Name:        "binaries_total",
			Help:        "binaries handled by the sweep, by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		analyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "analyzer",
			Name:        "duration_seconds",
			Help:        "wall time of analyzer runs",
			ConstLabels: constLabels,
			Buckets:     []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		}, []string{"label"}),
		functions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "sweep",
			Name:        "functions",
			Help:        "summed confusion counts across the sweep",
			ConstLabels: constLabels,
		}, []string{"class"}),
		score: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "sweep",
			Name:        "score",
			Help:        "micro-averaged score; absent when undefined",
			ConstLabels: constLabels,
		}, []string{"metric"}),
		undefined: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "sweep",
			Name:        "undefined_binaries",
			Help:        "binaries with at least one undefined ratio",
			ConstLabels: constLabels,
		}),
	}
	m.registry.MustRegister(m.binaries, m.analyzerDuration, m.functions, m.score, m.undefined)
	return m
}

// Registry exposes the underlying registry
func (m *SweepMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// BinaryDone counts one binary by outcome (computed, cached, skipped, failed)
func (m *SweepMetrics) BinaryDone(outcome string) {
	m.binaries.WithLabelValues(outcome).Inc()
}

// AnalyzerRun records the wall time of one analyzer run
func (m *SweepMetrics) AnalyzerRun(label string, d time.Duration) {
	m.analyzerDuration.WithLabelValues(label).Observe(d.Seconds())
}

// ObserveScore publishes the aggregate of the sweep
func (m *SweepMetrics) ObserveScore(score entities.SweepScore) {
	m.functions.WithLabelValues("true_pos").Set(float64(score.Counts.TruePositives))
	m.functions.WithLabelValues("false_pos").Set(float64(score.Counts.FalsePositives))
	m.functions.WithLabelValues("false_neg").Set(float64(score.Counts.FalseNegatives))
	m.undefined.Set(float64(score.UndefinedBinaries))

	for name, r := range map[string]entities.Ratio{
		"precision": score.Micro.Precision,
		"recall":    score.Micro.Recall,
		"f1":        score.Micro.F1,
	} {
		if r.Defined {
			m.score.WithLabelValues(name).Set(r.Value)
		} else {
			m.score.DeleteLabelValues(name)
		}
	}
}

// WriteTextfile atomically writes the registry in text exposition format
func (m *SweepMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
