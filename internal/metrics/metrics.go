// Package metrics records run metrics in a Prometheus registry and exports
// them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const (
	namespace = "sprint"
	subsystem = "typing"
)

// Outcome labels for finished runs.
const (
	OutcomeCompleted = "completed"
	OutcomeTimeout   = "timeout"
	OutcomeAborted   = "aborted"
)

// Manager owns the run metrics.
type Manager struct {
	registry *prometheus.Registry

	runs               *prometheus.CounterVec
	keystrokes         *prometheus.CounterVec
	leaderboardUpserts prometheus.Counter
	lastCPM            prometheus.Gauge
	runDuration        prometheus.Histogram
}

// Option configures a Manager.
type Option func(*Manager)

// WithRegistry uses reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		m.registry = reg
	}
}

// NewManager creates the metrics and registers them.
func NewManager(opts ...Option) *Manager {
	m := &Manager{registry: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(m)
	}

	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "runs_total",
		Help:      "Finished typing tests by outcome.",
	}, []string{"outcome"})
	m.keystrokes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "keystrokes_total",
		Help:      "Keystrokes by result.",
	}, []string{"result"})
	m.leaderboardUpserts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "leaderboard_upserts_total",
		Help:      "Scores written to the leaderboard.",
	})
	m.lastCPM = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "last_cpm",
		Help:      "Characters per minute of the most recent run.",
	})
	m.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of typing tests run by the exporting process.",
		Buckets:   []float64{5, 10, 15, 20, 25, 30, 45, 60},
	})

	m.registry.MustRegister(m.runs, m.keystrokes, m.leaderboardUpserts, m.lastCPM, m.runDuration)
	return m
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records a finished run.
func (m *Manager) ObserveRun(outcome string, typed, mistakes, cpm int, seconds float64) {
	m.runs.WithLabelValues(outcome).Inc()
	m.keystrokes.WithLabelValues("accepted").Add(float64(typed))
	m.keystrokes.WithLabelValues("mismatch").Add(float64(mistakes))
	if outcome == OutcomeAborted {
		return
	}
	m.lastCPM.Set(float64(cpm))
	m.runDuration.Observe(seconds)
}

// IncLeaderboardUpserts counts a leaderboard write.
func (m *Manager) IncLeaderboardUpserts() {
	m.leaderboardUpserts.Inc()
}

// Restore adds the counter totals found in a textfile written by an earlier
// process, so counters keep growing across runs. A missing file is not an
// error. The gauge and histogram start fresh.
func (m *Manager) Restore(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open metrics: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(f)
	if err != nil {
		return fmt.Errorf("failed to parse metrics: %w", err)
	}
	restoreCounterVec(families[prometheus.BuildFQName(namespace, subsystem, "runs_total")], m.runs, "outcome")
	restoreCounterVec(families[prometheus.BuildFQName(namespace, subsystem, "keystrokes_total")], m.keystrokes, "result")
	if fam := families[prometheus.BuildFQName(namespace, subsystem, "leaderboard_upserts_total")]; fam != nil && fam.GetType() == dto.MetricType_COUNTER {
		for _, metric := range fam.GetMetric() {
			if v := metric.GetCounter().GetValue(); v > 0 {
				m.leaderboardUpserts.Add(v)
			}
		}
	}
	return nil
}

func restoreCounterVec(fam *dto.MetricFamily, vec *prometheus.CounterVec, label string) {
	if fam == nil || fam.GetType() != dto.MetricType_COUNTER {
		return
	}
	for _, metric := range fam.GetMetric() {
		v := metric.GetCounter().GetValue()
		if v <= 0 {
			continue
		}
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label {
				vec.WithLabelValues(pair.GetValue()).Add(v)
			}
		}
	}
}

// WriteTextfile writes all metrics to path atomically.
func (m *Manager) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
