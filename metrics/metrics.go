// Package metrics exposes lathe's Prometheus collectors.
//
// Collectors live on a dedicated registry rather than the global default so
// several workspaces (and tests) can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teranos/lathe/recompute"
	"github.com/teranos/lathe/undo"
)

const namespace = "lathe"

// Metrics holds every collector. The zero value is not usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	scheduled  *prometheus.CounterVec
	superseded *prometheus.CounterVec
	fired      *prometheus.CounterVec

	checkpoints prometheus.Counter
	evictions   prometheus.Counter
	restores    *prometheus.CounterVec
	undoDepth   prometheus.Gauge
	redoDepth   prometheus.Gauge

	mutations *prometheus.CounterVec
	features  prometheus.Gauge

	pipelineDuration prometheus.Histogram
	pipelineFailures prometheus.Counter
}

var _ undo.Observer = (*Metrics)(nil)

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		scheduled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "scheduled_total",
			Help:      "Schedule calls, by scheduler",
		}, []string{"scheduler"}),
		superseded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "superseded_total",
			Help:      "Pending timers cancelled by a later Schedule call",
		}, []string{"scheduler"}),
		fired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recompute",
			Name:      "fired_total",
			Help:      "Timers that elapsed and ran their callback",
		}, []string{"scheduler"}),

		checkpoints: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "undo",
			Name:      "checkpoints_total",
			Help:      "Composite snapshots pushed onto the undo stack",
		}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "undo",
			Name:      "evictions_total",
			Help:      "Oldest undo entries dropped at capacity",
		}),
		restores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "undo",
			Name:      "restores_total",
			Help:      "Successful undo and redo operations",
		}, []string{"direction"}),
		undoDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "undo_depth",
			Help:      "Entries on the undo stack",
		}),
		redoDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "redo_depth",
			Help:      "Entries on the redo stack",
		}),

		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "mutations_total",
			Help:      "Feature history mutations, by operation",
		}, []string{"op"}),
		features: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "features",
			Help:      "Entries in the feature history",
		}),

		pipelineDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Recompute pipeline run time",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		pipelineFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Recompute pipeline runs that returned an error",
		}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Checkpointed implements undo.Observer.
func (m *Metrics) Checkpointed(undoDepth, redoDepth int) {
	m.checkpoints.Inc()
	m.setDepths(undoDepth, redoDepth)
}

// Evicted implements undo.Observer.
func (m *Metrics) Evicted(n int) {
	m.evictions.Add(float64(n))
}

// Restored implements undo.Observer.
func (m *Metrics) Restored(direction string, undoDepth, redoDepth int) {
	m.restores.WithLabelValues(direction).Inc()
	m.setDepths(undoDepth, redoDepth)
}

func (m *Metrics) setDepths(undoDepth, redoDepth int) {
	m.undoDepth.Set(float64(undoDepth))
	m.redoDepth.Set(float64(redoDepth))
}

// Mutation counts a history mutation and records the resulting length.
func (m *Metrics) Mutation(op string, length int) {
	m.mutations.WithLabelValues(op).Inc()
	m.features.Set(float64(length))
}

// PipelineRun records one pipeline invocation.
func (m *Metrics) PipelineRun(elapsed time.Duration, err error) {
	m.pipelineDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.pipelineFailures.Inc()
	}
}

// Scheduler returns a recompute.Observer that reports under the given
// scheduler label.
func (m *Metrics) Scheduler(name string) recompute.Observer {
	return schedulerObserver{
		scheduled:  m.scheduled.WithLabelValues(name),
		superseded: m.superseded.WithLabelValues(name),
		fired:      m.fired.WithLabelValues(name),
	}
}

type schedulerObserver struct {
	scheduled, superseded, fired prometheus.Counter
}

func (o schedulerObserver) Scheduled(time.Duration) { o.scheduled.Inc() }
func (o schedulerObserver) Superseded()             { o.superseded.Inc() }
func (o schedulerObserver) Fired()                  { o.fired.Inc() }
