// Package metrics exposes Prometheus collectors for the engine, the save
// path and recovery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mera-platform/mera/internal/engine"
	"github.com/mera-platform/mera/internal/integrity"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/save"
)

const namespace = "mera"

// Metrics holds every collector, registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	tickDuration prometheus.Histogram
	messages     *prometheus.CounterVec
	teardowns    *prometheus.CounterVec
	handoffs     prometheus.Counter

	writes        *prometheus.CounterVec
	writeDuration prometheus.Histogram
	online        prometheus.Gauge
	backups       *prometheus.CounterVec
	criticals     prometheus.Counter

	recoveries       *prometheus.CounterVec
	lessonsLost      prometheus.Counter
	sectionsRepaired *prometheus.CounterVec
}

var (
	_ engine.Observer = (*Metrics)(nil)
	_ save.Observer   = (*Metrics)(nil)
)

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one engine tick",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "messages_total",
			Help:      "Messages drained, by family and result",
		}, []string{"family", "result"}),
		teardowns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "component_teardowns_total",
			Help:      "Components removed after a local failure",
		}, []string{"reason"}),
		handoffs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshot_handoffs_total",
			Help:      "Snapshots handed to the save manager",
		}),

		writes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "save",
			Name:      "writes_total",
			Help:      "Completed dual writes, by outcome",
		}, []string{"outcome"}),
		writeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "save",
			Name:      "write_duration_seconds",
			Help:      "Duration of one dual write",
			Buckets:   prometheus.DefBuckets,
		}),
		online: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "save",
			Name:      "online",
			Help:      "1 if the last remote write succeeded",
		}),
		backups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "save",
			Name:      "backups_total",
			Help:      "Escape-hatch backup attempts",
		}, []string{"result"}),
		criticals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "save",
			Name:      "critical_failures_total",
			Help:      "Recovered panics in the save orchestration",
		}),

		recoveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrity",
			Name:      "recoveries_total",
			Help:      "Bundles recovered at load, by source and result",
		}, []string{"source", "result"}),
		lessonsLost: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrity",
			Name:      "lessons_lost_total",
			Help:      "Lesson completions claimed by a total but absent from the map",
		}),
		sectionsRepaired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "integrity",
			Name:      "sections_repaired_total",
			Help:      "Sections that did not come through recovery untouched",
		}, []string{"section"}),
	}
	m.online.Set(1)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveMessage(f model.Family, ok bool) {
	m.messages.WithLabelValues(f.String(), result(ok)).Inc()
}

func (m *Metrics) ObserveTeardown(reason string) {
	m.teardowns.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveHandoff() {
	m.handoffs.Inc()
}

func (m *Metrics) ObserveWrite(o save.Outcome, d time.Duration) {
	m.writes.WithLabelValues(o.String()).Inc()
	m.writeDuration.Observe(d.Seconds())
	if o == save.BothOK || o == save.RemoteOnly {
		m.online.Set(1)
	} else {
		m.online.Set(0)
	}
}

func (m *Metrics) ObserveBackup(ok bool) {
	m.backups.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) ObserveCritical() {
	m.criticals.Inc()
}

// ObserveRecovery records what loading one stored bundle required.
func (m *Metrics) ObserveRecovery(source string, res integrity.Result) {
	switch {
	case res.Critical.Any():
		m.recoveries.WithLabelValues(source, "critical").Inc()
	case res.PerfectlyValidInput:
		m.recoveries.WithLabelValues(source, "clean").Inc()
	default:
		m.recoveries.WithLabelValues(source, "repaired").Inc()
	}

	var lost int64
	for section, sm := range res.Sections {
		if !sm.Clean() {
			m.sectionsRepaired.WithLabelValues(string(section)).Inc()
		}
		lost += sm.LessonsLostToCorruption
	}
	if lost > 0 {
		m.lessonsLost.Add(float64(lost))
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
