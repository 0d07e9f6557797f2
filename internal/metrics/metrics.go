// Package metrics exposes tracker counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/minime/internal/detector"
	"github.com/ayusman/minime/internal/pose"
	"github.com/ayusman/minime/internal/tracking"
)

const namespace = "minime"

// Metrics owns a private registry. Component counters are read from their Stats at
// scrape time; render loop observations are pushed by the app.
type Metrics struct {
	registry *prometheus.Registry

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram
	RenderErrors prometheus.Counter
	MotionActive prometheus.Gauge
	Clients      prometheus.Gauge
}

// New creates the metrics set with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_ticks_total",
			Help:      "Render loop ticks executed",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_tick_seconds",
			Help:      "Time spent solving and presenting one tick",
			Buckets:   []float64{.0005, .001, .002, .004, .008, .016, .033, .066},
		}),
		RenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_errors_total",
			Help:      "Ticks whose presentation failed",
		}),
		MotionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "motion_active",
			Help:      "1 while the motion gate lets frames through to the detector",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pose_stream_clients",
			Help:      "Connected pose stream websocket clients",
		}),
	}
	m.registry.MustRegister(m.Ticks, m.TickDuration, m.RenderErrors, m.MotionActive, m.Clients)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) counterFunc(subsystem, name, help string, read func() uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(read()) }))
}

// WatchBuffer exports the landmark buffer counters.
func (m *Metrics) WatchBuffer(b *tracking.Buffer) {
	m.counterFunc("buffer", "published_total", "Landmark frames published",
		func() uint64 { return b.Stats().Published })
	m.counterFunc("buffer", "empty_total", "Empty detections ignored by the buffer",
		func() uint64 { return b.Stats().Empty })
	m.counterFunc("buffer", "discarded_total", "Frames published after close",
		func() uint64 { return b.Stats().Discarded })
}

// WatchSolver exports the pose solver counters. stats is called at scrape time, so the
// solver behind it may be replaced.
func (m *Metrics) WatchSolver(stats func() pose.Stats) {
	m.counterFunc("solver", "solves_total", "Pose solves",
		func() uint64 { return stats().Solves })
	m.counterFunc("solver", "empty_total", "Solves without landmarks",
		func() uint64 { return stats().Empty })
	m.counterFunc("solver", "degenerate_total", "Look-at rules that held their rotation on degenerate input",
		func() uint64 { return stats().Degenerate })
	m.counterFunc("solver", "occluded_total", "Rules skipped for low landmark visibility",
		func() uint64 { return stats().Occluded })
}

// WatchRunner exports the detector runner counters.
func (m *Metrics) WatchRunner(r *detector.Runner) {
	m.counterFunc("detector", "submitted_total", "Frames submitted for detection",
		func() uint64 { return r.Stats().Submitted })
	m.counterFunc("detector", "dropped_total", "Frames dropped while the detector was busy",
		func() uint64 { return r.Stats().Dropped })
	m.counterFunc("detector", "detected_total", "Frames the detector finished",
		func() uint64 { return r.Stats().Detected })
	m.counterFunc("detector", "failed_total", "Detector errors",
		func() uint64 { return r.Stats().Failed })
}
