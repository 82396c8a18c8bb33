// Package metrics exposes driver lifecycle counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/benaskins/ghostwire/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ghostwire"

// Metrics implements service.Recorder.
type Metrics struct {
	starts        prometheus.Counter
	startFailures prometheus.Counter
	stops         *prometheus.CounterVec
	running       prometheus.Gauge
}

// New registers the driver metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		starts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_starts_total",
			Help:      "Driver processes spawned.",
		}),
		startFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_start_failures_total",
			Help:      "Driver spawn attempts that failed.",
		}),
		stops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "driver_stops_total",
			Help:      "Service stops by how the process ended.",
		}, []string{"mode"}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "driver_running",
			Help:      "Driver processes currently running.",
		}),
	}
}

func (m *Metrics) ProcessStarted() {
	m.starts.Inc()
	m.running.Inc()
}

func (m *Metrics) ProcessStartFailed() {
	m.startFailures.Inc()
}

func (m *Metrics) ProcessStopped(mode service.StopMode) {
	m.stops.WithLabelValues(string(mode)).Inc()
	if mode != service.StopNone {
		m.running.Dec()
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
