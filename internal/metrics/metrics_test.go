package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/benaskins/ghostwire/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ service.Recorder = (*Metrics)(nil)

func TestLifecycleCounters(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ProcessStartFailed()
	m.ProcessStarted()
	m.ProcessStarted()
	m.ProcessStopped(service.StopGraceful)
	m.ProcessStopped(service.StopForced)
	m.ProcessStopped(service.StopNone)

	if got := testutil.ToFloat64(m.starts); got != 2 {
		t.Errorf("starts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.startFailures); got != 1 {
		t.Errorf("start failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.running); got != 0 {
		t.Errorf("running = %v, want 0", got)
	}
	for _, mode := range []service.StopMode{service.StopGraceful, service.StopForced, service.StopNone} {
		if got := testutil.ToFloat64(m.stops.WithLabelValues(string(mode))); got != 1 {
			t.Errorf("stops{mode=%q} = %v, want 1", mode, got)
		}
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ProcessStarted()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "ghostwire_driver_starts_total 1") {
		t.Errorf("metrics output missing start counter:\n%s", body)
	}
}
