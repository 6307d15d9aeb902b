package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusRecorder_ExposesCounters(t *testing.T) {
	rec := NewPrometheusRecorder()
	rec.IncCounter(GateOutcome, map[string]string{"action": "project", "outcome": "written"})
	rec.IncCounter(GateOutcome, map[string]string{"action": "project", "outcome": "written"})
	rec.ObserveLatency(PaymentVerify, 120*time.Millisecond, map[string]string{"outcome": "ok"})

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	want := `market_events_total{action="project",outcome="written",type="gate_outcome"} 2`
	if !strings.Contains(body, want) {
		t.Errorf("missing %q in:\n%s", want, body)
	}
	if !strings.Contains(body, `market_latency_seconds_count{operation="payment_verify",outcome="ok"} 1`) {
		t.Errorf("latency histogram not exported:\n%s", body)
	}
}

func TestNewPrometheusRecorder_Independent(t *testing.T) {
	// Private registries: constructing twice must not panic on duplicate registration.
	NewPrometheusRecorder()
	NewPrometheusRecorder()
}

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)
