package metrics

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManager_Counters(t *testing.T) {
	m := NewManager()

	m.CheckIn(ResultSuccess)
	m.CheckIn(ResultSuccess)
	m.CheckIn(ResultDuplicate)
	m.Registration(ResultRejected)

	if got := testutil.ToFloat64(m.checkIns.WithLabelValues(ResultSuccess)); got != 2 {
		t.Errorf("expected 2 successful check-ins, got %f", got)
	}
	if got := testutil.ToFloat64(m.checkIns.WithLabelValues(ResultDuplicate)); got != 1 {
		t.Errorf("expected 1 duplicate check-in, got %f", got)
	}
	if got := testutil.ToFloat64(m.registrations.WithLabelValues(ResultRejected)); got != 1 {
		t.Errorf("expected 1 rejected registration, got %f", got)
	}
}

func TestManager_MatchSkipsInfiniteDistance(t *testing.T) {
	m := NewManager()

	m.Match("best_match_nearest", true, 0.3)
	m.Match("best_match_nearest", false, math.Inf(1))

	if got := testutil.ToFloat64(m.matches.WithLabelValues("best_match_nearest", "match")); got != 1 {
		t.Errorf("expected 1 match, got %f", got)
	}
	if got := testutil.ToFloat64(m.matches.WithLabelValues("best_match_nearest", "no_match")); got != 1 {
		t.Errorf("expected 1 no_match, got %f", got)
	}
	if n := testutil.CollectAndCount(m.matchDistance); n != 1 {
		t.Errorf("expected one distance series, got %d", n)
	}
}

func TestManager_Handler(t *testing.T) {
	m := NewManager(WithNamespace("test"))
	m.RosterSize(3)
	m.Extraction(20 * time.Millisecond)
	m.HTTPRequest(http.MethodPost, "/api/v1/predict", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		"test_roster_students 3",
		"test_extraction_duration_seconds_count 1",
		`test_http_requests_total{method="POST",route="/api/v1/predict",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition output", want)
		}
	}
}

func TestManager_WithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewManager(WithRegistry(registry))
	if m.Registry() != registry {
		t.Error("expected provided registry to be used")
	}
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	m.CheckIn(ResultSuccess)
	m.Registration(ResultSuccess)
	m.Match("x", true, 0.1)
	m.Extraction(time.Second)
	m.RosterSize(1)
	m.HTTPRequest(http.MethodGet, "/", http.StatusOK, time.Second)
}
