package stats

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware(t *testing.T) {
	s := New()
	h := s.Middleware("road", "list")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(201)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/road/list/", nil))
	if w.Code != 201 {
		t.Fatalf("unexpected status %d", w.Code)
	}

	if v := testutil.ToFloat64(s.requests.WithLabelValues("road", "list", "201")); v != 1 {
		t.Errorf("expected 1 request, got %v", v)
	}

	// handlers without explicit WriteHeader count as 200
	h = s.Middleware("road", "detail")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/road/1/", nil))
	if v := testutil.ToFloat64(s.requests.WithLabelValues("road", "detail", "200")); v != 1 {
		t.Errorf("expected 1 request, got %v", v)
	}
}

func TestCounters(t *testing.T) {
	s := New()
	s.LayerCache("road", true)
	s.LayerCache("road", true)
	s.LayerCache("road", false)
	s.Export("road", "csv")
	s.Action("road", "addition")

	if v := testutil.ToFloat64(s.layerCache.WithLabelValues("road", "hit")); v != 2 {
		t.Errorf("expected 2 hits, got %v", v)
	}
	if v := testutil.ToFloat64(s.layerCache.WithLabelValues("road", "miss")); v != 1 {
		t.Errorf("expected 1 miss, got %v", v)
	}
	if v := testutil.ToFloat64(s.exports.WithLabelValues("road", "csv")); v != 1 {
		t.Errorf("expected 1 export, got %v", v)
	}
	if v := testutil.ToFloat64(s.actions.WithLabelValues("road", "addition")); v != 1 {
		t.Errorf("expected 1 action, got %v", v)
	}
}

func TestHandler(t *testing.T) {
	s := New()
	s.Export("road", "csv")

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != 200 {
		t.Fatalf("unexpected status %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `mapent_exports_total{entity="road",format="csv"} 1`) {
		t.Errorf("missing export counter in metrics:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("missing go collector metrics")
	}
}
