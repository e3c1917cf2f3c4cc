package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_KeepsHandlerResponse(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNotFound, http.StatusServiceUnavailable} {
		handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("body"))
		}))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings", nil))

		if w.Code != status {
			t.Errorf("status: got %d, want %d", w.Code, status)
		}
		if w.Body.String() != "body" {
			t.Errorf("body: got %q", w.Body.String())
		}
	}
}

func TestMetrics_InFlightSettles(t *testing.T) {
	before := testutil.ToFloat64(requestsInFlight)
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := testutil.ToFloat64(requestsInFlight); got < before+1 {
			t.Errorf("in-flight inside handler: got %f, want >= %f", got, before+1)
		}
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/contact", nil))

	if got := testutil.ToFloat64(requestsInFlight); got != before {
		t.Errorf("in-flight after request: got %f, want %f", got, before)
	}
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	mux := chi.NewRouter()
	mux.Use(Metrics)
	mux.Get("/api/blog/slug/{slug}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := requestsTotal.WithLabelValues(http.MethodGet, "/api/blog/slug/{slug}", "404")
	before := testutil.ToFloat64(counter)

	for _, slug := range []string{"first-post", "second-post"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/blog/slug/"+slug, nil))
	}

	if delta := testutil.ToFloat64(counter) - before; delta != 2 {
		t.Errorf("requests_total delta: got %f, want 2", delta)
	}
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	counter := requestsTotal.WithLabelValues(http.MethodGet, "unmatched", "200")
	before := testutil.ToFloat64(counter)

	Metrics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if delta := testutil.ToFloat64(counter) - before; delta != 1 {
		t.Errorf("unmatched delta: got %f, want 1", delta)
	}
}

func TestMetrics_ObservesResponseSize(t *testing.T) {
	mux := chi.NewRouter()
	mux.Use(Metrics)
	mux.Get("/api/sized", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 300)))
		_, _ = w.Write([]byte(strings.Repeat("y", 200)))
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/sized", nil))

	count, sum := histogramValue(t, "sheetcms_response_size_bytes", map[string]string{"method": "GET", "route": "/api/sized"})
	if count != 1 || sum != 500 {
		t.Errorf("response size: got count %d sum %f, want 1 and 500", count, sum)
	}
}

func TestRateLimited(t *testing.T) {
	before := testutil.ToFloat64(rateLimitedTotal)
	RateLimited()
	RateLimited()
	if delta := testutil.ToFloat64(rateLimitedTotal) - before; delta != 2 {
		t.Errorf("rate_limited_total delta: got %f, want 2", delta)
	}
}

// histogramValue reads sample count and sum of the series matching labels.
func histogramValue(t *testing.T, name string, labels map[string]string) (uint64, float64) {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue series
				}
			}
			return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
		}
	}
	return 0, 0
}
