package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRouterWiring(t *testing.T) {
	t.Parallel()

	runtime := newTestRuntime(&fakeEngine{}, &fakeSprintLister{})
	handler := runtime.Handler()

	testCases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{name: "livez", method: http.MethodGet, path: "/livez", wantStatus: http.StatusOK},
		{name: "readyz", method: http.MethodGet, path: "/readyz", wantStatus: http.StatusOK},
		{name: "healthz", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "prometheus_metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK},
		{name: "sprints", method: http.MethodGet, path: "/api/sprints", wantStatus: http.StatusOK},
		{name: "metrics_requires_post", method: http.MethodGet, path: "/api/metrics", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown_route", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.wantStatus {
				t.Fatalf("%s %s = %d, want %d", tc.method, tc.path, recorder.Code, tc.wantStatus)
			}
		})
	}
}

func TestPrometheusMetricsExposed(t *testing.T) {
	t.Parallel()

	runtime := newTestRuntime(&fakeEngine{notifications: nil}, &fakeSprintLister{})
	handler := runtime.Handler()

	// One computation marks the counters before scraping.
	request := httptest.NewRequest(http.MethodPost, "/api/metrics", strings.NewReader(`{"sprintIds":[]}`))
	handler.ServeHTTP(httptest.NewRecorder(), request)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(recorder.Body)
	if err != nil {
		t.Fatalf("read metrics body: %v", err)
	}
	exposition := string(body)
	for _, metric := range []string{
		"team_status_computations_total",
		"team_status_computation_duration_seconds",
	} {
		if !strings.Contains(exposition, metric) {
			t.Fatalf("metrics exposition missing %q", metric)
		}
	}
}

func TestWrapHTTPHandlerOffModePassesThrough(t *testing.T) {
	t.Parallel()

	called := false
	handler := wrapHTTPHandler("off", "test", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called || recorder.Code != http.StatusTeapot {
		t.Fatalf("wrapped handler not invoked: called=%t status=%d", called, recorder.Code)
	}
}

func TestWrapHTTPHandlerNilHandler(t *testing.T) {
	t.Parallel()

	handler := wrapHTTPHandler("off", "test", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
}
