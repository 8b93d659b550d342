package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserveChapterAndRetries(t *testing.T) {
	before := testutil.ToFloat64(chaptersTotal.WithLabelValues("stored"))
	ObserveChapter("stored")
	require.Equal(t, before+1, testutil.ToFloat64(chaptersTotal.WithLabelValues("stored")))

	retries := testutil.ToFloat64(storeRetriesTotal)
	ObserveStoreRetry()
	require.Equal(t, retries+1, testutil.ToFloat64(storeRetriesTotal))
}

func TestObserveFetchCountsBytes(t *testing.T) {
	before := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("fetch.example"))
	ObserveFetch("https://fetch.example/toc", "200", 42)
	ObserveFetch("https://fetch.example/missing", "404", 0)
	require.Equal(t, before+42, testutil.ToFloat64(fetchBytesTotal.WithLabelValues("fetch.example")))
	require.GreaterOrEqual(t, testutil.ToFloat64(fetchesTotal.WithLabelValues("fetch.example", "404")), 1.0)
}

func TestActiveWorkersGauge(t *testing.T) {
	start := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	require.Equal(t, start+1, testutil.ToFloat64(activeWorkers))
	DecActiveWorkers()
	require.Equal(t, start, testutil.ToFloat64(activeWorkers))
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/teapot/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot/7", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "418")))
}

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "201"))
	ObserveHTTPRequest("POST", "/x", http.StatusCreated, 10*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "201")))
}
