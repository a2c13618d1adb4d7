package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecordMerge(t *testing.T) {
	beforeOK := testutil.ToFloat64(merges.WithLabelValues(ResultSuccess))
	beforeFaces := testutil.ToFloat64(mergeRows.WithLabelValues("faces_updated"))
	beforeDups := testutil.ToFloat64(mergeRows.WithLabelValues("duplicates_removed"))

	RecordMerge(ResultSuccess, 15*time.Millisecond, map[string]int64{
		"faces_updated":      4,
		"duplicates_removed": 0,
	})

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(merges.WithLabelValues(ResultSuccess)))
	assert.Equal(t, beforeFaces+4, testutil.ToFloat64(mergeRows.WithLabelValues("faces_updated")))
	assert.Equal(t, beforeDups, testutil.ToFloat64(mergeRows.WithLabelValues("duplicates_removed")))
}

func TestRecordTxRetry(t *testing.T) {
	before := testutil.ToFloat64(txRetries.WithLabelValues("sqlite"))
	RecordTxRetry("sqlite")
	RecordTxRetry("sqlite")
	assert.Equal(t, before+2, testutil.ToFloat64(txRetries.WithLabelValues("sqlite")))
}

func TestRequestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestMetricsMiddleware)
	r.Get("/clusters/{id}/faces", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	pattern := httpRequests.WithLabelValues(http.MethodGet, "/clusters/{id}/faces", "404")
	health := httpRequests.WithLabelValues(http.MethodGet, "/health", "200")
	beforePattern := testutil.ToFloat64(pattern)
	beforeHealth := testutil.ToFloat64(health)

	for _, path := range []string{"/clusters/17/faces", "/clusters/23/faces", "/health"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, beforePattern+2, testutil.ToFloat64(pattern))
	assert.Equal(t, beforeHealth+1, testutil.ToFloat64(health))
}

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	r := chi.NewRouter()
	r.Use(RequestLogger(zerolog.New(&logs)))
	r.Post("/merge_clusters", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/merge_clusters", nil))

	out := logs.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"path":"/merge_clusters"`)
	assert.Contains(t, out, `"status":409`)
	assert.Contains(t, out, `"message":"http_request"`)
}
