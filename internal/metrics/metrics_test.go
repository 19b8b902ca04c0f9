package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/books/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/books/"+id, nil))
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/books/{id}", "404"))
	assert.Equal(t, 2.0, got)
}

func TestRecordStoreOperation(t *testing.T) {
	m := New()
	m.RecordStoreOperation("books", "find", time.Millisecond, nil)
	m.RecordStoreOperation("books", "find", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("books", "find", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperationsTotal.WithLabelValues("books", "find", "error")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordAsset("books", "stored")
	m.RegisterGaugeFunc("insighthink_sse_clients", "Connected SSE clients", func() float64 { return 3 })

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `insighthink_assets_total{collection="books",result="stored"} 1`))
	assert.True(t, strings.Contains(body, "insighthink_sse_clients 3"))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordAsset("books", "stored")
	m.RecordChange("books", "created")
	m.RecordCleanupFailure("books")
	m.RecordStoreOperation("books", "find", time.Millisecond, nil)
	m.RegisterGaugeFunc("x", "y", func() float64 { return 0 })

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
