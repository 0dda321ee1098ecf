package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	okBefore := testutil.ToFloat64(FileOperationsTotal.WithLabelValues("upload", ResultSuccess))
	errBefore := testutil.ToFloat64(FileOperationsTotal.WithLabelValues("upload", ResultError))

	ObserveOperation("upload", nil)
	ObserveOperation("upload", errors.New("boom"))
	ObserveOperation("upload", nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(FileOperationsTotal.WithLabelValues("upload", ResultSuccess)))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(FileOperationsTotal.WithLabelValues("upload", ResultError)))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/files/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/files/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	DecryptFailuresTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "safedrop_decrypt_failures_total"))
}
