package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("/lint", http.MethodPost, 200, 20*time.Millisecond)
	m.ObserveRequest("/lint", http.MethodPost, 200, 30*time.Millisecond)
	m.ObserveRequest("/test", http.MethodPost, 401, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/lint", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/test", "POST", "401")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))
}

func TestObserveEngineCall(t *testing.T) {
	m := New()

	m.ObserveEngineCall("export", "ok", time.Second)
	m.ObserveEngineCall("export", "not_found", time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.engineCallsTotal.WithLabelValues("export", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.engineCallsTotal.WithLabelValues("export", "not_found")))
}

func TestAuthAndValidationCounters(t *testing.T) {
	m := New()

	m.AuthDecision("forbidden")
	m.AuthDecision("forbidden")
	m.ValidationFailure("/export")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authDecisions.WithLabelValues("forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationFailures.WithLabelValues("/export")))
}

func TestHandler_ExposesSeries(t *testing.T) {
	m := New()
	m.ObserveRequest("/export", http.MethodPost, 200, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `contractd_http_requests_total{method="POST",route="/export",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveRequest("/lint", http.MethodPost, 200, time.Millisecond)
	m.ObserveEngineCall("lint", "ok", time.Millisecond)
	m.AuthDecision("allow")
	m.ValidationFailure("/lint")
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
