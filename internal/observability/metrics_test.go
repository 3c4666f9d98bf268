package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewMetrics()
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	body := scrape(t, m)
	assert.Contains(t, body, `meridian_http_requests_total{code="418",route="unknown"} 1`)
}

func TestObserveDecision(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision("task.assign", true)
	m.ObserveDecision("task.assign", false)
	m.ObserveDecision("task.assign", false)

	body := scrape(t, m)
	assert.Contains(t, body, `meridian_authz_decisions_total{action="task.assign",outcome="allow"} 1`)
	assert.Contains(t, body, `meridian_authz_decisions_total{action="task.assign",outcome="deny"} 2`)
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.ObserveDecision("task.assign", true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
