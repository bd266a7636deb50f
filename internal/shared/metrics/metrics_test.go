package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWager_RegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWager(reg)

	m.LedgerMutations.WithLabelValues("wager_placed").Inc()
	m.LedgerMutations.WithLabelValues("wager_placed").Inc()
	m.DomainErrors.WithLabelValues("validation").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerMutations.WithLabelValues("wager_placed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DomainErrors.WithLabelValues("validation")))

	// registrar duas vezes no mesmo registry deve falhar
	assert.Panics(t, func() { NewWager(reg) })
}

func TestHandler_Healthz(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewBroadcaster(reg)

	ok := Handler(reg, HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }})
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	down := Handler(reg, HealthCheck{Name: "postgres", Check: func(context.Context) error { return errors.New("refused") }})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")
}

func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBroadcaster(reg)
	m.Published.Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "broadcaster_redis_published_total 1")
}
