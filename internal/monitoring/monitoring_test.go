package monitoring

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_InstrumentUsesRoutePattern(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/api/users/1", "/api/users/2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues(http.MethodGet, "/api/users/{id}", "404"))
	assert.Equal(t, float64(2), got)
}

func TestMetrics_ThrottleAndHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveThrottle("guest", "allowed")
	m.ObserveThrottle("guest", "rate_limit")
	m.ObserveThrottle("guest", "rate_limit")
	m.SetProcessStats(ProcessStats{RSSBytes: 1024, CPUPercent: 12.5})
	m.SetRateLimitBuckets(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.throttleDecisions.WithLabelValues("guest", "rate_limit")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(m.processRSS))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.rateLimitBuckets))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `acquisitions_throttle_decisions_total{outcome="rate_limit",role="guest"} 2`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestProcessSampler(t *testing.T) {
	s, err := NewProcessSampler()
	require.NoError(t, err)

	_, ok := s.Latest()
	assert.False(t, ok)

	stats, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Greater(t, stats.RSSBytes, uint64(0))
	assert.Greater(t, stats.Goroutines, 0)

	latest, ok := s.Latest()
	assert.True(t, ok)
	assert.Equal(t, stats, latest)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, s.AddJob("@every 1s", "tick", time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("failures are logged, not fatal")
	}))
	assert.Error(t, s.AddJob("not a cron expression", "bad", time.Second, func(context.Context) error { return nil }))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
