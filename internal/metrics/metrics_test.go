package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.ObserveReport("excellent", 10*time.Millisecond)
	m.ObserveReport("excellent", 20*time.Millisecond)
	m.ObserveReport("poor", time.Millisecond)
	m.ObserveCoalesced()
	m.ObservePublish(nil)
	m.ObservePublish(errors.New("broker down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reports.WithLabelValues("excellent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("poor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coalesced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("error")))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.CacheMiss()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "batgauge_report_cache_misses_total 1")
}
