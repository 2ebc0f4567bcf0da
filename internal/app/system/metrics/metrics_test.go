package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncBatchRecord("address_fix", "split")
		m.ObserveBatch("address_fix", time.Second)
		m.IncPostalLookup("hit")
		m.ObservePostalLatency(time.Millisecond)
		m.IncJobFinished("address_fix", "completed")
	})
	assert.NotNil(t, m.Handler())
}

func TestCounters(t *testing.T) {
	m := NewWith(prometheus.NewRegistry())

	m.IncBatchRecord("type_migration", "migrated")
	m.IncBatchRecord("type_migration", "migrated")
	m.IncPostalLookup("miss")
	m.IncJobFinished("address_fix", "failed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchRecords.WithLabelValues("type_migration", "migrated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PostalLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFinished.WithLabelValues("address_fix", "failed")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.IncBatchRecord("address_fix", "converted")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `stratamembers_batch_records_total{batch="address_fix",outcome="converted"} 1`))
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
