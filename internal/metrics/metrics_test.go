package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordAndServe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLookup("cached", time.Millisecond)
	m.ObserveLookup("fetched", time.Second)
	m.ObserveLookup("fetched", time.Second)
	m.IncAttempt()
	m.ObserveBackup(nil)
	m.ObserveBackup(errors.New("s3 down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PriceLookups.WithLabelValues("fetched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backups.WithLabelValues("failed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `investlog_price_lookups_total{outcome="cached"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLookup("failed", time.Second)
		m.IncAttempt()
		m.SetBatchSize(3)
		m.ObserveHTTP("GET", "200", time.Millisecond)
		m.AddWSClients(1)
		m.ObserveBackup(nil)
	})
}
