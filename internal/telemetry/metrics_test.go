package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/diasync/internal/telemetry"
)

func TestCollector_NilIsNoop(t *testing.T) {
	var c *telemetry.Collector

	assert.NotPanics(t, func() {
		c.RecordDiscoveryAttempt("share2.dexcom.com", "success")
		c.RecordReauthentication()
		c.RecordSync(telemetry.SyncSuccess, time.Second)
		c.RecordHistory(10, time.Now())
		c.SetConnected(true)
	})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCollector_Handler(t *testing.T) {
	c := telemetry.NewCollector()

	c.RecordDiscoveryAttempt("share2.dexcom.com", "zero_sentinel")
	c.RecordDiscoveryAttempt("share2.dexcom.com", "zero_sentinel")
	c.RecordDiscoveryAttempt("share1.dexcom.com", "success")
	c.RecordSync(telemetry.SyncSuccess, 200*time.Millisecond)
	c.RecordSync(telemetry.SyncSkipped, 0)
	c.RecordHistory(288, time.Unix(1772371800, 0))
	c.SetConnected(true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `diasync_discovery_attempts_total{host="share2.dexcom.com",outcome="zero_sentinel"} 2`)
	assert.Contains(t, text, `diasync_discovery_attempts_total{host="share1.dexcom.com",outcome="success"} 1`)
	assert.Contains(t, text, `diasync_syncs_total{result="skipped"} 1`)
	assert.Contains(t, text, `diasync_readings_stored 288`)
	assert.Contains(t, text, `diasync_connected 1`)
	assert.Contains(t, text, `diasync_sync_duration_seconds_count 1`)
}

func TestCollector_Counters(t *testing.T) {
	c := telemetry.NewCollector()

	c.RecordReauthentication()
	c.SetConnected(true)
	c.SetConnected(false)

	assert.Equal(t, 1, testutil.CollectAndCount(c.Registry(), "diasync_reauthentications_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(c.Registry(), "diasync_connected"))
}
