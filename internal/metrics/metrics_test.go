package metrics

import (
	"io"
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

func TestCollector_HTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)
	c.RecordUnauthorized()
	c.RecordHTTPLatency(120 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpStatus.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpStatus.WithLabelValues("401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.unauthorized))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpLatency))
}

func TestCollector_RealtimeStateIsExclusive(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRealtimeState("connecting")
	c.RecordRealtimeState("connected")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.realtimeState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.realtimeState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.realtimeState.WithLabelValues("closed")))
}

func TestCollector_RealtimeCounters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordReconnectAttempt()
	c.RecordReconnectAttempt()
	c.RecordRealtimeMessage("broadcast_message")
	c.RecordDroppedMessage("malformed")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.reconnects))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("broadcast_message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.droppedMessages.WithLabelValues("malformed")))
}

func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(503)

	srv := httptest.NewServer(SetupMetricsRoute(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `portal_http_status_total{status_code="503"} 1`))
}

func TestNop_SatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordRealtimeState("closed")
	var _ Recorder = NewCollector(prometheus.NewRegistry())
}
