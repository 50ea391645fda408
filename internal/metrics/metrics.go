// Package metrics collects and exposes Prometheus metrics for the gateway and
// the realtime channel.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the gateway and the realtime channel report to.
type Recorder interface {
	RecordHTTPStatus(statusCode int)
	RecordHTTPLatency(duration time.Duration)
	RecordUnauthorized()
	RecordRealtimeState(state string)
	RecordReconnectAttempt()
	RecordRealtimeMessage(messageType string)
	RecordDroppedMessage(reason string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	httpStatus      *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	unauthorized    prometheus.Counter
	realtimeState   *prometheus.GaugeVec
	reconnects      prometheus.Counter
	messages        *prometheus.CounterVec
	droppedMessages *prometheus.CounterVec
}

// realtimeStates lists the label values of the state gauge
var realtimeStates = []string{"disconnected", "connecting", "connected", "reconnecting", "closed"}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_status_total",
			Help: "Backend responses by HTTP status code",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_http_latency_seconds",
			Help:    "Backend request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_http_unauthorized_total",
			Help: "Responses that ended the session",
		}),
		realtimeState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "portal_realtime_state",
			Help: "1 for the current realtime channel state, 0 otherwise",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_realtime_reconnect_attempts_total",
			Help: "Scheduled realtime reconnect attempts",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_realtime_messages_total",
			Help: "Inbound realtime messages by type",
		}, []string{"type"}),
		droppedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_realtime_dropped_messages_total",
			Help: "Inbound realtime messages that reached no handler",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.httpLatency,
		c.unauthorized,
		c.realtimeState,
		c.reconnects,
		c.messages,
		c.droppedMessages,
	)

	return c
}

// RecordHTTPStatus counts a backend response status.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency observes a backend round trip.
func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

// RecordUnauthorized counts a session-ending response.
func (c *Collector) RecordUnauthorized() {
	c.unauthorized.Inc()
}

// RecordRealtimeState sets the state gauge so exactly one state reads 1.
func (c *Collector) RecordRealtimeState(state string) {
	for _, s := range realtimeStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.realtimeState.WithLabelValues(s).Set(v)
	}
}

// RecordReconnectAttempt counts a scheduled reconnect.
func (c *Collector) RecordReconnectAttempt() {
	c.reconnects.Inc()
}

// RecordRealtimeMessage counts an inbound message.
func (c *Collector) RecordRealtimeMessage(messageType string) {
	c.messages.WithLabelValues(messageType).Inc()
}

// RecordDroppedMessage counts a message that was not delivered.
func (c *Collector) RecordDroppedMessage(reason string) {
	c.droppedMessages.WithLabelValues(reason).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute returns a mux serving /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Nop is a Recorder that records nothing.
type Nop struct{}

func (Nop) RecordHTTPStatus(int)            {}
func (Nop) RecordHTTPLatency(time.Duration) {}
func (Nop) RecordUnauthorized()             {}
func (Nop) RecordRealtimeState(string)      {}
func (Nop) RecordReconnectAttempt()         {}
func (Nop) RecordRealtimeMessage(string)    {}
func (Nop) RecordDroppedMessage(string)     {}
