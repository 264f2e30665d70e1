package go_bcapi

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsCollector using Prometheus collectors.
// Metrics are labeled by message kind name so cardinality stays bounded by
// the protocol's closed kind set.
//
// Metrics exposed:
//   - bcapi_messages_sent_total: Counter of sent messages by kind
//   - bcapi_messages_received_total: Counter of received messages by kind
//   - bcapi_active_sessions: Gauge of currently open sessions
//   - bcapi_errors_total: Counter of errors by type
//   - bcapi_message_latency_seconds: Histogram of request round-trip time by kind
//   - bcapi_connection_state: Gauge set to 1 for the current connection state
//   - bcapi_bytes_sent_total / bcapi_bytes_received_total: Bandwidth counters
//
// Example:
//
//	metrics := NewPrometheusMetrics(nil)
//	client.SetMetrics(metrics)
//	http.Handle("/metrics", promhttp.Handler())
type PrometheusMetrics struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	errorsTotal      *prometheus.CounterVec
	messageLatency   *prometheus.HistogramVec
	connectionState  *prometheus.GaugeVec
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter

	stateMu   sync.Mutex
	lastState string
}

// NewPrometheusMetrics creates a Prometheus-backed metrics collector and
// registers its collectors with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcapi",
			Name:      "messages_sent_total",
			Help:      "Total number of BCAPI messages sent by kind",
		}, []string{"kind"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcapi",
			Name:      "messages_received_total",
			Help:      "Total number of BCAPI messages received by kind",
		}, []string{"kind"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bcapi",
			Name:      "active_sessions",
			Help:      "Number of currently open BCAPI sessions",
		}),

		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcapi",
			Name:      "errors_total",
			Help:      "Total number of BCAPI client errors by type",
		}, []string{"type"}),

		messageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bcapi",
			Name:      "message_latency_seconds",
			Help:      "Round-trip latency of BCAPI requests by kind",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bcapi",
			Name:      "connection_state",
			Help:      "Connection state (1 for the current state, 0 otherwise)",
		}, []string{"state"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bcapi",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to the transport",
		}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bcapi",
			Name:      "bytes_received_total",
			Help:      "Total bytes read from the transport",
		}),
	}
}

// IncrementMessageSent increments the sent counter for the given kind.
func (p *PrometheusMetrics) IncrementMessageSent(kind uint8) {
	p.messagesSent.WithLabelValues(getMessageKindName(kind)).Inc()
}

// IncrementMessageReceived increments the received counter for the given kind.
func (p *PrometheusMetrics) IncrementMessageReceived(kind uint8) {
	p.messagesReceived.WithLabelValues(getMessageKindName(kind)).Inc()
}

// SetActiveSessions updates the active sessions gauge.
func (p *PrometheusMetrics) SetActiveSessions(count int) {
	p.activeSessions.Set(float64(count))
}

// IncrementError increments the error counter for the given error type.
func (p *PrometheusMetrics) IncrementError(errorType string) {
	p.errorsTotal.WithLabelValues(errorType).Inc()
}

// RecordMessageLatency observes the round-trip latency for a message kind.
func (p *PrometheusMetrics) RecordMessageLatency(kind uint8, duration time.Duration) {
	p.messageLatency.WithLabelValues(getMessageKindName(kind)).Observe(duration.Seconds())
}

// SetConnectionState marks state as current and clears the previous state.
func (p *PrometheusMetrics) SetConnectionState(state string) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	if p.lastState != "" && p.lastState != state {
		p.connectionState.WithLabelValues(p.lastState).Set(0)
	}
	p.connectionState.WithLabelValues(state).Set(1)
	p.lastState = state
}

// AddBytesSent adds to the bytes sent counter.
func (p *PrometheusMetrics) AddBytesSent(bytes uint64) {
	p.bytesSent.Add(float64(bytes))
}

// AddBytesReceived adds to the bytes received counter.
func (p *PrometheusMetrics) AddBytesReceived(bytes uint64) {
	p.bytesReceived.Add(float64(bytes))
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)
