package adapters

import (
	"fmt"
	"mqtt-console/application"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess = "success"
	resultError   = "error"
)

var connectionStates = []application.ConnectionState{
	application.StateDisconnected,
	application.StateConnecting,
	application.StateConnected,
	application.StateReconnecting,
}

// PrometheusMetrics exposes the session's state and traffic on a prometheus registry.
type PrometheusMetrics struct {
	ConnectionState   *prometheus.GaugeVec
	Operations        *prometheus.CounterVec
	MessagesArrived   prometheus.Counter
	ArrivedSizeBytes  prometheus.Histogram
	ReconnectAttempts prometheus.Counter
}

func NewPrometheusMetrics(registry prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mqtt_console_connection_state",
			Help: "Current connection state (1 for the active state, 0 otherwise)",
		}, []string{"state"}),
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_console_operations_total",
			Help: "Total number of broker operations by type and result",
		}, []string{"op", "result"}),
		MessagesArrived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_console_messages_arrived_total",
			Help: "Total number of messages received on subscribed topics",
		}),
		ArrivedSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_console_message_size_bytes",
			Help:    "Size of received messages in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 2, 10),
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_console_reconnect_attempts_total",
			Help: "Total number of reconnection attempts after a lost connection",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.ConnectionState,
		m.Operations,
		m.MessagesArrived,
		m.ArrivedSizeBytes,
		m.ReconnectAttempts,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	m.SetState(application.StateDisconnected)
	return m, nil
}

func (m *PrometheusMetrics) SetState(state application.ConnectionState) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s.String()).Set(v)
	}
}

func (m *PrometheusMetrics) ObserveOperation(op string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	m.Operations.WithLabelValues(op, result).Inc()

	if op == application.OpReconnect {
		m.ReconnectAttempts.Inc()
	}
}

func (m *PrometheusMetrics) MessageArrived(size int) {
	m.MessagesArrived.Inc()
	m.ArrivedSizeBytes.Observe(float64(size))
}

var _ application.Metrics = &PrometheusMetrics{}
