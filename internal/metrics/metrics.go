// Package metrics exposes Prometheus instrumentation for the engine's
// queues, sends, and drops.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the Charge Point process
// registers.
type Metrics struct {
	QueueDepth       *prometheus.GaugeVec
	MessagesSent     *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec
	SendAttempts     *prometheus.CounterVec
	SendFailures     prometheus.Counter
	HeartbeatsSent   prometheus.Counter
	SnapshotDuration prometheus.Histogram
	ReconnectTotal   prometheus.Counter
}

// New creates and registers every collector against the given registerer.
// Pass prometheus.DefaultRegisterer for the process-wide default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ocpp_queue_depth",
				Help: "Number of messages currently queued, by queue name.",
			},
			[]string{"queue"}, // ready, wait, timer
		),
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocpp_messages_sent_total",
				Help: "Total number of OCPP messages handed to the transport, by type.",
			},
			[]string{"type"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocpp_messages_dropped_total",
				Help: "Total number of OCPP messages dropped without a response, by type.",
			},
			[]string{"type"},
		),
		SendAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocpp_send_attempts_total",
				Help: "Total number of send attempts (including retries), by type.",
			},
			[]string{"type"},
		),
		SendFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ocpp_send_failures_total",
				Help: "Total number of transport Send calls that returned an error.",
			},
		),
		HeartbeatsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ocpp_heartbeats_sent_total",
				Help: "Total number of synthesized Heartbeat messages sent while idle.",
			},
		),
		SnapshotDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ocpp_snapshot_duration_seconds",
				Help:    "Duration of SaveSnapshot calls.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReconnectTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ocpp_reconnect_total",
				Help: "Total number of WebSocket reconnect attempts to the Central System.",
			},
		),
	}
}

// ObserveQueueDepths records the current size of each of the three engine
// queues.
func (m *Metrics) ObserveQueueDepths(ready, wait, timer int) {
	m.QueueDepth.WithLabelValues("ready").Set(float64(ready))
	m.QueueDepth.WithLabelValues("wait").Set(float64(wait))
	m.QueueDepth.WithLabelValues("timer").Set(float64(timer))
}

// RecordSend records one send attempt and its outcome.
func (m *Metrics) RecordSend(msgType string, err error) {
	m.SendAttempts.WithLabelValues(msgType).Inc()
	if err != nil {
		m.SendFailures.Inc()
		return
	}
	m.MessagesSent.WithLabelValues(msgType).Inc()
}

// RecordDrop records a message dropped without ever getting a response.
func (m *Metrics) RecordDrop(msgType string) {
	m.MessagesDropped.WithLabelValues(msgType).Inc()
}
