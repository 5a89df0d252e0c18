package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// prometheusBrokerMetrics is the Prometheus implementation of BrokerMetrics.
type prometheusBrokerMetrics struct {
	handshakeTotal    *prometheus.CounterVec
	handshakeDuration *prometheus.HistogramVec

	channelsOpened *prometheus.CounterVec
	channelsClosed *prometheus.CounterVec
	activeChannels prometheus.Gauge

	queryDuration *prometheus.HistogramVec
	queryTotal    *prometheus.CounterVec
	eventsTotal   *prometheus.CounterVec

	bytesTransferred *prometheus.CounterVec
	payloadRejected  *prometheus.CounterVec
}

func newPrometheusBrokerMetrics(reg *prometheus.Registry) *prometheusBrokerMetrics {
	return &prometheusBrokerMetrics{
		handshakeTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anp_handshake_total",
				Help: "Total number of rendezvous handshakes attempted, by role and outcome",
			},
			[]string{"role", "outcome"}, // outcome: "success", "failure"
		),
		handshakeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anp_handshake_duration_seconds",
				Help:    "Time from socket accept/connect to completed handshake",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"role"},
		),
		channelsOpened: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anp_channels_opened_total",
				Help: "Total number of channels that completed handshake",
			},
			[]string{"role"},
		),
		channelsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anp_channels_closed_total",
				Help: "Total number of channels closed, by reason",
			},
			[]string{"role", "reason"},
		),
		activeChannels: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "anp_active_channels",
				Help: "Current number of open channels",
			},
		),
		queryDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "anp_query_duration_seconds",
				Help:    "Time from SendCommand to reply or cancellation, by namespace",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"namespace"},
		),
		queryTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anp_query_total",
				Help: "Total number of completed outgoing queries, by namespace and outcome",
			},
			[]string{"namespace", "outcome"}, // outcome: "ok", "cancelled", "error"
		),
		eventsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anp_events_total",
				Help: "Total number of inbound events delivered, by namespace",
			},
			[]string{"namespace"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anp_bytes_total",
				Help: "Total bytes transferred across the wire, by direction",
			},
			[]string{"direction"}, // "sent", "received"
		),
		payloadRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "anp_payload_rejected_total",
				Help: "Total number of messages dropped for exceeding the payload cap",
			},
			[]string{"role"},
		),
	}
}

func (m *prometheusBrokerMetrics) RecordHandshake(role string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.handshakeTotal.WithLabelValues(role, outcome).Inc()
	m.handshakeDuration.WithLabelValues(role).Observe(duration.Seconds())
}

func (m *prometheusBrokerMetrics) RecordChannelOpened(role string) {
	if m == nil {
		return
	}
	m.channelsOpened.WithLabelValues(role).Inc()
}

func (m *prometheusBrokerMetrics) RecordChannelClosed(role string, reason string) {
	if m == nil {
		return
	}
	m.channelsClosed.WithLabelValues(role, reason).Inc()
}

func (m *prometheusBrokerMetrics) SetActiveChannels(count int) {
	if m == nil {
		return
	}
	m.activeChannels.Set(float64(count))
}

func (m *prometheusBrokerMetrics) RecordQuery(namespace uint32, duration time.Duration, cancelled bool, errorCode int) {
	if m == nil {
		return
	}
	ns := strconv.FormatUint(uint64(namespace), 10)
	outcome := "ok"
	switch {
	case cancelled:
		outcome = "cancelled"
	case errorCode != 0:
		outcome = "error"
	}
	m.queryDuration.WithLabelValues(ns).Observe(duration.Seconds())
	m.queryTotal.WithLabelValues(ns, outcome).Inc()
}

func (m *prometheusBrokerMetrics) RecordEvent(namespace uint32) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(strconv.FormatUint(uint64(namespace), 10)).Inc()
}

func (m *prometheusBrokerMetrics) RecordBytesTransferred(direction string, bytes uint64) {
	if m == nil {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *prometheusBrokerMetrics) RecordPayloadRejected(role string) {
	if m == nil {
		return
	}
	m.payloadRejected.WithLabelValues(role).Inc()
}
