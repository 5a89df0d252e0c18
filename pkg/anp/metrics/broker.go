package metrics

import "time"

// BrokerMetrics provides observability for the ANP broker: channel
// lifecycle, handshake outcomes, query latency, and wire throughput.
//
// Implementations must be safe to call with a nil receiver, so that
// instrumented code can accept this interface directly and skip calling
// NewBrokerMetrics when metrics are disabled.
type BrokerMetrics interface {
	// RecordHandshake records the outcome of a rendezvous handshake.
	//
	// Parameters:
	//   - role: "server" or "client"
	//   - success: whether the handshake completed
	//   - duration: time from dial/accept to handshake completion
	RecordHandshake(role string, success bool, duration time.Duration)

	// RecordChannelOpened increments the count of channels that completed
	// handshake and became usable.
	RecordChannelOpened(role string)

	// RecordChannelClosed records a channel closing, with a reason label.
	// The broker passes the close error's text, or "connection lost" when
	// the worker reports no error.
	RecordChannelClosed(role string, reason string)

	// SetActiveChannels updates the current open-channel gauge.
	SetActiveChannels(count int)

	// RecordQuery records a completed outgoing query: the namespace it
	// targeted, how long it took to receive a reply, and whether it was
	// cancelled rather than answered.
	RecordQuery(namespace uint32, duration time.Duration, cancelled bool, errorCode int)

	// RecordEvent records an inbound event delivered to a channel.
	RecordEvent(namespace uint32)

	// RecordBytesTransferred records bytes moved across the wire.
	//
	// Parameters:
	//   - direction: "sent" or "received"
	//   - bytes: number of payload bytes (the 24-byte header is not counted)
	RecordBytesTransferred(direction string, bytes uint64)

	// RecordPayloadRejected records a message dropped for exceeding the
	// configured payload cap.
	RecordPayloadRejected(role string)
}

// NewBrokerMetrics creates a Prometheus-backed BrokerMetrics instance.
//
// Returns a Noop instance if metrics are not enabled (InitRegistry not
// called), so callers never need a nil check before recording.
func NewBrokerMetrics() BrokerMetrics {
	if !IsEnabled() {
		return Noop{}
	}
	return newPrometheusBrokerMetrics(GetRegistry())
}

// Noop is a zero-overhead BrokerMetrics that discards every observation.
// It is the value broker.NewServerBroker/NewClientBroker fall back to when
// ServerConfig.Metrics/ClientConfig.Metrics is left nil.
type Noop struct{}

func (Noop) RecordHandshake(role string, success bool, duration time.Duration) {}
func (Noop) RecordChannelOpened(role string)                                   {}
func (Noop) RecordChannelClosed(role string, reason string)                    {}
func (Noop) SetActiveChannels(count int)                                       {}
func (Noop) RecordQuery(namespace uint32, duration time.Duration, cancelled bool, errorCode int) {
}
func (Noop) RecordEvent(namespace uint32)                     {}
func (Noop) RecordBytesTransferred(direction string, bytes uint64) {}
func (Noop) RecordPayloadRejected(role string)                {}
