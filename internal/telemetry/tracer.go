package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for broker spans, following OpenTelemetry semantic
// convention style where applicable.
const (
	// ========================================================================
	// Peer attributes
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
	AttrClientPort = "client.port"

	// ========================================================================
	// Channel & message attributes
	// ========================================================================
	AttrChannelID = "anp.channel_id"
	AttrMessageID = "anp.message_id"
	AttrNamespace = "anp.namespace"
	AttrMsgRole   = "anp.role"
	AttrPayload   = "anp.payload_len"
	AttrRole      = "anp.broker_role" // server or client

	// ========================================================================
	// Outcome attributes
	// ========================================================================
	AttrStatus    = "anp.status"
	AttrStatusMsg = "anp.status_msg"
	AttrCancelled = "anp.cancelled"
)

// Span names for broker operations.
const (
	SpanHandshake    = "anp.handshake"
	SpanChannelOpen  = "anp.channel.open"
	SpanChannelClose = "anp.channel.close"
	SpanQuery        = "anp.query"
	SpanEvent        = "anp.event"
)

// ClientIP returns an attribute for the peer's IP address.
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for the peer's full address.
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// ChannelID returns an attribute for a thread channel identifier.
func ChannelID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrChannelID, int64(id))
}

// MessageID returns an attribute for a message correlation id.
func MessageID(id uint64) attribute.KeyValue {
	return attribute.Int64(AttrMessageID, int64(id))
}

// Namespace returns an attribute for a message's namespace id.
func Namespace(ns uint32) attribute.KeyValue {
	return attribute.Int64(AttrNamespace, int64(ns))
}

// MsgRole returns an attribute for a message's role (command/response/event).
func MsgRole(role string) attribute.KeyValue {
	return attribute.String(AttrMsgRole, role)
}

// PayloadLen returns an attribute for an encoded payload length.
func PayloadLen(n uint32) attribute.KeyValue {
	return attribute.Int64(AttrPayload, int64(n))
}

// BrokerRole returns an attribute for the broker's role (server/client).
func BrokerRole(role string) attribute.KeyValue {
	return attribute.String(AttrRole, role)
}

// Cancelled returns an attribute for whether a query was cancelled.
func Cancelled(cancelled bool) attribute.KeyValue {
	return attribute.Bool(AttrCancelled, cancelled)
}

// StartChannelSpan starts a span for a channel lifecycle event.
func StartChannelSpan(ctx context.Context, name string, channelID uint64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{ChannelID(channelID)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartQuerySpan starts an anp.query span carrying a query's channel id,
// message id and namespace. The broker does not call it; Channel.SendCommand
// opens no span.
func StartQuerySpan(ctx context.Context, channelID, messageID uint64, namespace uint32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ChannelID(channelID),
		MessageID(messageID),
		Namespace(namespace),
	}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanQuery, trace.WithAttributes(allAttrs...))
}
