package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the broker, worker, and
// admin surfaces. Use these keys consistently across all log statements for
// log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Role & Lifecycle
	// ========================================================================
	KeyRole  = "role"  // Broker role: server or client
	KeyState = "state" // State machine state (connecting, handshake, open, closed)

	// ========================================================================
	// Channel & Message
	// ========================================================================
	KeyChannelID  = "channel_id"  // Thread channel identifier
	KeyMessageID  = "message_id"  // Correlation id stamped on a command/response
	KeyNamespace  = "namespace"   // Message type's namespace id
	KeyFamily     = "family"      // Message type's protocol family
	KeyMsgRole    = "msg_role"    // Message type's role: command, response, event
	KeyPayloadLen = "payload_len" // Encoded payload length in bytes

	// ========================================================================
	// Rendezvous & Handshake
	// ========================================================================
	KeyRendezvousPath = "rendezvous_path" // Path to the rendezvous info file
	KeyPort           = "port"            // Bound listener port
	KeyDeadline       = "deadline"        // Handshake deadline

	// ========================================================================
	// Connection
	// ========================================================================
	KeyClientIP     = "client_ip"     // Peer IP address
	KeyClientPort   = "client_port"   // Peer source port
	KeyConnectionID = "connection_id" // Raw socket fd / connection identifier

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // anperr.Code value
	KeyAttempt    = "attempt"     // Retry/connect attempt number

	// ========================================================================
	// Admin API
	// ========================================================================
	KeyHTTPMethod = "http_method" // HTTP method
	KeyHTTPPath   = "http_path"   // HTTP request path
	KeyHTTPStatus = "http_status" // HTTP response status code
	KeySubject    = "subject"     // JWT subject (admin principal)
)

// TraceID returns a slog.Attr for an OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for an OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Role returns a slog.Attr for the broker's role (server/client).
func Role(role string) slog.Attr {
	return slog.String(KeyRole, role)
}

// State returns a slog.Attr for a state machine state.
func State(state string) slog.Attr {
	return slog.String(KeyState, state)
}

// ChannelID returns a slog.Attr for a thread channel identifier.
func ChannelID(id uint64) slog.Attr {
	return slog.Uint64(KeyChannelID, id)
}

// MessageID returns a slog.Attr for a message correlation id.
func MessageID(id uint64) slog.Attr {
	return slog.Uint64(KeyMessageID, id)
}

// Namespace returns a slog.Attr for a message's namespace id.
func Namespace(ns uint32) slog.Attr {
	return slog.Any(KeyNamespace, ns)
}

// Family returns a slog.Attr for a message's protocol family.
func Family(f uint32) slog.Attr {
	return slog.Any(KeyFamily, f)
}

// MsgRole returns a slog.Attr for a message's role (command/response/event).
func MsgRole(role string) slog.Attr {
	return slog.String(KeyMsgRole, role)
}

// PayloadLen returns a slog.Attr for an encoded payload length.
func PayloadLen(n uint32) slog.Attr {
	return slog.Any(KeyPayloadLen, n)
}

// RendezvousPath returns a slog.Attr for the rendezvous file path.
func RendezvousPath(path string) slog.Attr {
	return slog.String(KeyRendezvousPath, path)
}

// Port returns a slog.Attr for a listener port.
func Port(port int) slog.Attr {
	return slog.Int(KeyPort, port)
}

// ClientIP returns a slog.Attr for a peer IP address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for a peer source port.
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// ConnectionID returns a slog.Attr for a raw connection identifier.
func ConnectionID(id int) slog.Attr {
	return slog.Int(KeyConnectionID, id)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for a retry/connect attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// HTTPMethod returns a slog.Attr for an HTTP method.
func HTTPMethod(method string) slog.Attr {
	return slog.String(KeyHTTPMethod, method)
}

// HTTPPath returns a slog.Attr for an HTTP request path.
func HTTPPath(path string) slog.Attr {
	return slog.String(KeyHTTPPath, path)
}

// HTTPStatus returns a slog.Attr for an HTTP response status code.
func HTTPStatus(code int) slog.Attr {
	return slog.Int(KeyHTTPStatus, code)
}

// Subject returns a slog.Attr for a JWT subject.
func Subject(sub string) slog.Attr {
	return slog.String(KeySubject, sub)
}
