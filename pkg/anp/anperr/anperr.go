// Package anperr provides the error taxonomy shared by every layer of the
// ANP stack (codec, transport, worker, broker, channel). This is a leaf
// package with no internal dependencies so that it can be imported by both
// the wire codec and the broker without causing import cycles.
package anperr

import "fmt"

// Code identifies the kind of error that occurred. An Error converts to and
// from its wire elements (ToElements, DecodeFrom); the broker itself does not
// send channel-close or query errors to the peer.
type Code uint32

const (
	// Generic is the default kind used when nothing more specific applies.
	Generic Code = iota

	// Cancelled indicates the operation was cancelled by the local caller.
	Cancelled

	// Interrupted indicates the broker was shut down while the operation
	// was outstanding.
	Interrupted

	// Concurrent indicates an incompatible operation is already in progress
	// (e.g. a second connect attempt while one is already underway).
	Concurrent

	// KcdConn indicates the remote side of the connection was lost.
	KcdConn

	// EAnpConn indicates the local transport for the channel was lost
	// (socket error, framing error, handshake failure).
	EAnpConn

	// InvalidKpsConfig is a passthrough configuration error.
	InvalidKpsConfig

	// InvalidKwsLoginPwd is a passthrough credential error.
	InvalidKwsLoginPwd

	// PermDenied indicates an authorization failure.
	PermDenied

	// QuotaExceeded indicates a quota was exceeded; Sub carries which one.
	QuotaExceeded

	// UpgradeKwm indicates the peer is running software too old to proceed.
	UpgradeKwm
)

func (c Code) String() string {
	switch c {
	case Generic:
		return "Generic"
	case Cancelled:
		return "Cancelled"
	case Interrupted:
		return "Interrupted"
	case Concurrent:
		return "Concurrent"
	case KcdConn:
		return "KcdConn"
	case EAnpConn:
		return "EAnpConn"
	case InvalidKpsConfig:
		return "InvalidKpsConfig"
	case InvalidKwsLoginPwd:
		return "InvalidKwsLoginPwd"
	case PermDenied:
		return "PermDenied"
	case QuotaExceeded:
		return "QuotaExceeded"
	case UpgradeKwm:
		return "UpgradeKwm"
	default:
		return fmt.Sprintf("Code(%d)", uint32(c))
	}
}

// QuotaSub distinguishes the QuotaExceeded sub-kinds.
type QuotaSub uint32

const (
	// QuotaGeneric is an unclassified quota violation.
	QuotaGeneric QuotaSub = iota
	// QuotaWorkspaceFile is a per-workspace file-count quota.
	QuotaWorkspaceFile
	// QuotaSecureWorkspace is a secure-workspace storage quota.
	QuotaSecureWorkspace
)

// Error is the concrete error type carried through the ANP stack. Zero value
// Sub is ignored unless Code is QuotaExceeded.
type Error struct {
	Code    Code
	Message string
	Sub     QuotaSub
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == QuotaExceeded {
		return fmt.Sprintf("%s(%d): %s", e.Code, e.Sub, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a generic Error with the given message.
func New(msg string) *Error {
	return &Error{Code: Generic, Message: msg}
}

// Newf builds a generic Error with a formatted message.
func Newf(format string, args ...any) *Error {
	return &Error{Code: Generic, Message: fmt.Sprintf(format, args...)}
}

// WithCode builds an Error of the given kind.
func WithCode(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Quota builds a QuotaExceeded error carrying the given sub-kind.
func Quota(sub QuotaSub, msg string) *Error {
	return &Error{Code: QuotaExceeded, Sub: sub, Message: msg}
}

// ConnLost is the local-transport-lost error every worker-side close
// surfaces to the broker as, per the failure semantics in the spec.
func ConnLost(reason string) *Error {
	return &Error{Code: EAnpConn, Message: reason}
}

// Is reports whether err is an *Error with the given code, unwrapping
// through fmt.Errorf %w chains.
func Is(err error, code Code) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Code == code
}
