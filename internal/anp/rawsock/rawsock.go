// Package rawsock wraps raw, non-blocking TCP sockets for use with the
// selector package. Every operation here is expected to be driven by a
// Selector readiness check first: Read/Write/Accept/Connect all report a
// would-block condition rather than parking the calling goroutine, so a
// single worker thread can own many sockets without spawning one goroutine
// per connection.
package rawsock

import "errors"

// ErrWouldBlock is returned by Read, Write, Accept and Connect when the
// operation cannot complete without blocking. Callers should re-register the
// descriptor with a Selector and retry on the next ready turn.
var ErrWouldBlock = errors.New("rawsock: would block")

// ErrConnLost is returned by Read when the peer has closed the connection
// (a zero-length read on a ready descriptor). Other socket failures, from
// Read, Write or ConnectResult, are returned as the underlying OS error.
var ErrConnLost = errors.New("rawsock: connection lost")

// FD is a raw, non-blocking socket descriptor.
type FD int

// Int returns the underlying OS descriptor, e.g. for Selector registration.
func (fd FD) Int() int { return int(fd) }
