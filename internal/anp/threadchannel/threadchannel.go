// Package threadchannel implements the per-connection object the worker
// owns: the raw socket, its Transport, and the handshake sub-state-machine
// that must complete before application messages can flow. Client and
// server variants share everything from Handshake completion onward; they
// differ only in how they arrive there.
package threadchannel

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/anpbroker/internal/anp/rawsock"
	"github.com/marmos91/anpbroker/internal/anp/rendezvous"
	"github.com/marmos91/anpbroker/internal/anp/selector"
	"github.com/marmos91/anpbroker/internal/anp/transport"
	"github.com/marmos91/anpbroker/pkg/anp"
)

// State is a ThreadChannel's lifecycle stage. Transitions are monotonic:
// Initial -> Connecting -> Handshake -> Open -> Closed, with Closed terminal
// and reachable from any state.
type State int

const (
	Initial State = iota
	Connecting
	Handshake
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case Connecting:
		return "Connecting"
	case Handshake:
		return "Handshake"
	case Open:
		return "Open"
	case Closed:
		return "Closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultHandshakeTimeout is the server-side deadline for receiving the full
// secret after accepting a connection.
const DefaultHandshakeTimeout = 5000 * time.Millisecond

// Channel is one connection's worker-side state. The zero value is not
// usable; construct with NewClient or NewServer.
type Channel struct {
	ID    uint64 // assigned by the owning worker once Open
	state State
	fd    rawsock.FD

	transport *transport.Transport
	outbox    []*anp.Message
	closeErr  error

	isServer bool

	// client-only (Initial -> Connecting -> Handshake)
	rendezvousPath string

	// handshake bookkeeping, shared shape for both variants
	wantSecret []byte // bytes we must send (client) or compare against (server)
	sendSecret []byte // client: local secret being written out
	sendGot    int
	recvBuf    []byte // server: incoming secret bytes being accumulated
	recvGot    int
	deadline   time.Time // server-only
}

// NewClient starts a channel in Initial state; on its first BeforeSelect it
// will read rendezvousPath to discover (port, secret) and begin connecting.
func NewClient(rendezvousPath string) *Channel {
	return &Channel{state: Initial, rendezvousPath: rendezvousPath}
}

// NewServer wraps an already-accepted socket in Handshake state, requiring
// the peer to present secret within timeout (DefaultHandshakeTimeout if
// zero).
func NewServer(fd rawsock.FD, secret []byte, timeout time.Duration) *Channel {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &Channel{
		state:      Handshake,
		fd:         fd,
		isServer:   true,
		wantSecret: secret,
		recvBuf:    make([]byte, len(secret)),
		deadline:   time.Now().Add(timeout),
	}
}

// State reports the current lifecycle stage.
func (c *Channel) State() State { return c.state }

// FD returns the underlying descriptor. Valid once past Initial.
func (c *Channel) FD() rawsock.FD { return c.fd }

// Err returns the reason the channel closed, or nil if still open or closed
// cleanly by the caller.
func (c *Channel) Err() error { return c.closeErr }

// Enqueue queues msg to be handed to the transport once Open. Order among
// enqueued messages is preserved.
func (c *Channel) Enqueue(msg *anp.Message) {
	c.outbox = append(c.outbox, msg)
}

func (c *Channel) closeWith(err error) {
	if c.state == Closed {
		return
	}
	c.state = Closed
	c.closeErr = err
	if c.fd != 0 {
		c.fd.Close()
	}
}

// Close closes the channel from the owning side (no error — a clean,
// caller-initiated close).
func (c *Channel) Close() { c.closeWith(nil) }

var (
	// ErrHandshakeTimeout means a server channel did not receive the full
	// secret within its deadline.
	ErrHandshakeTimeout = errors.New("threadchannel: handshake timeout")
	// ErrHandshakeMismatch means the peer's secret did not match.
	ErrHandshakeMismatch = errors.New("threadchannel: handshake secret mismatch")
	// ErrConnectFailed means a client's non-blocking connect failed.
	ErrConnectFailed = errors.New("threadchannel: connect failed")
)

// BeforeSelect lets the channel contribute to the selector ahead of Wait:
// registering its descriptor for the direction it currently needs, and (for
// a Connecting client) shrinking the timeout so the loop revisits promptly.
func (c *Channel) BeforeSelect(sel *selector.Selector) {
	switch c.state {
	case Initial:
		c.beginConnect()
	case Connecting:
		sel.AddWrite(c.fd.Int())
		sel.LowerTimeoutMs(0)
	case Handshake:
		if c.isServer {
			sel.AddRead(c.fd.Int())
			remaining := time.Until(c.deadline)
			if remaining < 0 {
				remaining = 0
			}
			sel.LowerTimeoutMs(remaining.Milliseconds())
		} else {
			sel.AddWrite(c.fd.Int())
		}
	case Open:
		c.transport.BeginRecv()
		for len(c.outbox) > 0 && c.transport.SendState() == transport.NoPacket {
			if err := c.transport.SendMessage(c.outbox[0]); err != nil {
				break
			}
			c.outbox = c.outbox[1:]
		}
		c.transport.UpdateSelector(sel)
	}
}

func (c *Channel) beginConnect() {
	info, err := rendezvous.Read(c.rendezvousPath)
	if err != nil {
		c.closeWith(fmt.Errorf("threadchannel: reading rendezvous file: %w", err))
		return
	}
	fd, err := rawsock.NewTCP4()
	if err != nil {
		c.closeWith(fmt.Errorf("threadchannel: opening socket: %w", err))
		return
	}
	err = fd.Connect(info.Port)
	if err != nil && !errors.Is(err, rawsock.ErrWouldBlock) {
		fd.Close()
		c.closeWith(fmt.Errorf("%w: %v", ErrConnectFailed, err))
		return
	}
	c.fd = fd
	c.sendSecret = info.Secret
	c.state = Connecting
}

// AfterSelect lets the channel react to what Wait reported. For an Open
// channel it drives transport I/O and returns any messages fully received
// this turn; in every other state it returns nil and advances the
// handshake state machine instead.
func (c *Channel) AfterSelect(sel *selector.Selector) ([]*anp.Message, error) {
	switch c.state {
	case Connecting:
		if !sel.InWrite(c.fd.Int()) {
			return nil, nil
		}
		if err := c.fd.ConnectResult(); err != nil {
			c.closeWith(fmt.Errorf("%w: %v", ErrConnectFailed, err))
			return nil, c.closeErr
		}
		c.state = Handshake
		return nil, nil

	case Handshake:
		return nil, c.advanceHandshake(sel)

	case Open:
		if err := c.transport.DoTransfer(sel); err != nil {
			c.closeWith(err)
			return nil, c.closeErr
		}
		var received []*anp.Message
		for c.transport.RecvState() == transport.Received {
			msg, err := c.transport.TakeReceived()
			if err != nil {
				c.closeWith(err)
				return received, c.closeErr
			}
			received = append(received, msg)
		}
		return received, nil
	}
	return nil, nil
}

func (c *Channel) advanceHandshake(sel *selector.Selector) error {
	if c.isServer {
		if !sel.InRead(c.fd.Int()) {
			if time.Now().After(c.deadline) {
				c.closeWith(ErrHandshakeTimeout)
				return c.closeErr
			}
			return nil
		}
		n, err := c.fd.Read(c.recvBuf[c.recvGot:])
		if err != nil {
			if errors.Is(err, rawsock.ErrWouldBlock) {
				return nil
			}
			c.closeWith(err)
			return c.closeErr
		}
		c.recvGot += n
		if c.recvGot < len(c.recvBuf) {
			return nil
		}
		if subtle.ConstantTimeCompare(c.recvBuf, c.wantSecret) != 1 {
			c.closeWith(ErrHandshakeMismatch)
			return c.closeErr
		}
		c.openTransport()
		return nil
	}

	if !sel.InWrite(c.fd.Int()) {
		return nil
	}
	n, err := c.fd.Write(c.sendSecret[c.sendGot:])
	if err != nil {
		if errors.Is(err, rawsock.ErrWouldBlock) {
			return nil
		}
		c.closeWith(err)
		return c.closeErr
	}
	c.sendGot += n
	if c.sendGot >= len(c.sendSecret) {
		c.openTransport()
	}
	return nil
}

func (c *Channel) openTransport() {
	c.transport = transport.New(c.fd)
	c.state = Open
}
