// Package transport drives one non-blocking socket's partial I/O as an
// explicit state machine, so a single worker turn can make progress on many
// connections without blocking on any one of them. It sits directly on top
// of rawsock and anp: rawsock supplies the non-blocking read/write primitive
// (would-block vs. connection-lost vs. fatal), anp supplies the wire codec.
package transport

import (
	"errors"
	"fmt"

	"github.com/marmos91/anpbroker/internal/anp/rawsock"
	"github.com/marmos91/anpbroker/internal/anp/selector"
	"github.com/marmos91/anpbroker/pkg/anp"
)

// RecvState is the receive-side state of a Transport.
type RecvState int

const (
	NoMsg RecvState = iota
	RecvHdr
	RecvPayload
	Received
)

func (s RecvState) String() string {
	switch s {
	case NoMsg:
		return "NoMsg"
	case RecvHdr:
		return "RecvHdr"
	case RecvPayload:
		return "RecvPayload"
	case Received:
		return "Received"
	default:
		return fmt.Sprintf("RecvState(%d)", int(s))
	}
}

// SendState is the send-side state of a Transport.
type SendState int

const (
	NoPacket SendState = iota
	Sending
)

func (s SendState) String() string {
	if s == Sending {
		return "Sending"
	}
	return "NoPacket"
}

// ErrLost reports that the peer closed the connection during a transfer
// (rawsock.ErrConnLost). It is terminal: the owning channel must close.
var ErrLost = errors.New("transport: connection lost")

// ErrAlreadySending is returned by SendMessage when a send is already in
// flight; a Transport holds at most one outbound message at a time.
var ErrAlreadySending = errors.New("transport: a message is already being sent")

// ErrNotReceived is returned by TakeReceived when no full message is buffered.
var ErrNotReceived = errors.New("transport: no message received")

// Transport owns one socket's partial-read/partial-write bookkeeping.
type Transport struct {
	fd rawsock.FD

	recvState RecvState
	hdrBuf    [anp.HeaderSize]byte
	hdrGot    int
	hdr       anp.Header
	payload   []byte
	payGot    int

	sendState SendState
	sendBuf   []byte
	sendSent  int
}

// New wraps fd in a Transport, ready to begin receiving.
func New(fd rawsock.FD) *Transport {
	t := &Transport{fd: fd}
	t.BeginRecv()
	return t
}

// FD returns the underlying descriptor, e.g. for logging.
func (t *Transport) FD() rawsock.FD { return t.fd }

// BeginRecv arms the transport to receive the next message. It is a no-op
// while a message is already mid-flight. TakeReceived calls it itself, so
// the next message is armed as soon as the previous one is taken.
func (t *Transport) BeginRecv() {
	if t.recvState != NoMsg && t.recvState != Received {
		return
	}
	t.recvState = RecvHdr
	t.hdrGot = 0
	t.payload = nil
	t.payGot = 0
}

// SendMessage serializes m and arms the transport to send it. It fails with
// ErrAlreadySending if a previous message has not finished sending.
func (t *Transport) SendMessage(m *anp.Message) error {
	if t.sendState == Sending {
		return ErrAlreadySending
	}
	t.sendBuf = anp.Encode(m, true)
	t.sendSent = 0
	t.sendState = Sending
	return nil
}

// TakeReceived returns the most recently completed message and rearms the
// transport to receive the next one. It fails with ErrNotReceived if the
// receive state machine has not reached Received.
func (t *Transport) TakeReceived() (*anp.Message, error) {
	if t.recvState != Received {
		return nil, ErrNotReceived
	}
	elems, err := anp.ParsePayload(t.payload)
	if err != nil {
		return nil, err
	}
	m := &anp.Message{Header: t.hdr, Elements: elems}
	t.recvState = NoMsg
	t.BeginRecv()
	return m, nil
}

// RecvState reports the current receive-side state.
func (t *Transport) RecvState() RecvState { return t.recvState }

// SendState reports the current send-side state.
func (t *Transport) SendState() SendState { return t.sendState }

// UpdateSelector registers this transport's descriptor with sel for the
// directions it currently needs: read whenever a message isn't fully
// buffered yet, write whenever a send is in flight.
func (t *Transport) UpdateSelector(sel *selector.Selector) {
	if t.recvState == RecvHdr || t.recvState == RecvPayload {
		sel.AddRead(t.fd.Int())
	}
	if t.sendState == Sending {
		sel.AddWrite(t.fd.Int())
	}
}

// DoTransfer advances the receive and send state machines by one step each,
// driven by what sel reported ready after Wait. It performs at most one
// partial read and one partial write; callers loop DoTransfer across worker
// turns until RecvState reaches Received / SendState returns to NoPacket.
// ErrLost is returned (and is terminal) if the peer closed the connection.
// A header claiming more than anp.MaxPayloadSize and any other socket error
// are returned as they are.
func (t *Transport) DoTransfer(sel *selector.Selector) error {
	if (t.recvState == RecvHdr || t.recvState == RecvPayload) && sel.InRead(t.fd.Int()) {
		if err := t.doRecv(); err != nil {
			return err
		}
	}
	if t.sendState == Sending && sel.InWrite(t.fd.Int()) {
		if err := t.doSend(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) doRecv() error {
	switch t.recvState {
	case RecvHdr:
		n, err := t.fd.Read(t.hdrBuf[t.hdrGot:])
		if err := translateErr(err); err != nil {
			return err
		}
		t.hdrGot += n
		if t.hdrGot < anp.HeaderSize {
			return nil
		}
		hdr, err := anp.ParseHeader(t.hdrBuf[:])
		if err != nil {
			return err
		}
		if hdr.PayloadSize > anp.MaxPayloadSize {
			return fmt.Errorf("transport: payload_size %d exceeds cap of %d bytes", hdr.PayloadSize, anp.MaxPayloadSize)
		}
		t.hdr = hdr
		if hdr.PayloadSize == 0 {
			t.recvState = Received
			t.payload = nil
			return nil
		}
		t.payload = make([]byte, hdr.PayloadSize)
		t.payGot = 0
		t.recvState = RecvPayload
		return nil
	case RecvPayload:
		n, err := t.fd.Read(t.payload[t.payGot:])
		if err := translateErr(err); err != nil {
			return err
		}
		t.payGot += n
		if t.payGot >= len(t.payload) {
			t.recvState = Received
		}
		return nil
	default:
		return nil
	}
}

func (t *Transport) doSend() error {
	n, err := t.fd.Write(t.sendBuf[t.sendSent:])
	if err := translateErr(err); err != nil {
		return err
	}
	t.sendSent += n
	if t.sendSent >= len(t.sendBuf) {
		t.sendState = NoPacket
		t.sendBuf = nil
		t.sendSent = 0
	}
	return nil
}

// translateErr maps a rawsock error into the transport's own vocabulary: a
// would-block condition is not an error at this layer (it just means zero
// progress this turn), and connection loss becomes ErrLost.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rawsock.ErrWouldBlock):
		return nil
	case errors.Is(err, rawsock.ErrConnLost):
		return ErrLost
	default:
		return err
	}
}
