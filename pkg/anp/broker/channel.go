package broker

import (
	"sync"
	"time"

	"github.com/marmos91/anpbroker/pkg/anp"
	"github.com/marmos91/anpbroker/pkg/anp/anperr"
	anpmetrics "github.com/marmos91/anpbroker/pkg/anp/metrics"
)

// Channel is the broker-side view of one open connection: the user-facing
// object that sends commands and events, and receives queries and events
// from the peer. The worker thread owns the underlying socket; Channel only
// ever talks to it through the broker's mailbox.
type Channel struct {
	ID uint64

	broker     *Broker
	major      uint32
	minor      uint32
	namespace  uint32 // reserved; 0 means "caller picks per call" — unused placeholder for future fixed-namespace channels
	cancelNS   uint32
	metrics    anpmetrics.BrokerMetrics

	mu        sync.Mutex
	open      bool
	closeErr  error
	outgoing  map[uint64]*OutgoingQuery
	incoming  map[uint64]*IncomingQuery
	nextCmdID uint64
}

func newChannel(id uint64, b *Broker) *Channel {
	return &Channel{
		ID:        id,
		broker:    b,
		major:     b.major,
		minor:     b.minor,
		cancelNS:  anp.NamespaceCancelCmd,
		metrics:   b.metrics,
		open:      true,
		outgoing:  make(map[uint64]*OutgoingQuery),
		incoming:  make(map[uint64]*IncomingQuery),
		nextCmdID: 1,
	}
}

// Open reports whether the channel has not yet been closed.
func (c *Channel) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// CloseErr returns the reason the channel closed, or nil if still open.
func (c *Channel) CloseErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// PendingOutgoing reports the number of sent commands still awaiting a
// reply or cancellation.
func (c *Channel) PendingOutgoing() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outgoing)
}

// PendingIncoming reports the number of received commands not yet replied
// to or cancelled.
func (c *Channel) PendingIncoming() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.incoming)
}

func (c *Channel) send(msg *anp.Message) error {
	c.mu.Lock()
	open := c.open
	c.mu.Unlock()
	if !open {
		return anperr.ConnLost("channel is closed")
	}
	c.metrics.RecordBytesTransferred("sent", uint64(msg.PayloadSizeComputed()))
	c.broker.enqueue(c.ID, msg)
	return nil
}

// SendCommand assigns the next monotonic command id, records an
// OutgoingQuery awaiting the reply, and forwards the message. It returns
// immediately; use OutgoingQuery.Wait for the reply.
func (c *Channel) SendCommand(namespace uint32, elements ...anp.Element) (*OutgoingQuery, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, anperr.ConnLost("channel is closed")
	}
	id := c.nextCmdID
	c.nextCmdID++
	msg := anp.NewCommand(c.major, c.minor, namespace, id, elements...)
	q := newOutgoingQuery(id, msg)
	c.outgoing[id] = q
	c.mu.Unlock()

	c.metrics.RecordBytesTransferred("sent", uint64(msg.PayloadSizeComputed()))
	c.broker.enqueue(c.ID, msg)
	return q, nil
}

// SendEvent sends a transient, uncorrelated event (id 0).
func (c *Channel) SendEvent(namespace uint32, elements ...anp.Element) error {
	msg := anp.NewEvent(c.major, c.minor, namespace, 0, elements...)
	return c.send(msg)
}

// Cancel sends a CancelCmd bearing q's id and completes q locally in the
// cancelled state. The peer's corresponding IncomingQuery, if still pending,
// observes cancellation via its Cancelled channel.
func (c *Channel) Cancel(q *OutgoingQuery) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		q.cancelLocally()
		return
	}
	delete(c.outgoing, q.ID)
	c.mu.Unlock()

	cancelMsg := anp.NewCommand(c.major, c.minor, c.cancelNS, q.ID)
	c.broker.enqueue(c.ID, cancelMsg)
	q.cancelLocally()
	c.metrics.RecordQuery(q.namespace, time.Since(q.sentAt), true, 0)
}

// Close closes the channel from the application side, completing every
// pending outgoing query with an anperr.Cancelled error and cancelling
// every pending incoming query.
func (c *Channel) Close() {
	c.broker.closeChannel(c.ID, anperr.WithCode(anperr.Cancelled, "closed by application"))
}

// dispatch applies the role-based routing rules from the wire protocol to
// one received message.
func (c *Channel) dispatch(msg *anp.Message, onIncomingQuery func(*IncomingQuery), onIncomingEvent func(*anp.Message)) {
	role := anp.Role(msg.Type)
	ns := anp.Namespace(msg.Type)

	switch role {
	case anp.RoleCommand:
		if ns == c.cancelNS {
			c.mu.Lock()
			iq, ok := c.incoming[msg.ID]
			c.mu.Unlock()
			if ok {
				iq.cancel()
			}
			return
		}
		iq := newIncomingQuery(msg.ID, msg, c)
		c.mu.Lock()
		c.incoming[msg.ID] = iq
		c.mu.Unlock()
		if onIncomingQuery != nil {
			onIncomingQuery(iq)
		}

	case anp.RoleResponse:
		c.mu.Lock()
		q, ok := c.outgoing[msg.ID]
		if ok {
			delete(c.outgoing, msg.ID)
		}
		c.mu.Unlock()
		if ok && q.Pending() {
			q.complete(msg, nil)
			c.metrics.RecordQuery(q.namespace, time.Since(q.sentAt), false, 0)
		}

	case anp.RoleEvent:
		c.metrics.RecordEvent(ns)
		if onIncomingEvent != nil {
			onIncomingEvent(msg)
		}
	}
}

// markClosed finalizes the channel: completes pending outgoing queries with
// err, cancels pending incoming queries, and flips open to false. Returns
// false if the channel was already closed (so callers fire on-close events
// exactly once).
func (c *Channel) markClosed(err error) bool {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return false
	}
	c.open = false
	c.closeErr = err
	outgoing := c.outgoing
	incoming := c.incoming
	c.outgoing = nil
	c.incoming = nil
	c.mu.Unlock()

	for _, q := range outgoing {
		q.complete(nil, err)
		c.metrics.RecordQuery(q.namespace, time.Since(q.sentAt), false, 1)
	}
	for _, q := range incoming {
		q.cancel()
	}
	return true
}
