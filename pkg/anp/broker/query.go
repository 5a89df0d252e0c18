package broker

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/anpbroker/pkg/anp"
	"github.com/marmos91/anpbroker/pkg/anp/anperr"
)

// OutgoingQuery is a command sent on a channel, awaiting exactly one of: a
// reply, a close-triggered error, or local cancellation. Completion fires
// exactly once.
type OutgoingQuery struct {
	ID      uint64
	Command *anp.Message

	namespace uint32
	sentAt    time.Time

	mu        sync.Mutex
	done      chan struct{}
	reply     *anp.Message
	err       error
	cancelled bool
	completed bool
}

func newOutgoingQuery(id uint64, cmd *anp.Message) *OutgoingQuery {
	return &OutgoingQuery{
		ID:        id,
		Command:   cmd,
		namespace: anp.Namespace(cmd.Type),
		sentAt:    time.Now(),
		done:      make(chan struct{}),
	}
}

// complete finishes the query with a reply or an error. Only the first
// caller has any effect.
func (q *OutgoingQuery) complete(reply *anp.Message, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed {
		return
	}
	q.completed = true
	q.reply = reply
	q.err = err
	close(q.done)
}

// cancelLocally completes the query in the cancelled state, without waiting
// for any peer acknowledgement; it sends nothing itself (Channel.Cancel sends
// the CancelCmd). Per the cancellation contract, no further events fire for
// this query afterward.
func (q *OutgoingQuery) cancelLocally() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.completed {
		return
	}
	q.completed = true
	q.cancelled = true
	q.err = anperr.WithCode(anperr.Cancelled, "query cancelled")
	close(q.done)
}

// Wait blocks until the query completes or ctx is done, returning the reply
// message or the completion error (which is anperr.Cancelled after Cancel,
// or carries the channel's close reason if the channel closed first).
func (q *OutgoingQuery) Wait(ctx context.Context) (*anp.Message, error) {
	select {
	case <-q.done:
		q.mu.Lock()
		defer q.mu.Unlock()
		return q.reply, q.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending reports whether the query has not yet completed.
func (q *OutgoingQuery) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.completed
}

// IncomingQuery is a command received from the peer, awaiting a reply or a
// cancellation (fired at most once if never replied).
type IncomingQuery struct {
	ID      uint64
	Command *anp.Message

	ch *Channel

	mu       sync.Mutex
	replied  bool
	cancelCh chan struct{}
}

func newIncomingQuery(id uint64, cmd *anp.Message, ch *Channel) *IncomingQuery {
	return &IncomingQuery{ID: id, Command: cmd, ch: ch, cancelCh: make(chan struct{})}
}

// Reply stamps this query's id into a response message and forwards it.
// Calling Reply more than once, or after cancellation, is an error.
func (q *IncomingQuery) Reply(namespace uint32, elements ...anp.Element) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.replied {
		return anperr.WithCode(anperr.Generic, "query already replied")
	}
	select {
	case <-q.cancelCh:
		return anperr.WithCode(anperr.Cancelled, "query was cancelled before reply")
	default:
	}
	q.replied = true
	msg := anp.NewResponse(q.ch.major, q.ch.minor, namespace, q.ID, elements...)
	return q.ch.send(msg)
}

// cancel fires the cancellation signal, unless already replied.
func (q *IncomingQuery) cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.replied {
		return
	}
	select {
	case <-q.cancelCh:
	default:
		close(q.cancelCh)
	}
}

// Cancelled returns a channel closed exactly once, when the peer sends a
// CancelCmd for this query or the channel closes before it is replied.
func (q *IncomingQuery) Cancelled() <-chan struct{} { return q.cancelCh }
