// Package worker implements the single-threaded select/dispatch loop that
// owns every socket, transport, and ThreadChannel for one broker. It talks
// to the broker only through the Mailbox (owner -> worker) and the
// UiDispatcher (worker -> owner); there is no other shared mutable state
// besides the cancellation flag.
package worker

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/marmos91/anpbroker/internal/anp/rawsock"
	"github.com/marmos91/anpbroker/internal/anp/rendezvous"
	"github.com/marmos91/anpbroker/internal/anp/selector"
	"github.com/marmos91/anpbroker/internal/anp/threadchannel"
	"github.com/marmos91/anpbroker/pkg/anp"
)

// ErrInterrupted is the close reason synthesized on every open channel when
// the owner calls TryStop.
var ErrInterrupted = errors.New("worker: interrupted by broker shutdown")

// Callbacks are the worker->broker notifications, always submitted through
// a UiDispatcher so they run on the owner's thread.
type Callbacks struct {
	ChannelOpened    func(id uint64)
	ChannelClosed    func(id uint64, err error)
	MessagesReceived func(id uint64, msgs []*anp.Message)
	Exited           func(err error)
}

// Task is a callable posted from the owner thread through the Mailbox.
type Task func(*Worker)

// Worker is the event loop. Construct with NewServerWorker or
// NewClientWorker; start it with Run on its own goroutine.
type Worker struct {
	mailbox    *Mailbox
	dispatcher UiDispatcher
	callbacks  Callbacks
	logger     *slog.Logger

	cancel atomic.Bool

	pending []*threadchannel.Channel
	open    map[uint64]*threadchannel.Channel
	nextID  uint64

	// server-only
	isServer         bool
	listener         rawsock.FD
	serverSecret     []byte
	handshakeTimeout time.Duration
	rendezvousHandle *rendezvous.Handle
	rendezvousPath   string

	// client-only
	clientRendezvousPath string
	requestConnect       atomic.Bool
}

// Cancel requests the worker to stop at the start of its next turn.
func (w *Worker) Cancel() { w.cancel.Store(true) }

// Mailbox exposes the owner-facing post queue.
func (w *Worker) Mailbox() *Mailbox { return w.mailbox }

// RequestConnect arms a client worker to attempt a new channel on its next
// turn, if it does not already own one. No-op on a server worker.
func (w *Worker) RequestConnect() {
	if !w.isServer {
		w.requestConnect.Store(true)
	}
}

// Enqueue posts msg to the channel identified by id, if still open.
func (w *Worker) Enqueue(id uint64, msg *anp.Message) {
	if ch, ok := w.open[id]; ok {
		ch.Enqueue(msg)
	}
}

// CloseChannel closes the channel identified by id from the worker side.
func (w *Worker) CloseChannel(id uint64) {
	if ch, ok := w.open[id]; ok {
		ch.Close()
	}
}

func newCore(mailbox *Mailbox, dispatcher UiDispatcher, cb Callbacks, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		mailbox:    mailbox,
		dispatcher: dispatcher,
		callbacks:  cb,
		logger:     logger,
		open:       make(map[uint64]*threadchannel.Channel),
		nextID:     1,
		listener:   -1,
	}
}

// NewServerWorker builds a worker that listens on loopback, writes the
// rendezvous file, and accepts at most one new connection per turn.
func NewServerWorker(rendezvousPath string, handshakeTimeout time.Duration, dispatcher UiDispatcher, cb Callbacks, logger *slog.Logger) (*Worker, error) {
	w := newCore(nil, dispatcher, cb, logger)
	mailbox, err := NewMailbox()
	if err != nil {
		return nil, err
	}
	w.mailbox = mailbox
	w.isServer = true
	w.handshakeTimeout = handshakeTimeout
	w.rendezvousPath = rendezvousPath

	ln, port, err := rawsock.Listen(0, 1)
	if err != nil {
		mailbox.Close()
		return nil, err
	}
	secret, err := rendezvous.NewSecret()
	if err != nil {
		ln.Close()
		mailbox.Close()
		return nil, err
	}
	handle, err := rendezvous.Write(rendezvousPath, rendezvous.Info{Port: port, Secret: secret})
	if err != nil {
		ln.Close()
		mailbox.Close()
		return nil, err
	}
	if err := rendezvous.Trigger(rendezvousPath); err != nil {
		logger.Warn("rendezvous trigger failed", "error", err)
	}

	w.listener = ln
	w.serverSecret = secret
	w.rendezvousHandle = handle
	return w, nil
}

// NewClientWorker builds a worker that owns at most one channel, connecting
// against rendezvousPath whenever RequestConnect is called.
func NewClientWorker(rendezvousPath string, dispatcher UiDispatcher, cb Callbacks, logger *slog.Logger) (*Worker, error) {
	w := newCore(nil, dispatcher, cb, logger)
	mailbox, err := NewMailbox()
	if err != nil {
		return nil, err
	}
	w.mailbox = mailbox
	w.clientRendezvousPath = rendezvousPath
	return w, nil
}

// Run executes the select/dispatch loop until Cancel is called or a fatal
// error occurs, then cleans up and reports via Callbacks.Exited. It is
// meant to be called on its own goroutine — the "worker thread".
func (w *Worker) Run() {
	var fatal error
	for {
		stop, err := w.turn()
		if stop {
			fatal = err
			break
		}
	}
	w.cleanup(fatal)
}

// turn runs one select/dispatch cycle. It reports whether the loop should
// stop, and the fatal error that caused it to stop (nil for a clean
// cancellation).
func (w *Worker) turn() (bool, error) {
	sel := selector.New()
	sel.AddRead(w.mailbox.WakeFD())

	for _, ch := range w.pending {
		ch.BeforeSelect(sel)
	}
	for _, ch := range w.open {
		ch.BeforeSelect(sel)
	}
	if w.isServer && w.listener >= 0 {
		sel.AddRead(w.listener.Int())
	}

	if err := sel.Wait(); err != nil {
		w.logger.Error("selector wait failed", "error", err)
		return true, err
	}

	w.mailbox.DrainWake()

	if w.cancel.Load() {
		return true, nil
	}

	for _, task := range w.mailbox.Drain() {
		task(w)
	}

	w.stepPending(sel)
	w.stepOpen(sel)

	if w.isServer {
		w.acceptOne(sel)
	} else {
		w.maybeConnect()
	}

	return false, nil
}

func (w *Worker) stepPending(sel *selector.Selector) {
	still := w.pending[:0]
	for _, ch := range w.pending {
		if _, err := ch.AfterSelect(sel); err != nil {
			w.logger.Warn("channel failed before open", "error", err)
			continue
		}
		if ch.State() == threadchannel.Open {
			id := w.nextID
			w.nextID++
			ch.ID = id
			w.open[id] = ch
			w.dispatcher.Submit(func() { w.callbacks.ChannelOpened(id) })
			continue
		}
		still = append(still, ch)
	}
	w.pending = still
}

func (w *Worker) stepOpen(sel *selector.Selector) {
	for id, ch := range w.open {
		msgs, err := ch.AfterSelect(sel)
		if len(msgs) > 0 {
			w.dispatcher.Submit(func() { w.callbacks.MessagesReceived(id, msgs) })
		}
		if err != nil {
			delete(w.open, id)
			w.dispatcher.Submit(func() { w.callbacks.ChannelClosed(id, err) })
		}
	}
}

func (w *Worker) acceptOne(sel *selector.Selector) {
	if !sel.InRead(w.listener.Int()) {
		return
	}
	fd, err := w.listener.Accept()
	if err != nil {
		if !errors.Is(err, rawsock.ErrWouldBlock) {
			w.logger.Warn("accept failed", "error", err)
		}
		return
	}
	w.pending = append(w.pending, threadchannel.NewServer(fd, w.serverSecret, w.handshakeTimeout))
}

func (w *Worker) maybeConnect() {
	if len(w.pending) > 0 || len(w.open) > 0 {
		return
	}
	if !w.requestConnect.CompareAndSwap(true, false) {
		return
	}
	w.pending = append(w.pending, threadchannel.NewClient(w.clientRendezvousPath))
}

func (w *Worker) cleanup(fatal error) {
	for _, ch := range w.pending {
		ch.Close()
	}
	for _, ch := range w.open {
		ch.Close()
	}
	w.pending = nil
	w.open = nil

	if w.isServer {
		if w.listener >= 0 {
			w.listener.Close()
		}
		if w.rendezvousHandle != nil {
			if err := w.rendezvousHandle.Close(); err != nil {
				w.logger.Warn("removing rendezvous file", "error", err)
			}
		}
	}

	w.mailbox.Close()
	w.dispatcher.Submit(func() { w.callbacks.Exited(fatal) })
}
