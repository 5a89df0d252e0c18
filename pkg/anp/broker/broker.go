// Package broker is the owner-thread façade: it starts a worker on its own
// goroutine, maintains the set of open channels, and demultiplexes received
// messages into query completions, incoming queries, and events. Everything
// here runs on the calling goroutine or the UiDispatcher's goroutine — never
// on the worker's.
package broker

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/anpbroker/internal/anp/worker"
	"github.com/marmos91/anpbroker/pkg/anp"
	"github.com/marmos91/anpbroker/pkg/anp/anperr"
	anpmetrics "github.com/marmos91/anpbroker/pkg/anp/metrics"
)

// Events are the application's hooks into broker lifecycle and traffic.
// Any nil hook is simply not called.
type Events struct {
	OnChannelOpen   func(*Channel)
	OnChannelClose  func(*Channel, error)
	OnIncomingQuery func(*Channel, *IncomingQuery)
	OnIncomingEvent func(*Channel, *anp.Message)
	OnWorkerExit    func(error)

	// ErrorSink receives panics/errors raised by the above hooks, per the
	// propagation policy that a misbehaving handler must not affect other
	// channels or the worker.
	ErrorSink func(error)
}

// ServerConfig configures a server-role broker.
type ServerConfig struct {
	RendezvousPath   string
	HandshakeTimeout time.Duration
	Major, Minor     uint32
	Logger           *slog.Logger

	// Metrics receives channel and query instrumentation. A nil value
	// (the zero value of the interface) disables metrics with no overhead.
	Metrics anpmetrics.BrokerMetrics
}

// ClientConfig configures a client-role broker.
type ClientConfig struct {
	RendezvousPath string
	Major, Minor   uint32
	Logger         *slog.Logger

	// Metrics receives channel and query instrumentation. A nil value
	// (the zero value of the interface) disables metrics with no overhead.
	Metrics anpmetrics.BrokerMetrics
}

// Broker is the public, owner-thread API. Construct with NewServerBroker or
// NewClientBroker, then call Start.
type Broker struct {
	mu         sync.Mutex
	started    bool
	isServer   bool
	serverCfg  ServerConfig
	clientCfg  ClientConfig
	w          *worker.Worker
	dispatcher worker.UiDispatcher
	events     Events
	major      uint32
	minor      uint32

	channels map[uint64]*Channel
	exited   atomic.Bool
	metrics  anpmetrics.BrokerMetrics
}

// role returns "server" or "client", for metric labels.
func (b *Broker) role() string {
	if b.isServer {
		return "server"
	}
	return "client"
}

// NewServerBroker builds a broker that will, on Start, bind a loopback port,
// write the rendezvous file, and accept connections.
func NewServerBroker(cfg ServerConfig, events Events) *Broker {
	return &Broker{
		isServer:  true,
		serverCfg: cfg,
		events:    events,
		major:     cfg.Major,
		minor:     cfg.Minor,
		channels:  make(map[uint64]*Channel),
		metrics:   metricsOrNoop(cfg.Metrics),
	}
}

// NewClientBroker builds a broker that will, on Start, begin attempting to
// connect against cfg.RendezvousPath once RequestConnect is called.
func NewClientBroker(cfg ClientConfig, events Events) *Broker {
	return &Broker{
		isServer:  false,
		clientCfg: cfg,
		events:    events,
		major:     cfg.Major,
		minor:     cfg.Minor,
		channels:  make(map[uint64]*Channel),
		metrics:   metricsOrNoop(cfg.Metrics),
	}
}

// metricsOrNoop substitutes a discarding implementation for a nil interface
// so the rest of the package can record unconditionally.
func metricsOrNoop(m anpmetrics.BrokerMetrics) anpmetrics.BrokerMetrics {
	if m == nil {
		return anpmetrics.Noop{}
	}
	return m
}

// Start constructs and starts the worker. Calling Start twice is a no-op.
func (b *Broker) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}

	b.dispatcher = worker.NewSerialDispatcher()
	cb := worker.Callbacks{
		ChannelOpened:    b.onChannelOpened,
		ChannelClosed:    b.onChannelClosed,
		MessagesReceived: b.onMessagesReceived,
		Exited:           b.onWorkerExited,
	}

	var w *worker.Worker
	var err error
	if b.isServer {
		logger := b.serverCfg.Logger
		w, err = worker.NewServerWorker(b.serverCfg.RendezvousPath, b.serverCfg.HandshakeTimeout, b.dispatcher, cb, logger)
	} else {
		logger := b.clientCfg.Logger
		w, err = worker.NewClientWorker(b.clientCfg.RendezvousPath, b.dispatcher, cb, logger)
	}
	if err != nil {
		return err
	}

	b.w = w
	b.started = true
	go w.Run()
	return nil
}

// RequestConnect asks a client broker's worker to attempt a new channel on
// its next turn, if it does not already own one. No-op for a server broker
// or before Start.
func (b *Broker) RequestConnect() {
	b.mu.Lock()
	w := b.w
	b.mu.Unlock()
	if w != nil {
		w.RequestConnect()
	}
}

// TryStop requests the worker to stop, synthesizes an Interrupted close on
// every currently open channel, and reports whether the worker has already
// exited. If it returns false, the caller should wait for OnWorkerExit and
// call TryStop again (or simply rely on OnWorkerExit alone).
func (b *Broker) TryStop() bool {
	b.mu.Lock()
	w := b.w
	chans := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	if w != nil {
		w.Cancel()
	}
	for _, ch := range chans {
		b.closeChannel(ch.ID, anperr.WithCode(anperr.Interrupted, "broker shutting down"))
	}
	return b.exited.Load()
}

// Channels returns a snapshot of the currently open channels.
func (b *Broker) Channels() []*Channel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		out = append(out, ch)
	}
	return out
}

// Channel looks up an open channel by id.
func (b *Broker) Channel(id uint64) (*Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[id]
	return ch, ok
}

func (b *Broker) enqueue(id uint64, msg *anp.Message) {
	b.mu.Lock()
	w := b.w
	b.mu.Unlock()
	if w == nil {
		return
	}
	w.Mailbox().Post(func(wk *worker.Worker) { wk.Enqueue(id, msg) })
}

func (b *Broker) closeChannel(id uint64, err error) {
	b.mu.Lock()
	ch, ok := b.channels[id]
	if ok {
		delete(b.channels, id)
	}
	w := b.w
	b.mu.Unlock()
	if !ok {
		return
	}
	if w != nil {
		w.Mailbox().Post(func(wk *worker.Worker) { wk.CloseChannel(id) })
	}
	if ch.markClosed(err) {
		b.metrics.RecordChannelClosed(b.role(), closeReason(err))
		b.metrics.SetActiveChannels(len(b.channels))
		b.safeCall(func() {
			if b.events.OnChannelClose != nil {
				b.events.OnChannelClose(ch, err)
			}
		})
	}
}

func (b *Broker) onChannelOpened(id uint64) {
	ch := newChannel(id, b)
	b.mu.Lock()
	b.channels[id] = ch
	count := len(b.channels)
	b.mu.Unlock()

	b.metrics.RecordChannelOpened(b.role())
	b.metrics.SetActiveChannels(count)

	b.safeCall(func() {
		if b.events.OnChannelOpen != nil {
			b.events.OnChannelOpen(ch)
		}
	})
}

func (b *Broker) onChannelClosed(id uint64, err error) {
	b.mu.Lock()
	ch, ok := b.channels[id]
	if ok {
		delete(b.channels, id)
	}
	count := len(b.channels)
	b.mu.Unlock()
	if !ok {
		return
	}
	if ch.markClosed(anperr.ConnLost(closeReason(err))) {
		b.metrics.RecordChannelClosed(b.role(), closeReason(err))
		b.metrics.SetActiveChannels(count)
		b.safeCall(func() {
			if b.events.OnChannelClose != nil {
				b.events.OnChannelClose(ch, ch.CloseErr())
			}
		})
	}
}

func closeReason(err error) string {
	if err == nil {
		return "connection lost"
	}
	return err.Error()
}

func (b *Broker) onMessagesReceived(id uint64, msgs []*anp.Message) {
	b.mu.Lock()
	ch, ok := b.channels[id]
	b.mu.Unlock()
	if !ok {
		return
	}
	for _, msg := range msgs {
		m := msg
		b.metrics.RecordBytesTransferred("received", uint64(m.PayloadSizeComputed()))
		b.safeCall(func() {
			ch.dispatch(m,
				func(iq *IncomingQuery) {
					if b.events.OnIncomingQuery != nil {
						b.events.OnIncomingQuery(ch, iq)
					}
				},
				func(evt *anp.Message) {
					if b.events.OnIncomingEvent != nil {
						b.events.OnIncomingEvent(ch, evt)
					}
				},
			)
		})
	}
}

func (b *Broker) onWorkerExited(err error) {
	b.exited.Store(true)
	b.safeCall(func() {
		if b.events.OnWorkerExit != nil {
			b.events.OnWorkerExit(err)
		}
	})
}

// safeCall runs fn, routing a panic to the pluggable error sink instead of
// crashing the dispatcher goroutine — a misbehaving handler must not take
// down unrelated channels.
func (b *Broker) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.events.ErrorSink != nil {
				b.events.ErrorSink(anperr.Newf("event handler panicked: %v", r))
			}
		}
	}()
	fn()
}
