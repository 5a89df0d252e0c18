package worker

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Mailbox is a thread-safe FIFO of callables posted from the owner thread
// to the worker thread. Posting also writes one byte to a self-pipe so the
// worker's select wakes up promptly instead of waiting out its timeout.
type Mailbox struct {
	mu    sync.Mutex
	queue []Task

	rd *os.File
	wr *os.File
}

// NewMailbox creates an empty mailbox with its wake-up pipe armed
// non-blocking on both ends.
func NewMailbox() (*Mailbox, error) {
	rd, wr, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(int(rd.Fd()), true); err != nil {
		rd.Close()
		wr.Close()
		return nil, err
	}
	if err := unix.SetNonblock(int(wr.Fd()), true); err != nil {
		rd.Close()
		wr.Close()
		return nil, err
	}
	return &Mailbox{rd: rd, wr: wr}, nil
}

// WakeFD is the read end of the self-pipe, registered with the selector for
// read-readiness.
func (m *Mailbox) WakeFD() int { return int(m.rd.Fd()) }

// Post enqueues fn for the worker to run on its next turn and wakes it.
func (m *Mailbox) Post(fn Task) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	// Best-effort: a full pipe buffer means a wake byte is already pending.
	unix.Write(int(m.wr.Fd()), []byte{0})
}

// Drain atomically removes and returns every queued callable.
func (m *Mailbox) Drain() []Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

// DrainWake discards queued wake-up bytes, looping until the pipe would
// block. Non-blocking and best-effort, per the self-pipe contract.
func (m *Mailbox) DrainWake() {
	var buf [256]byte
	for {
		n, err := unix.Read(int(m.rd.Fd()), buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close releases the pipe.
func (m *Mailbox) Close() error {
	werr := m.wr.Close()
	rerr := m.rd.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
