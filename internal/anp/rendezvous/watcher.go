package rendezvous

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher notifies on creation of a rendezvous file's trigger sibling, so a
// client can wait for a server to become ready (or to reappear after a
// restart) instead of polling.
type Watcher struct {
	fsw     *fsnotify.Watcher
	trigger string
	ready   chan struct{}
	errs    chan error
}

// NewWatcher watches the directory containing path for its trigger file.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:     fsw,
		trigger: path + TriggerSuffix,
		ready:   make(chan struct{}, 1),
		errs:    make(chan error, 1),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Name != w.trigger {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			select {
			case w.ready <- struct{}{}:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// Ready fires once per observed trigger-file creation. The trigger file is
// created and deleted in quick succession by the writer, so this channel is
// the only reliable signal — by the time a reader could stat the path it may
// already be gone.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Errors surfaces watch failures (e.g. the directory was removed).
func (w *Watcher) Errors() <-chan error { return w.errs }

// Close stops the watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }
