// Package configwatch watches a project's config file on disk and invokes
// a callback shortly after it changes, the mechanism cmd/devprocd wires up
// to trigger Supervisor.ReloadConfig without requiring an operator to send
// SIGHUP (§9: "Hot reload — replacing the config while the supervisor is
// live").
package configwatch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a single save typically
// produces (write, then chmod, then sometimes a rename-based atomic
// replace) into one callback invocation.
const DefaultDebounce = 250 * time.Millisecond

// Watcher observes one config file and calls onChange (from its own
// goroutine) no more than once per DefaultDebounce window of writes.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	done     chan struct{}
}

// New starts watching path's parent directory (not the file itself — this
// survives editors that replace the file via rename-on-save, which would
// orphan a watch on the inode) and calls onChange after activity on path
// settles for DefaultDebounce.
func New(path string, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, path: filepath.Clean(path), debounce: DefaultDebounce, done: make(chan struct{})}
	go w.run(onChange)
	return w, nil
}

func (w *Watcher) run(onChange func()) {
	defer close(w.done)

	var pending *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				if pending != nil {
					pending.Stop()
				}
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			onChange()
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit. No further
// onChange calls can fire after Close returns.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
