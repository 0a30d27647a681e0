// Package watcher notifies the UI layer when workspace files change on
// disk outside the assistant's own writes (external editors, shells).
package watcher

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user/scriptforge/internal/workspace"
)

const debounceInterval = 500 * time.Millisecond

// ChangeCallback receives the refreshed workspace listing after a burst of
// file events settles.
type ChangeCallback func(files []string)

// Watcher monitors the flat workspace directory. The workspace never nests,
// so a single non-recursive watch suffices.
type Watcher struct {
	store    *workspace.Store
	callback ChangeCallback

	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
}

// New creates a Watcher over the given workspace store.
func New(store *workspace.Store, callback ChangeCallback) *Watcher {
	return &Watcher{store: store, callback: callback}
}

// Start begins watching the workspace root. The root must exist.
func (w *Watcher) Start() error {
	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsW.Add(w.store.Root()); err != nil {
		fsW.Close()
		return err
	}

	w.mu.Lock()
	w.fsWatcher = fsW
	w.cancel = make(chan struct{})
	w.mu.Unlock()

	go w.watchLoop(fsW, w.cancel)
	slog.Info("watching workspace", "root", w.store.Root())
	return nil
}

// Stop shuts the watcher down. Safe to call when never started.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fsW, cancel := w.fsWatcher, w.cancel
	w.fsWatcher, w.cancel = nil, nil
	w.mu.Unlock()

	if fsW != nil {
		close(cancel)
		fsW.Close()
	}
}

// watchLoop processes fsnotify events with debouncing, so editors that
// write via temp-and-rename produce one notification per save.
func (w *Watcher) watchLoop(fsW *fsnotify.Watcher, cancel chan struct{}) {
	var timer *time.Timer

	for {
		select {
		case <-cancel:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fsW.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			slog.Debug("workspace event", "op", event.Op.String(), "name", event.Name)

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceInterval, w.notify)

		case err, ok := <-fsW.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// relevant filters to mutations of managed files; temp files from atomic
// writes still count because their rename lands on a managed name.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return strings.HasSuffix(event.Name, workspace.Extension) ||
		strings.HasSuffix(event.Name, workspace.Extension+".tmp")
}

func (w *Watcher) notify() {
	if w.callback == nil {
		return
	}
	files := w.store.List()
	slog.Debug("workspace changed", "files", len(files))
	w.callback(files)
}
