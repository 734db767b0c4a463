// internal/watcher/watcher.go
package watcher

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a transcript directory and reports, debounced per file,
// which session files grew or appeared. The Claude CLI appends to session
// JSONL files in bursts, so events for one file are coalesced until the
// file has been quiet for the debounce window.
type Watcher struct {
	dir      string
	debounce time.Duration
	callback func(path string)

	watcher *fsnotify.Watcher
	done    chan struct{}
	started bool
	closed  bool
	mu      sync.Mutex

	timers  map[string]*time.Timer
	timerMu sync.Mutex
}

// New creates a Watcher over dir. callback runs once per quiet session
// file, with the file's path.
func New(dir string, debounce time.Duration, callback func(path string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:      dir,
		debounce: debounce,
		callback: callback,
		watcher:  fsw,
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins delivering events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if w.started {
		return fmt.Errorf("watcher already started")
	}
	w.started = true

	go w.watch()

	return nil
}

// Close stops the watcher and cancels pending debounce timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.started {
		close(w.done)
	}

	w.timerMu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.timers = make(map[string]*time.Timer)
	w.timerMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Watcher] error: %v", err)

		case <-w.done:
			return
		}
	}
}

// handleEvent debounces create/write events for session files; everything
// else is noise for a reader that re-scans on poll anyway.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if filepath.Ext(event.Name) != ".jsonl" {
		return
	}

	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if timer, exists := w.timers[event.Name]; exists {
		timer.Stop()
	}

	path := event.Name
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.timerMu.Lock()
		delete(w.timers, path)
		w.timerMu.Unlock()

		w.callback(path)
	})
}
