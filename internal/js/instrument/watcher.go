package instrument

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches JavaScript sources for changes so they can be
// re-instrumented.
type Watcher struct {
	mu sync.RWMutex

	// fsWatcher is the underlying file watcher.
	fsWatcher *fsnotify.Watcher

	// files is the set of files being watched.
	files map[string]bool

	// Events channel receives change notifications for watched files.
	Events chan WatchEvent

	// Errors channel receives watcher errors.
	Errors chan error

	// done signals the watcher to stop.
	done chan struct{}
}

// WatchEvent represents a change to a watched source file.
type WatchEvent struct {
	// File is the file that changed.
	File string

	// Op is the operation (write, create, remove, etc.).
	Op fsnotify.Op
}

// NewWatcher creates a new source watcher.
func NewWatcher() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		files:     make(map[string]bool),
		Events:    make(chan WatchEvent, 100),
		Errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Add adds a source file to watch.
func (w *Watcher) Add(file string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(file)
	if err != nil {
		return fmt.Errorf("getting absolute path: %w", err)
	}

	if w.files[absPath] {
		return nil
	}

	if err := w.fsWatcher.Add(absPath); err != nil {
		return fmt.Errorf("watching %s: %w", absPath, err)
	}
	w.files[absPath] = true

	return nil
}

// Remove removes a file from watching.
func (w *Watcher) Remove(file string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(file)
	if err != nil {
		return err
	}

	delete(w.files, absPath)

	return w.fsWatcher.Remove(absPath)
}

// WatchedFiles returns the list of files being watched.
func (w *Watcher) WatchedFiles() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var files []string
	for f := range w.files {
		files = append(files, f)
	}
	return files
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// run processes filesystem events.
func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.Errors <- err
		}
	}
}

// handleEvent forwards a change on a watched file.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	absPath, _ := filepath.Abs(event.Name)
	if !w.files[absPath] {
		return
	}

	w.Events <- WatchEvent{
		File: absPath,
		Op:   event.Op,
	}
}
