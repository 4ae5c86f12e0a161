package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"intentd/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file for changes and reloads it on write.
// Registered callbacks receive the freshly parsed config; the logging
// runtime config is reloaded as well so log-level changes take effect
// without a restart.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	path        string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	onReload    []func(*Config)
}

// NewWatcher creates a Watcher for the given config file path.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:     fw,
		path:        path,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	return w, nil
}

// OnReload registers a callback invoked with the new config after each
// successful reload. Callbacks must be registered before Start.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	w.onReload = append(w.onReload, fn)
	w.mu.Unlock()
}

// Start begins watching the config file's directory for changes.
// This method is non-blocking; it starts the watcher in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil // Already running
	}
	w.running = true
	w.mu.Unlock()

	// Watch the containing directory: editors often replace the file
	// on save, which drops a watch registered on the file itself.
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		logging.Get(logging.CategoryConfig).Warn("ConfigWatcher: initial watch failed (dir may not exist): %v", err)
	} else {
		logging.Config("ConfigWatcher: watching %s", w.path)
	}

	go w.run(ctx)

	return nil
}

// Stop stops the watcher and waits for cleanup.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("ConfigWatcher: error closing watcher: %v", err)
	}
	logging.Config("ConfigWatcher: stopped")
}

// run is the main event loop for the watcher.
func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	debounceTicker := time.NewTicker(100 * time.Millisecond)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Config("ConfigWatcher: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("ConfigWatcher error: %v", err)

		case <-debounceTicker.C:
			w.processDebounced()
		}
	}
}

// handleEvent records a filesystem event for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Only the config file itself matters; the directory watch sees
	// everything in it.
	if !strings.EqualFold(filepath.Clean(event.Name), filepath.Clean(w.path)) {
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return // Ignore chmod, remove, etc.
	}

	logging.ConfigDebug("ConfigWatcher: change event for %s", event.Name)

	w.mu.Lock()
	w.debounceMap[event.Name] = time.Now()
	w.mu.Unlock()
}

// processDebounced reloads the config once events have settled.
func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	ready := false
	for name, t := range w.debounceMap {
		if now.Sub(t) >= w.debounceDur {
			delete(w.debounceMap, name)
			ready = true
		}
	}
	callbacks := w.onReload
	w.mu.Unlock()

	if !ready {
		return
	}

	cfg, err := Load(w.path)
	if err != nil {
		logging.Get(logging.CategoryConfig).Error("ConfigWatcher: reload failed: %v", err)
		return
	}

	if err := logging.ReloadConfig(); err != nil {
		logging.Get(logging.CategoryConfig).Warn("ConfigWatcher: log config reload failed: %v", err)
	}

	logging.Config("ConfigWatcher: reloaded %s", w.path)
	for _, fn := range callbacks {
		fn(cfg)
	}
}
