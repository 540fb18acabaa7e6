package audio

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Invalidator drops cached data for an asset.
type Invalidator interface {
	Invalidate(asset string)
}

type watchedAsset struct {
	path    string
	modTime time.Time
}

// Watcher polls asset files and invalidates the channel's cached clip when
// a file changes on disk.
type Watcher struct {
	mu     sync.RWMutex
	logger *slog.Logger
	target Invalidator

	assets       map[string]watchedAsset
	pollInterval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

// NewWatcher creates an asset watcher.
func NewWatcher(target Invalidator, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{
		logger:       logger,
		target:       target,
		assets:       make(map[string]watchedAsset),
		pollInterval: 2 * time.Second,
	}
}

// SetPollInterval sets the polling interval for file changes.
func (w *Watcher) SetPollInterval(interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if interval > 0 {
		w.pollInterval = interval
	}
}

// Watch adds an asset stored at path.
func (w *Watcher) Watch(asset, path string) {
	if asset == "" || path == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wa := watchedAsset{path: path}
	if info, err := os.Stat(path); err == nil {
		wa.modTime = info.ModTime()
	}
	w.assets[asset] = wa
}

// Unwatch removes an asset.
func (w *Watcher) Unwatch(asset string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.assets, asset)
}

// Start begins polling in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := w.pollInterval
	w.mu.Unlock()

	go w.loop(ctx, interval)

	w.logger.Debug("asset watcher started", "interval", interval, "assets", w.Len())
	return nil
}

// Stop stops polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.logger.Debug("asset watcher stopped")
}

func (w *Watcher) loop(ctx context.Context, interval time.Duration) {
	defer close(w.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check compares every watched file against its last seen modification
// time and returns the assets that changed.
func (w *Watcher) Check() []string {
	w.mu.RLock()
	snapshot := make(map[string]watchedAsset, len(w.assets))
	for k, v := range w.assets {
		snapshot[k] = v
	}
	w.mu.RUnlock()

	var changed []string
	for asset, wa := range snapshot {
		info, err := os.Stat(wa.path)
		if err != nil {
			continue
		}
		if !info.ModTime().After(wa.modTime) {
			continue
		}

		w.logger.Info("asset changed on disk", "asset", asset, "path", wa.path)
		w.mu.Lock()
		if cur, ok := w.assets[asset]; ok {
			cur.modTime = info.ModTime()
			w.assets[asset] = cur
		}
		w.mu.Unlock()

		if w.target != nil {
			w.target.Invalidate(asset)
		}
		changed = append(changed, asset)
	}
	return changed
}

// Len returns the number of watched assets.
func (w *Watcher) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.assets)
}

// IsRunning returns whether the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
