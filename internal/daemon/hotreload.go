package daemon

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/store"
)

// filePoller polls a file's modification time and calls onChange when it
// moves forward.
type filePoller struct {
	mu     sync.RWMutex
	logger *slog.Logger
	name   string
	path   string

	lastModTime  time.Time
	pollInterval time.Duration
	onChange     func()

	stopCh chan struct{}
	doneCh chan struct{}

	running bool
}

func newFilePoller(name, path string, interval time.Duration, logger *slog.Logger) *filePoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &filePoller{
		logger:       logger,
		name:         name,
		path:         path,
		pollInterval: interval,
	}
}

// SetPollInterval sets the polling interval. Takes effect on the next Start.
func (p *filePoller) SetPollInterval(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollInterval = interval
}

// Path returns the watched file.
func (p *filePoller) Path() string {
	return p.path
}

// Start records the file's current modification time and begins polling.
func (p *filePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.primeLocked()

	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	interval := p.pollInterval
	p.mu.Unlock()

	go p.watchLoop(ctx, interval)

	p.logger.Debug(p.name+" watcher started", "path", p.path, "interval", interval)
	return nil
}

// Stop stops polling.
func (p *filePoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.doneCh
	p.logger.Debug(p.name + " watcher stopped")
}

func (p *filePoller) primeLocked() {
	if info, err := os.Stat(p.path); err == nil {
		p.lastModTime = info.ModTime()
	}
}

func (p *filePoller) watchLoop(ctx context.Context, interval time.Duration) {
	defer close(p.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.Check()
		}
	}
}

// Check stats the file once and reports whether it changed.
func (p *filePoller) Check() bool {
	p.mu.RLock()
	lastModTime := p.lastModTime
	callback := p.onChange
	p.mu.RUnlock()

	info, err := os.Stat(p.path)
	if err != nil {
		// File might not exist yet or was deleted
		if !os.IsNotExist(err) {
			p.logger.Debug("failed to stat "+p.name+" file", "path", p.path, "error", err)
		}
		return false
	}

	modTime := info.ModTime()
	if !modTime.After(lastModTime) {
		return false
	}

	p.mu.Lock()
	p.lastModTime = modTime
	p.mu.Unlock()

	p.logger.Debug(p.name+" file changed", "path", p.path, "modTime", modTime)
	if callback != nil {
		callback()
	}
	return true
}

// StateWatcher watches the shared state file for quiet mode changes made
// by the CLI.
type StateWatcher struct {
	*filePoller

	cbMu     sync.RWMutex
	onChange func(state *store.SharedState)
}

// NewStateWatcher creates a StateWatcher for the given state file path.
func NewStateWatcher(statePath string, logger *slog.Logger) *StateWatcher {
	w := &StateWatcher{
		filePoller: newFilePoller("state", statePath, 500*time.Millisecond, logger),
	}
	w.filePoller.onChange = w.reload
	return w
}

// SetChangeCallback sets the callback invoked with the reloaded state.
func (w *StateWatcher) SetChangeCallback(callback func(state *store.SharedState)) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.onChange = callback
}

func (w *StateWatcher) reload() {
	state, err := store.LoadSharedState(w.path)
	if err != nil {
		w.logger.Warn("failed to reload shared state", "path", w.path, "error", err)
		return
	}

	w.cbMu.RLock()
	callback := w.onChange
	w.cbMu.RUnlock()
	if callback != nil {
		callback(state)
	}
}

// ConfigWatcher watches the daemon config file for changes and validates
// new configs before handing them on.
type ConfigWatcher struct {
	*filePoller

	cbMu          sync.RWMutex
	currentConfig *config.DaemonConfig
	onReload      func(newConfig *config.DaemonConfig)
	onError       func(err error)
}

// NewConfigWatcher creates a ConfigWatcher for the config file at path.
// An empty path watches the default location.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	if path == "" {
		p, err := config.DaemonConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	w := &ConfigWatcher{
		filePoller: newFilePoller("config", path, time.Second, logger),
	}
	w.filePoller.onChange = w.reload
	return w, nil
}

// SetReloadCallback sets the callback to invoke when config is successfully reloaded.
func (w *ConfigWatcher) SetReloadCallback(callback func(newConfig *config.DaemonConfig)) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.onReload = callback
}

// SetErrorCallback sets the callback to invoke when config reload fails validation.
func (w *ConfigWatcher) SetErrorCallback(callback func(err error)) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.onError = callback
}

// StartWith begins watching, treating initial as the current config.
func (w *ConfigWatcher) StartWith(ctx context.Context, initial *config.DaemonConfig) error {
	w.cbMu.Lock()
	w.currentConfig = initial
	w.cbMu.Unlock()
	return w.Start(ctx)
}

// GetCurrentConfig returns the current valid configuration.
func (w *ConfigWatcher) GetCurrentConfig() *config.DaemonConfig {
	w.cbMu.RLock()
	defer w.cbMu.RUnlock()
	return w.currentConfig
}

func (w *ConfigWatcher) reload() {
	w.cbMu.RLock()
	reloadCallback := w.onReload
	errorCallback := w.onError
	w.cbMu.RUnlock()

	newConfig, err := config.LoadDaemonConfig(w.path)
	if err != nil {
		w.logger.Warn("config file changed but validation failed", "error", err)
		if errorCallback != nil {
			errorCallback(err)
		}
		return
	}

	w.cbMu.Lock()
	w.currentConfig = newConfig
	w.cbMu.Unlock()

	w.logger.Info("config reloaded successfully")
	if reloadCallback != nil {
		reloadCallback(newConfig)
	}
}
