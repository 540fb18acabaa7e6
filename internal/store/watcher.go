package store

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Hydrator reloads itself from its backing file.
type Hydrator interface {
	Hydrate() error
}

// FileWatcher watches a file for changes and triggers rehydration.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	target   Hydrator
	filePath string
	logger   *slog.Logger
	done     chan struct{}
	mu       sync.Mutex
	running  bool

	// Called after each reload attempt, mainly for tests
	onReload func(error)
}

// NewFileWatcher creates a new file watcher that rehydrates target when
// filePath is written or replaced.
func NewFileWatcher(target Hydrator, filePath string, logger *slog.Logger) (*FileWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		target:   target,
		filePath: filePath,
		logger:   logger,
		done:     make(chan struct{}),
	}

	return fw, nil
}

// OnReload registers fn to run after every reload attempt.
// Must be called before Start.
func (fw *FileWatcher) OnReload(fn func(error)) {
	fw.onReload = fn
}

// Start begins watching the file for changes.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.running = true
	fw.mu.Unlock()

	// Watch the directory containing the file (more reliable for writes)
	dir := filepath.Dir(fw.filePath)
	if err := fw.watcher.Add(dir); err != nil {
		return err
	}

	go fw.watch()
	return nil
}

// watch is the main watch loop.
func (fw *FileWatcher) watch() {
	filename := filepath.Base(fw.filePath)

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Only care about our file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// Editors and atomic writers rename a temp file over the target
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				fw.logger.Debug("file changed, reloading", "file", fw.filePath)
				err := fw.target.Hydrate()
				if err != nil {
					fw.logger.Warn("failed to reload file", "file", fw.filePath, "error", err)
				}
				if fw.onReload != nil {
					fw.onReload(err)
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)

		case <-fw.done:
			return
		}
	}
}

// Stop stops the file watcher.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.running {
		return nil
	}

	fw.running = false
	close(fw.done)
	return fw.watcher.Close()
}
