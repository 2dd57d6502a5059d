package config

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"github.com/gatewarden/gatewarden/pkg/logger"
)

// FileWatcher watches a single file (the RBAC role file) and invokes the
// registered callback on every write. The callback is responsible for
// reloading and swapping state atomically; a failed reload keeps the
// previous state.
type FileWatcher struct {
	path     string
	onChange func(path string) error
	logger   logger.Logger
	stopCh   chan struct{}
}

func NewFileWatcher(path string, onChange func(path string) error, log logger.Logger) *FileWatcher {
	return &FileWatcher{
		path:     path,
		onChange: onChange,
		logger:   log,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks watching for changes until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.logger.Info("File watcher started", "path", w.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.logger.Info("Watched file changed, reloading", "file", event.Name)
				if err := w.onChange(w.path); err != nil {
					w.logger.Error("Reload failed, keeping previous state", "file", w.path, "error", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", "error", err)

		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil
		}
	}
}

// Stop terminates the watch loop.
func (w *FileWatcher) Stop() {
	close(w.stopCh)
}
