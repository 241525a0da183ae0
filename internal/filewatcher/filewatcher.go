// SPDX-License-Identifier:Apache-2.0

package filewatcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher monitors a configuration file and signals a reload through
// a channel. The parent directory is watched so that editors replacing the
// file through a rename are noticed too.
type FileWatcher struct {
	path             string
	watchDir         string
	logger           *slog.Logger
	debounceDuration time.Duration

	watcher     *fsnotify.Watcher
	triggerChan chan<- struct{}
}

// New creates a new FileWatcher for the file at path.
func New(path string, triggerChan chan<- struct{}, logger *slog.Logger) (*FileWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watched file cannot be empty")
	}
	if triggerChan == nil {
		return nil, fmt.Errorf("trigger channel cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	path = filepath.Clean(path)
	return &FileWatcher{
		path:             path,
		watchDir:         filepath.Dir(path),
		logger:           logger,
		triggerChan:      triggerChan,
		debounceDuration: 500 * time.Millisecond,
	}, nil
}

// Start begins watching the file for changes.
// Returns immediately; watching happens in background goroutine until ctx
// is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	if fw.watcher != nil {
		return fmt.Errorf("file watcher already started")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	fw.watcher = watcher

	err = fw.watcher.Add(fw.watchDir)
	if err != nil {
		_ = fw.watcher.Close()
		fw.watcher = nil
		return fmt.Errorf("failed to add watch directory %s: %w", fw.watchDir, err)
	}

	fw.logger.Info("file watcher started", "file", fw.path, "debounce", fw.debounceDuration)

	go fw.watchLoop(ctx)

	return nil
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer func() {
		if err := fw.watcher.Close(); err != nil {
			fw.logger.Error("error closing watcher", "error", err)
		}
		fw.logger.Info("file watcher stopped", "file", fw.path)
	}()

	var timeOut <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			fw.logger.Debug("file watcher context cancelled")
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				fw.logger.Debug("file watcher events channel closed")
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op == fsnotify.Chmod {
				fw.logger.Debug("chmod event", "path", event.Name)
				continue
			}

			// every relevant event pushes the trigger back
			timeOut = time.After(fw.debounceDuration)
			fw.logEvent(event)

		case <-timeOut:
			timeOut = nil
			fw.triggerReload()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				fw.logger.Debug("file watcher errors channel closed")
				return
			}

			fw.logger.Error("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) logEvent(fileEvent fsnotify.Event) {
	switch {
	case fileEvent.Op&fsnotify.Write == fsnotify.Write:
		fw.logger.Info("configuration file modified", "path", fileEvent.Name, "op", "WRITE")
	case fileEvent.Op&fsnotify.Create == fsnotify.Create:
		fw.logger.Info("configuration file created", "path", fileEvent.Name, "op", "CREATE")
	case fileEvent.Op&fsnotify.Remove == fsnotify.Remove:
		fw.logger.Info("configuration file removed", "path", fileEvent.Name, "op", "REMOVE")
	case fileEvent.Op&fsnotify.Rename == fsnotify.Rename:
		fw.logger.Info("configuration file renamed", "path", fileEvent.Name, "op", "RENAME")
	default:
		fw.logger.Info("configuration file event", "path", fileEvent.Name, "op", fileEvent.Op)
	}
}

// triggerReload never blocks, a pending trigger already covers the change.
func (fw *FileWatcher) triggerReload() {
	select {
	case fw.triggerChan <- struct{}{}:
		fw.logger.Info("triggered reload from configuration file change", "file", fw.path)
	default:
		fw.logger.Debug("reload already queued, skipping trigger", "file", fw.path)
	}
}
