package server

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"fairaudit/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// ProfileWatcher watches a threshold profile file and calls onChange after
// writes settle. Editors and config managers often replace the file by rename,
// so the parent directory is watched and events are filtered by name.
type ProfileWatcher struct {
	mu sync.Mutex

	path          string
	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	reloadChan chan struct{}
	doneChan   chan struct{}

	onChange func(path string)
	logger   *errors.Logger

	running bool
}

// NewProfileWatcher creates a watcher for path. A zero debounce uses 500ms.
func NewProfileWatcher(path string, debounceDelay time.Duration, onChange func(path string), logger *errors.Logger) *ProfileWatcher {
	if debounceDelay <= 0 {
		debounceDelay = 500 * time.Millisecond
	}
	return &ProfileWatcher{
		path:          filepath.Clean(path),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		reloadChan:    make(chan struct{}, 1),
		doneChan:      make(chan struct{}),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching. It fails if the profile's directory cannot be watched.
func (pw *ProfileWatcher) Start() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.running {
		return fmt.Errorf("profile watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(pw.path)
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil && pw.logger != nil {
			pw.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	pw.fsWatcher = watcher
	pw.running = true
	go pw.watchLoop()

	if pw.logger != nil {
		pw.logger.Info("Threshold profile watcher started",
			"file", pw.path,
			"debounce_delay", pw.debounceDelay)
	}
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (pw *ProfileWatcher) Stop() error {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return nil
	}
	pw.running = false
	close(pw.stopChan)
	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	err := pw.fsWatcher.Close()
	pw.mu.Unlock()

	<-pw.doneChan

	if err != nil {
		if pw.logger != nil {
			pw.logger.LogError(err, "Failed to close file system watcher")
		}
		return err
	}
	if pw.logger != nil {
		pw.logger.Info("Threshold profile watcher stopped")
	}
	return nil
}

func (pw *ProfileWatcher) watchLoop() {
	defer close(pw.doneChan)
	for {
		select {
		case event, ok := <-pw.fsWatcher.Events:
			if !ok {
				return
			}
			if pw.shouldProcessEvent(event) {
				pw.scheduleReload()
			}

		case err, ok := <-pw.fsWatcher.Errors:
			if !ok {
				return
			}
			if pw.logger != nil {
				pw.logger.LogError(err, "File watcher error", "file", pw.path)
			}

		case <-pw.reloadChan:
			pw.onChange(pw.path)

		case <-pw.stopChan:
			return
		}
	}
}

func (pw *ProfileWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != pw.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// scheduleReload restarts the debounce timer
func (pw *ProfileWatcher) scheduleReload() {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.debounceTimer != nil {
		pw.debounceTimer.Stop()
	}
	pw.debounceTimer = time.AfterFunc(pw.debounceDelay, func() {
		select {
		case pw.reloadChan <- struct{}{}:
		default:
		}
	})
}

// IsRunning returns whether the watcher is currently running
func (pw *ProfileWatcher) IsRunning() bool {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.running
}

// Path returns the watched profile file.
func (pw *ProfileWatcher) Path() string {
	return pw.path
}
