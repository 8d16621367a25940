package server

import (
	"fmt"
	"sync"
	"time"

	"fairaudit/internal/errors"
)

// APIKeySource loads the current API keys and the secret version they came from.
type APIKeySource interface {
	LoadAPIKeys() ([]string, int64, error)
}

// VaultWatcher polls Vault for a new version of the API key secret and hands
// the new keys to onRotate. Versions at or below the last seen one are ignored.
type VaultWatcher struct {
	mu sync.RWMutex

	source       APIKeySource
	pollInterval time.Duration
	onRotate     func(keys []string)
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	lastError   string
	lastChecked time.Time
}

// NewVaultWatcher creates a new VaultWatcher. initialVersion is the version
// applied at startup, so the first poll does not re-apply it.
func NewVaultWatcher(source APIKeySource, pollInterval time.Duration, initialVersion int64, onRotate func(keys []string), logger *errors.Logger) *VaultWatcher {
	return &VaultWatcher{
		source:       source,
		pollInterval: pollInterval,
		onRotate:     onRotate,
		logger:       logger,
		stopChan:     make(chan struct{}),
		lastVersion:  initialVersion,
	}
}

// Start begins polling Vault for secret changes
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.running {
		return fmt.Errorf("vault watcher is already running")
	}
	if vw.pollInterval <= 0 {
		return fmt.Errorf("vault watcher poll interval must be positive, got %s", vw.pollInterval)
	}
	vw.running = true
	go vw.pollLoop()
	if vw.logger != nil {
		vw.logger.Info("Vault API key watcher started", "poll_interval", vw.pollInterval)
	}
	return nil
}

// Stop stops the Vault watcher
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.running {
		return nil
	}
	close(vw.stopChan)
	vw.running = false
	if vw.logger != nil {
		vw.logger.Info("Vault API key watcher stopped")
	}
	return nil
}

func (vw *VaultWatcher) pollLoop() {
	ticker := time.NewTicker(vw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := vw.poll(); err != nil && vw.logger != nil {
				vw.logger.LogError(err, "Failed to check Vault for API key updates")
			}
		case <-vw.stopChan:
			return
		}
	}
}

// poll reads the secret once and applies it when its version moved forward.
func (vw *VaultWatcher) poll() (bool, error) {
	keys, version, err := vw.source.LoadAPIKeys()

	vw.mu.Lock()
	vw.lastChecked = time.Now()
	if err != nil {
		vw.lastError = err.Error()
		vw.mu.Unlock()
		return false, fmt.Errorf("failed to read API keys: %w", err)
	}
	vw.lastError = ""
	if version <= vw.lastVersion {
		vw.mu.Unlock()
		return false, nil
	}
	if len(keys) == 0 {
		vw.mu.Unlock()
		return false, fmt.Errorf("secret version %d holds no API keys, keeping current keys", version)
	}
	vw.lastVersion = version
	vw.mu.Unlock()

	if vw.logger != nil {
		vw.logger.Info("API keys rotated from Vault", "count", len(keys), "version", version)
	}
	vw.onRotate(keys)
	return true, nil
}

// Status returns the current status of the VaultWatcher for health reporting
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	status := map[string]any{
		"running":       vw.running,
		"poll_interval": vw.pollInterval.String(),
		"last_version":  vw.lastVersion,
	}
	if !vw.lastChecked.IsZero() {
		status["last_checked"] = vw.lastChecked.UTC()
	}
	if vw.lastError != "" {
		status["last_error"] = vw.lastError
	}
	return status
}
