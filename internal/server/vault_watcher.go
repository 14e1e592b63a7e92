package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"postulamatch/internal/config"
	"postulamatch/internal/errors"
)

// VaultSecretReader reads versioned KV v2 secrets
type VaultSecretReader interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
}

// KeyRotateCallback receives the new API key set
type KeyRotateCallback func(keys []string)

// KeyWatcher polls the Vault secret holding the server API keys and hands
// every new version to the rotate callback
type KeyWatcher struct {
	mu sync.RWMutex

	client       VaultSecretReader
	secretPath   string
	pollInterval time.Duration
	onRotate     KeyRotateCallback
	logger       *errors.Logger

	stopChan    chan struct{}
	running     bool
	lastVersion int64
	rotations   int
	lastError   string
}

// NewKeyWatcher creates a KeyWatcher
func NewKeyWatcher(client VaultSecretReader, secretPath string, pollInterval time.Duration, onRotate KeyRotateCallback, logger *errors.Logger) *KeyWatcher {
	return &KeyWatcher{
		client:       client,
		secretPath:   secretPath,
		pollInterval: pollInterval,
		onRotate:     onRotate,
		logger:       logger,
		stopChan:     make(chan struct{}),
	}
}

// Start begins polling Vault
func (kw *KeyWatcher) Start() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.running {
		return fmt.Errorf("key watcher is already running")
	}
	if kw.pollInterval <= 0 {
		return fmt.Errorf("key watcher poll interval must be positive")
	}
	kw.running = true
	go kw.pollLoop()
	if kw.logger != nil {
		kw.logger.Info("API key watcher started", "secret_path", kw.secretPath, "poll_interval", kw.pollInterval)
	}
	return nil
}

// Stop stops the watcher
func (kw *KeyWatcher) Stop() error {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if !kw.running {
		return nil
	}
	close(kw.stopChan)
	kw.running = false
	if kw.logger != nil {
		kw.logger.Info("API key watcher stopped")
	}
	return nil
}

func (kw *KeyWatcher) pollLoop() {
	ticker := time.NewTicker(kw.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := kw.poll(); err != nil {
				kw.setError(err)
				if kw.logger != nil {
					kw.logger.LogError(err, "Failed to check Vault for API key updates")
				}
			}
		case <-kw.stopChan:
			return
		}
	}
}

// poll reads the secret once and rotates the keys when its version grew.
// An empty key list is rejected so a bad write cannot open the API.
func (kw *KeyWatcher) poll() (bool, error) {
	secret, err := kw.client.GetSecretV2(kw.secretPath)
	if err != nil {
		return false, fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil {
		return false, fmt.Errorf("secret %s not found", kw.secretPath)
	}

	kw.mu.Lock()
	if secret.Version <= kw.lastVersion {
		kw.mu.Unlock()
		return false, nil
	}
	kw.lastVersion = secret.Version
	kw.mu.Unlock()

	raw, _ := secret.Data["keys"].(string)
	keys := parseKeys(raw)
	if len(keys) == 0 {
		return false, fmt.Errorf("secret %s version %d holds no API keys", kw.secretPath, secret.Version)
	}

	kw.onRotate(keys)

	kw.mu.Lock()
	kw.rotations++
	kw.lastError = ""
	kw.mu.Unlock()
	if kw.logger != nil {
		kw.logger.Info("API keys rotated from Vault", "version", secret.Version, "keys", len(keys))
	}
	return true, nil
}

func (kw *KeyWatcher) setError(err error) {
	kw.mu.Lock()
	kw.lastError = err.Error()
	kw.mu.Unlock()
}

func parseKeys(raw string) []string {
	var keys []string
	for key := range strings.SplitSeq(raw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// Status returns the watcher state for the stats endpoint
func (kw *KeyWatcher) Status() map[string]any {
	kw.mu.RLock()
	defer kw.mu.RUnlock()
	status := map[string]any{
		"running":       kw.running,
		"poll_interval": kw.pollInterval.String(),
		"secret_path":   kw.secretPath,
		"last_version":  kw.lastVersion,
		"rotations":     kw.rotations,
	}
	if kw.lastError != "" {
		status["last_error"] = kw.lastError
	}
	return status
}
