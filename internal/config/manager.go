package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// Source describes a backend that can provide configuration values.
type Source interface {
	Get(key string) (string, error)
	Name() string
}

// Manager stores a single source (selected via CONFIG_PROVIDER) and proxies calls.
type Manager struct {
	source Source
}

// NewManager wraps an explicit source. Useful when the process wiring
// already knows which backend holds the secrets.
func NewManager(source Source) *Manager {
	return &Manager{source: source}
}

func (m *Manager) Get(key string) (string, error) {
	if m == nil || m.source == nil {
		return "", fmt.Errorf("config: no source configured")
	}
	return m.source.Get(key)
}

// SourceName reports which backend answers lookups.
func (m *Manager) SourceName() string {
	if m == nil || m.source == nil {
		return ""
	}
	return m.source.Name()
}

var (
	defaultManager *Manager
	managerOnce    sync.Once
	managerErr     error
)

// Default returns the process-wide manager, built once from CONFIG_PROVIDER.
func Default() (*Manager, error) {
	managerOnce.Do(func() {
		sourceName := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_PROVIDER")))
		if sourceName == "" {
			sourceName = "env"
		}

		source, err := NewSource(sourceName)
		if err != nil {
			managerErr = err
			return
		}

		defaultManager = &Manager{source: source}
	})

	return defaultManager, managerErr
}

// NewSource builds a source by provider name (env|vault).
func NewSource(name string) (Source, error) {
	switch name {
	case "env":
		return NewEnvSource(), nil
	case "vault":
		return NewVaultSource()
	default:
		return nil, fmt.Errorf("unknown config provider: %s", name)
	}
}
