// Package options persists named option records, each a flat JSON object,
// the way the host form plugin keeps "sform_settings" and friends.
package options

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Delete when the option does not exist.
var ErrNotFound = errors.New("option not found")

// Store reads and writes option records.
type Store interface {
	Get(ctx context.Context, name string) (map[string]any, bool, error)
	Put(ctx context.Context, name string, value map[string]any) error
	Delete(ctx context.Context, name string) error
	Names(ctx context.Context, prefix string) ([]string, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]any)}
}

func (m *Memory) Get(_ context.Context, name string) (map[string]any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[name]
	if !ok {
		return nil, false, nil
	}
	return clone(v), true, nil
}

func (m *Memory) Put(_ context.Context, name string, value map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = clone(value)
	return nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[name]; !ok {
		return ErrNotFound
	}
	delete(m.data, name)
	return nil
}

func (m *Memory) Names(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.data {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func clone(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
