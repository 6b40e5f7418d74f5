// Package prefs is the persistent key/value preference storage the session
// core reads and writes through simple get/set calls. The core only consumes
// a handful of keys; everything else about the store is the host's business.
package prefs

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// Well-known preference keys.
const (
	KeyLiveUpdates = "live_updates_enabled"
	KeyPopups      = "popup_notifications"
	KeyLocation    = "user_location"
)

// ErrNotFound is returned when a key has never been set.
var ErrNotFound = errors.New("preference not found")

// Store is simple get/set key/value storage.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetBool reads a boolean preference, returning fallback when the key is
// missing or unparsable.
func GetBool(ctx context.Context, s Store, key string, fallback bool) bool {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// SetBool writes a boolean preference.
func SetBool(ctx context.Context, s Store, key string, value bool) error {
	return s.Set(ctx, key, strconv.FormatBool(value))
}

// memoryStore is the in-process Store used in tests and when no backend is
// reachable.
type memoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{values: make(map[string]string)}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
