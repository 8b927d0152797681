package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps values in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
	hub  *hub
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]string),
		hub:  newHub(),
	}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value and notifies subscribers.
func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()

	s.hub.publish(Change{Key: key, Value: value, At: time.Now()})
	return nil
}

// Subscribe delivers changes to key until ctx ends or the store is closed.
func (s *MemoryStore) Subscribe(ctx context.Context, key string) (<-chan Change, error) {
	return s.hub.subscribe(ctx, key), nil
}

// Close stops change delivery.
func (s *MemoryStore) Close() error {
	s.hub.closeAll()
	return nil
}
