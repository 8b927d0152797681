package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("results")

// BoltStore persists values in a bbolt file. Change notification reaches
// subscribers in the same process only.
type BoltStore struct {
	db  *bolt.DB
	hub *hub
}

// NewBoltStore opens or creates the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for BoltDB: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db, hub: newHub()}, nil
}

// Get returns the value stored under key.
func (s *BoltStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			found = true
			value = string(v)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("bolt get: %w", err)
	}
	if !found {
		return "", ErrNotFound
	}
	return value, nil
}

// Set stores value durably, then notifies subscribers.
func (s *BoltStore) Set(ctx context.Context, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("bolt set: %w", err)
	}

	s.hub.publish(Change{Key: key, Value: value, At: time.Now()})
	return nil
}

// Subscribe delivers changes to key until ctx ends or the store is closed.
func (s *BoltStore) Subscribe(ctx context.Context, key string) (<-chan Change, error) {
	return s.hub.subscribe(ctx, key), nil
}

// Close closes the BoltDB database
func (s *BoltStore) Close() error {
	s.hub.closeAll()
	return s.db.Close()
}
