// Package store persists extraction results under a key and notifies
// subscribers every time a key is written.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical/ocr-extractor/internal/config"
	"github.com/spherical/ocr-extractor/internal/observability"
)

// ErrNotFound indicates the key has never been written.
var ErrNotFound = errors.New("store: key not found")

// Change is broadcast after a successful Set.
type Change struct {
	Key   string    `json:"key"`
	Value string    `json:"value"`
	At    time.Time `json:"at"`
}

// Store is a string key-value store with change notification.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Subscribe delivers changes to key until ctx ends or the store is
	// closed, then closes the channel.
	Subscribe(ctx context.Context, key string) (<-chan Change, error)
	Close() error
}

// CrossProcess reports whether driver delivers changes made by other processes.
func CrossProcess(driver string) bool {
	return driver == "redis"
}

// New opens the store selected by cfg.Driver.
func New(cfg config.StoreConfig, logger *observability.Logger) (Store, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}, logger)
	case "bolt":
		return NewBoltStore(cfg.Bolt.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
