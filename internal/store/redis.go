package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spherical/ocr-extractor/internal/observability"
)

// RedisStore keeps values in Redis and announces writes over PUBLISH, so
// every process subscribed to the same server sees them.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *observability.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg RedisConfig, logger *observability.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ocr"
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &RedisStore{
		client: client,
		prefix: prefix + ":",
		logger: logger,
		closed: make(chan struct{}),
	}, nil
}

func (s *RedisStore) valueKey(key string) string   { return s.prefix + key }
func (s *RedisStore) channelKey(key string) string { return s.prefix + "changes:" + key }

// Get retrieves a value.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, s.valueKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores value and publishes the change.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	change := Change{Key: key, Value: value, At: time.Now()}
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.valueKey(key), value, 0)
	pipe.Publish(ctx, s.channelKey(key), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Subscribe delivers changes to key until ctx ends or the store is closed.
func (s *RedisStore) Subscribe(ctx context.Context, key string) (<-chan Change, error) {
	sub := s.client.Subscribe(ctx, s.channelKey(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	ch := make(chan Change, subscriberBuffer)
	go func() {
		defer close(ch)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					s.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed change")
					continue
				}
				select {
				case ch <- c:
				case <-ctx.Done():
					return
				case <-s.closed:
					return
				}
			}
		}
	}()

	return ch, nil
}

// Close ends all subscriptions and closes the Redis connection.
func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return s.client.Close()
}
