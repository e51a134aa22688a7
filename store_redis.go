package guardkit

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store. Keys are prefixed with the contract
// identifier so several instances can share one Redis database.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Store over an existing Redis client. contract
// identifies this contract instance's keys.
func NewRedisStore(client redis.UniversalClient, contract string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: contract + ":",
	}
}

// NewRedisStoreFromConfig connects to cfg.RedisURL and returns a
// RedisStore.
//
// Example:
//
//	store, err := guardkit.NewRedisStoreFromConfig(ctx, cfg, "counter.app")
func NewRedisStoreFromConfig(ctx context.Context, cfg Config, contract string) (*RedisStore, error) {
	if cfg.RedisURL == "" {
		return nil, NewError(ErrConfig, "redis url is not configured")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, NewError(ErrConfig, "redis url: "+err.Error())
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, storageErr("ping redis", err)
	}
	return NewRedisStore(client, contract), nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
