package guardkit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, contract string) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, contract)
}

// TestRedisStore tests the Redis store contract
func TestRedisStore(t *testing.T) {
	storeConformance(t, newTestRedisStore(t, "test.app"))
}

// TestRedisStoreContractIsolation tests that instances do not share keys
func TestRedisStoreContractIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	a := NewRedisStore(client, "a.app")
	b := NewRedisStore(client, "b.app")

	require.NoError(t, a.Set(ctx, "key", []byte("from-a")))

	_, ok, err := b.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := a.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("from-a"), value)
}

// TestRedisStoreBackedContract tests the full aggregate over Redis
func TestRedisStoreBackedContract(t *testing.T) {
	store := newTestRedisStore(t, "counter.app")

	registry := NewRegistry().Role("PauseManager")
	contract, err := NewContract(DefaultConfig(), store, registry,
		WithSelfID("counter.app"),
		WithEmitter(NopEmitter{}),
		WithPauseRoles("PauseManager"),
		WithUnpauseRoles("PauseManager"),
	)
	require.NoError(t, err)

	_, err = contract.ACL().InitSuperAdmin(asCaller("counter.app"), "super.app")
	require.NoError(t, err)

	granted, err := contract.ACL().GrantRole(asCaller("super.app"), "PauseManager", "anna.app")
	require.NoError(t, err)
	assert.True(t, granted)

	changed, err := contract.Pausable().PauseFeature(asCaller("anna.app"), "increase")
	require.NoError(t, err)
	assert.True(t, changed)

	err = contract.Pausable().IfNotPaused(asCaller("someone.app"), "increase")
	assert.ErrorIs(t, err, ErrPaused)
}

// TestNewRedisStoreFromConfig tests URL-based construction
func TestNewRedisStoreFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	store, err := NewRedisStoreFromConfig(ctx, cfg, "test.app")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	storeConformance(t, store)

	// Missing and malformed URLs are configuration errors.
	_, err = NewRedisStoreFromConfig(ctx, DefaultConfig(), "test.app")
	assert.ErrorIs(t, err, ErrConfig)

	bad := DefaultConfig()
	bad.RedisURL = "://not-a-url"
	_, err = NewRedisStoreFromConfig(ctx, bad, "test.app")
	assert.ErrorIs(t, err, ErrConfig)
}
