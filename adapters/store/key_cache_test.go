package store

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	*MemoryKeyRegistry
	calls int
}

func (r *countingResolver) ResolveKey(ctx context.Context, address string, index int) (*core.AccountKey, error) {
	r.calls++
	return r.MemoryKeyRegistry.ResolveKey(ctx, address, index)
}

func TestCachedKeyResolver(t *testing.T) {
	registry, err := NewMemoryKeyRegistry(testKey)
	require.NoError(t, err)
	counting := &countingResolver{MemoryKeyRegistry: registry}
	cache := NewCachedKeyResolver(counting, 0, time.Minute)
	ctx := context.Background()

	key, err := cache.ResolveKey(ctx, testAddress, 1)
	require.NoError(t, err)
	assert.Equal(t, testAddress, key.Address)

	// the upper case form hits the same entry
	_, err = cache.ResolveKey(ctx, "0xF8D6E0586B0A20C7", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.calls)

	// revocation shows once the entry is gone
	require.NoError(t, registry.RevokeKey(testAddress, 1))
	key, err = cache.ResolveKey(ctx, testAddress, 1)
	require.NoError(t, err)
	assert.False(t, key.Revoked)

	cache.Purge()
	key, err = cache.ResolveKey(ctx, testAddress, 1)
	require.NoError(t, err)
	assert.True(t, key.Revoked)
	assert.Equal(t, 2, counting.calls)
}

func TestCachedKeyResolverDoesNotCacheMisses(t *testing.T) {
	registry, err := NewMemoryKeyRegistry()
	require.NoError(t, err)
	counting := &countingResolver{MemoryKeyRegistry: registry}
	cache := NewCachedKeyResolver(counting, 8, time.Minute)
	ctx := context.Background()

	_, err = cache.ResolveKey(ctx, testAddress, 1)
	assert.ErrorIs(t, err, core.ErrKeyNotFound)

	require.NoError(t, registry.AddKey(testKey))
	_, err = cache.ResolveKey(ctx, testAddress, 1)
	assert.NoError(t, err)
	assert.Equal(t, 2, counting.calls)

	_, err = cache.ResolveKey(ctx, "zz", 1)
	assert.ErrorIs(t, err, core.ErrKeyNotFound)
}

func TestCachedKeyResolverExpiry(t *testing.T) {
	registry, err := NewMemoryKeyRegistry(testKey)
	require.NoError(t, err)
	counting := &countingResolver{MemoryKeyRegistry: registry}
	cache := NewCachedKeyResolver(counting, 8, 20*time.Millisecond)
	ctx := context.Background()

	_, err = cache.ResolveKey(ctx, testAddress, 1)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := cache.ResolveKey(ctx, testAddress, 1)
		return err == nil && counting.calls > 1
	}, time.Second, 10*time.Millisecond)
}
