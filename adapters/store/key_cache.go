package store

import (
	"context"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const defaultKeyCacheSize = 1024

// CachedKeyResolver keeps resolved keys in a bounded LRU for ttl. A key
// revoked upstream keeps verifying until its entry expires. Lookups that
// fail are not cached.
type CachedKeyResolver struct {
	next  ports.KeyResolver
	cache *expirable.LRU[string, core.AccountKey]
}

// NewCachedKeyResolver wraps next with a cache of size entries (a default
// size when size <= 0)
func NewCachedKeyResolver(next ports.KeyResolver, size int, ttl time.Duration) *CachedKeyResolver {
	if size <= 0 {
		size = defaultKeyCacheSize
	}
	return &CachedKeyResolver{
		next:  next,
		cache: expirable.NewLRU[string, core.AccountKey](size, nil, ttl),
	}
}

// ResolveKey returns the cached key or resolves it through the wrapped resolver
func (r *CachedKeyResolver) ResolveKey(ctx context.Context, address string, index int) (*core.AccountKey, error) {
	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, core.ErrKeyNotFound
	}
	id := addr + "/" + strconv.Itoa(index)

	if key, ok := r.cache.Get(id); ok {
		return &key, nil
	}

	key, err := r.next.ResolveKey(ctx, addr, index)
	if err != nil {
		return nil, err
	}
	r.cache.Add(id, *key)
	return key, nil
}

// Purge drops every cached key
func (r *CachedKeyResolver) Purge() {
	r.cache.Purge()
}
