package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/layer-3/walletauth/core"
	"github.com/redis/go-redis/v9"
)

// MemoryKeyRegistry resolves account keys from memory
type MemoryKeyRegistry struct {
	keys map[string]map[int]core.AccountKey
	mu   sync.RWMutex
}

// NewMemoryKeyRegistry creates a registry holding the given keys
func NewMemoryKeyRegistry(keys ...core.AccountKey) (*MemoryKeyRegistry, error) {
	r := &MemoryKeyRegistry{keys: make(map[string]map[int]core.AccountKey)}
	for _, k := range keys {
		if err := r.AddKey(k); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddKey registers or replaces a key
func (r *MemoryKeyRegistry) AddKey(key core.AccountKey) error {
	addr, err := core.NormalizeAddress(key.Address)
	if err != nil {
		return err
	}
	key.Address = addr

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.keys[addr] == nil {
		r.keys[addr] = make(map[int]core.AccountKey)
	}
	r.keys[addr][key.Index] = key
	return nil
}

// RevokeKey marks a key as revoked
func (r *MemoryKeyRegistry) RevokeKey(address string, index int) error {
	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.keys[addr][index]
	if !ok {
		return core.ErrKeyNotFound
	}
	key.Revoked = true
	r.keys[addr][index] = key
	return nil
}

// ResolveKey returns the key with index on address
func (r *MemoryKeyRegistry) ResolveKey(ctx context.Context, address string, index int) (*core.AccountKey, error) {
	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, core.ErrKeyNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[addr][index]
	if !ok {
		return nil, core.ErrKeyNotFound
	}
	return &key, nil
}

// LoadKeys decodes a JSON array of account keys
func LoadKeys(r io.Reader) ([]core.AccountKey, error) {
	var keys []core.AccountKey
	if err := json.NewDecoder(r).Decode(&keys); err != nil {
		return nil, fmt.Errorf("failed to decode account keys: %w", err)
	}
	return keys, nil
}

// LoadKeysFile reads account keys from a JSON file
func LoadKeysFile(path string) ([]core.AccountKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keys file: %w", err)
	}
	defer f.Close()

	return LoadKeys(f)
}

// RedisKeyRegistry resolves account keys stored as JSON in Redis hashes,
// one hash per account keyed by key index
type RedisKeyRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisKeyRegistry creates a new Redis key registry
func NewRedisKeyRegistry(client *redis.Client) *RedisKeyRegistry {
	return &RedisKeyRegistry{
		client: client,
		prefix: "walletauth:keys:",
	}
}

// AddKey registers or replaces a key
func (r *RedisKeyRegistry) AddKey(ctx context.Context, key core.AccountKey) error {
	addr, err := core.NormalizeAddress(key.Address)
	if err != nil {
		return err
	}
	key.Address = addr

	payload, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	if err := r.client.HSet(ctx, r.prefix+addr, strconv.Itoa(key.Index), payload).Err(); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	return nil
}

// ResolveKey returns the key with index on address
func (r *RedisKeyRegistry) ResolveKey(ctx context.Context, address string, index int) (*core.AccountKey, error) {
	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, core.ErrKeyNotFound
	}

	payload, err := r.client.HGet(ctx, r.prefix+addr, strconv.Itoa(index)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load key: %w", err)
	}

	var key core.AccountKey
	if err := json.Unmarshal(payload, &key); err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	return &key, nil
}
