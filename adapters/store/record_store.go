package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

// MemoryRecordStore keeps authentication records in memory
type MemoryRecordStore struct {
	records map[string]int64
	mu      sync.RWMutex
}

// NewMemoryRecordStore creates a new in-memory record store
func NewMemoryRecordStore() ports.RecordStore {
	return &MemoryRecordStore{
		records: make(map[string]int64),
	}
}

// GetRecord returns the record of address, or nil if none exists
func (s *MemoryRecordStore) GetRecord(ctx context.Context, address string) (*core.AuthenticationRecord, error) {
	key, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &core.AuthenticationRecord{Address: key, LastAcceptedTimestamp: ts}, nil
}

// AdvanceRecord stores the record if it is newer than the stored one
func (s *MemoryRecordStore) AdvanceRecord(ctx context.Context, record core.AuthenticationRecord) error {
	key, err := core.NormalizeAddress(record.Address)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ts, ok := s.records[key]; ok && record.LastAcceptedTimestamp <= ts {
		return core.ErrReplayedOrStaleTimestamp
	}
	s.records[key] = record.LastAcceptedTimestamp
	return nil
}

// advanceScript sets KEYS[1] to ARGV[1] only when it grows the stored value
var advanceScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

// RedisRecordStore keeps authentication records in Redis
type RedisRecordStore struct {
	client *redis.Client
	prefix string
}

// NewRedisRecordStore creates a new Redis record store
func NewRedisRecordStore(client *redis.Client) ports.RecordStore {
	return &RedisRecordStore{
		client: client,
		prefix: "walletauth:record:",
	}
}

// GetRecord returns the record of address, or nil if none exists
func (s *RedisRecordStore) GetRecord(ctx context.Context, address string) (*core.AuthenticationRecord, error) {
	key, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	ts, err := s.client.Get(ctx, s.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authentication record: %w", err)
	}

	return &core.AuthenticationRecord{Address: key, LastAcceptedTimestamp: ts}, nil
}

// AdvanceRecord atomically stores the record if it is newer than the stored one
func (s *RedisRecordStore) AdvanceRecord(ctx context.Context, record core.AuthenticationRecord) error {
	key, err := core.NormalizeAddress(record.Address)
	if err != nil {
		return err
	}

	res, err := advanceScript.Run(ctx, s.client, []string{s.prefix + key},
		strconv.FormatInt(record.LastAcceptedTimestamp, 10)).Int()
	if err != nil {
		return fmt.Errorf("failed to advance authentication record: %w", err)
	}
	if res == 0 {
		return core.ErrReplayedOrStaleTimestamp
	}

	return nil
}
