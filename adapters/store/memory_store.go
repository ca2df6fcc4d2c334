package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/ports"
)

// sweepEvery is the number of writes between sweeps of expired entries
const sweepEvery = 256

// MemoryStore keeps invalidated token ids in process memory. Entries expire
// lazily and are swept every sweepEvery writes.
type MemoryStore struct {
	mu      sync.RWMutex
	blocked map[string]time.Time
	writes  int
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() ports.Store {
	return &MemoryStore{blocked: make(map[string]time.Time)}
}

// InvalidateToken blocks tokenID for ttl
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.block(tokenID, ttl, time.Now())
	return nil
}

// ConsumeToken blocks tokenID for ttl and reports whether it was unblocked before
func (s *MemoryStore) ConsumeToken(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if until, ok := s.blocked[tokenID]; ok && now.Before(until) {
		return false, nil
	}
	s.block(tokenID, ttl, now)
	return true, nil
}

// IsTokenInvalidated reports whether tokenID is currently blocked
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	until, ok := s.blocked[tokenID]
	return ok && time.Now().Before(until), nil
}

// block must be called with mu held
func (s *MemoryStore) block(tokenID string, ttl time.Duration, now time.Time) {
	s.blocked[tokenID] = now.Add(ttl)

	s.writes++
	if s.writes%sweepEvery != 0 {
		return
	}
	for id, until := range s.blocked {
		if !now.Before(until) {
			delete(s.blocked, id)
		}
	}
}
