package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/ports"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "walletauth:invalidated:"

// RedisStore keeps invalidated token ids as expiring Redis keys
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a token store on client
func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{client: client}
}

func tokenKey(tokenID string) string {
	return tokenKeyPrefix + tokenID
}

// InvalidateToken blocks tokenID for ttl
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, tokenKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}
	return nil
}

// ConsumeToken blocks tokenID with SETNX so only one caller wins
func (s *RedisStore) ConsumeToken(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, tokenKey(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to consume token: %w", err)
	}
	return ok, nil
}

// IsTokenInvalidated reports whether tokenID is blocked
func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, tokenKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	return n > 0, nil
}
