package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletauth/core"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)

	// ConsumeToken atomically invalidates tokenID and reports whether this
	// call was the one that invalidated it.
	ConsumeToken(ctx context.Context, tokenID string, expiry time.Duration) (bool, error)
}

// RecordStore persists the last accepted proof timestamp per account
type RecordStore interface {
	// GetRecord returns nil and no error when the address has no record.
	GetRecord(ctx context.Context, address string) (*core.AuthenticationRecord, error)

	// AdvanceRecord stores record only if its timestamp is strictly greater
	// than the stored one, otherwise it returns core.ErrReplayedOrStaleTimestamp.
	AdvanceRecord(ctx context.Context, record core.AuthenticationRecord) error
}

// KeyResolver looks up the public keys registered on an account
type KeyResolver interface {
	ResolveKey(ctx context.Context, address string, index int) (*core.AccountKey, error)
}
