// Package walletauth authenticates wallet accounts by account-ownership
// proofs and issues JWT sessions for them.
//
// The account proof is a set of composite signatures over a domain tag and
// the RLP encoding of [address, timestamp]. Each accepted proof advances the
// account's authentication record, so a proof is usable once and never after
// a newer one. Wallets are reached through the bridge package, which runs a
// single request/response exchange over an asynchronous channel.
package walletauth

import (
	"context"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
)

// Client represents the public interface for interacting with the session service
type Client interface {
	// CreateChallenge returns a challenge token and the nonce to sign
	CreateChallenge(address string) (token, nonce string, err error)

	// Login verifies signatures over the challenge nonce and returns new tokens
	Login(ctx context.Context, challengeToken, address string, signatures []core.CompositeSignature) (*core.AuthResult, error)

	// AuthenticateProof verifies an account proof and returns new tokens
	AuthenticateProof(ctx context.Context, proof *core.AccountProof) (*core.AuthResult, error)

	// Refresh rotates the refresh token and returns new tokens
	Refresh(ctx context.Context, refreshToken string) (*core.AuthResult, error)

	// Logout invalidates the refresh token and the access tokens issued with it
	Logout(ctx context.Context, refreshToken string) error

	// ValidateAccessToken returns the session of a valid access token
	ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error)
}

var _ Client = (*service.AuthService)(nil)
