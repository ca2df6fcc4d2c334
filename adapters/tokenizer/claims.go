package tokenizer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/core"
)

// Issuer is set on every token and required when parsing
const Issuer = "walletauth"

func registeredClaims(subject, id, audience string, issuedAt, expiry time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   subject,
		ID:        id,
		ExpiresAt: jwt.NewNumericDate(expiry),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		Audience:  jwt.ClaimStrings{audience},
	}
}

// ChallengeClaims carry a fallback-mode challenge
type ChallengeClaims struct {
	jwt.RegisteredClaims
	Nonce string `json:"nonce"`
}

func newChallengeClaims(c *core.Challenge) *ChallengeClaims {
	return &ChallengeClaims{
		RegisteredClaims: registeredClaims(c.Address, c.ID, AudienceChallenge, c.IssuedAt, c.ExpiresAt),
		Nonce:            c.Nonce,
	}
}

func (c *ChallengeClaims) challenge() *core.Challenge {
	return &core.Challenge{
		ID:        c.ID,
		Address:   c.Subject,
		Nonce:     c.Nonce,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}
}

// AccessClaims carry a session and the refresh token it was issued with
type AccessClaims struct {
	jwt.RegisteredClaims
	RefreshID string `json:"rid"`
}

func newAccessClaims(s *core.Session) *AccessClaims {
	return &AccessClaims{
		RegisteredClaims: registeredClaims(s.Address, s.ID, AudienceAccess, s.IssuedAt, s.AccessExpiry),
		RefreshID:        s.RefreshID,
	}
}

func (c *AccessClaims) session() *core.Session {
	return &core.Session{
		ID:           c.ID,
		Address:      c.Subject,
		IssuedAt:     c.IssuedAt.Time,
		AccessExpiry: c.ExpiresAt.Time,
		RefreshID:    c.RefreshID,
	}
}

// RefreshClaims use the refresh id as the token id
type RefreshClaims struct {
	jwt.RegisteredClaims
}

func newRefreshClaims(s *core.Session) *RefreshClaims {
	return &RefreshClaims{
		RegisteredClaims: registeredClaims(s.Address, s.RefreshID, AudienceRefresh, s.IssuedAt, s.RefreshExpiry),
	}
}

// session returns the refresh part of the session; access fields stay zero
func (c *RefreshClaims) session() *core.Session {
	return &core.Session{
		Address:       c.Subject,
		IssuedAt:      c.IssuedAt.Time,
		RefreshExpiry: c.ExpiresAt.Time,
		RefreshID:     c.ID,
	}
}
