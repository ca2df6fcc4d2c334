package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const (
	AudienceChallenge = "session:challenge"
	AudienceAccess    = "session:access"
	AudienceRefresh   = "session:refresh"
)

// JWTTokenizer implements the Tokenizer interface using ES256 signed JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	clock   clock.Clock
}

// Option configures a JWTTokenizer
type Option func(*JWTTokenizer)

// WithClock sets the clock token expiry is checked against
func WithClock(c clock.Clock) Option {
	return func(j *JWTTokenizer) {
		j.clock = c
	}
}

// NewJWTTokenizer creates a tokenizer signing with signKey
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, opts ...Option) ports.Tokenizer {
	j := &JWTTokenizer{signKey: signKey, clock: clock.New()}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// ChallengeToToken converts a Challenge to a JWT token
func (j *JWTTokenizer) ChallengeToToken(challenge *core.Challenge) (string, error) {
	return j.sign("challenge", newChallengeClaims(challenge))
}

// TokenToChallenge converts a JWT token to a Challenge
func (j *JWTTokenizer) TokenToChallenge(tokenStr string) (*core.Challenge, error) {
	claims := &ChallengeClaims{}
	if err := j.parse("challenge", tokenStr, claims, AudienceChallenge); err != nil {
		return nil, err
	}
	return claims.challenge(), nil
}

// SessionToAccessToken converts a Session to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	return j.sign("access", newAccessClaims(session))
}

// SessionToRefreshToken converts a Session to a refresh JWT token
func (j *JWTTokenizer) SessionToRefreshToken(session *core.Session) (string, error) {
	return j.sign("refresh", newRefreshClaims(session))
}

// AccessTokenToSession parses an access token and returns the associated session
func (j *JWTTokenizer) AccessTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &AccessClaims{}
	if err := j.parse("access", tokenStr, claims, AudienceAccess); err != nil {
		return nil, err
	}
	return claims.session(), nil
}

// RefreshTokenToSession parses a refresh token. Only the refresh fields of
// the returned session are set.
func (j *JWTTokenizer) RefreshTokenToSession(tokenStr string) (*core.Session, error) {
	claims := &RefreshClaims{}
	if err := j.parse("refresh", tokenStr, claims, AudienceRefresh); err != nil {
		return nil, err
	}
	return claims.session(), nil
}

func (j *JWTTokenizer) sign(kind string, claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (j *JWTTokenizer) parse(kind, tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc,
		jwt.WithAudience(audience),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("failed to parse %s token: %w", kind, core.ErrTokenExpired)
		}
		return fmt.Errorf("failed to parse %s token: %w: %v", kind, core.ErrInvalidToken, err)
	}
	if !token.Valid {
		return core.ErrInvalidToken
	}
	return nil
}

// keyFunc validates the signing method and returns the verification key
func (j *JWTTokenizer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return &j.signKey.PublicKey, nil
}
