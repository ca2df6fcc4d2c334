package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/proof"
	"go.uber.org/zap"
)

// minInvalidationTTL is the shortest time a logged out session stays blocked
const minInvalidationTTL = time.Hour

// AuthService logs accounts in from account proofs or signed challenges and
// manages the resulting sessions.
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	records   ports.RecordStore
	verifier  *proof.Verifier
	eventPub  ports.EventPublisher
	logger    *zap.Logger
	clock     clock.Clock

	domainTag    string
	challengeTTL time.Duration
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

// Option configures an AuthService
type Option func(*AuthService)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *AuthService) {
		s.logger = logger
	}
}

// WithClock sets the clock sessions and challenges are stamped with
func WithClock(c clock.Clock) Option {
	return func(s *AuthService) {
		s.clock = c
	}
}

// WithDomainTag sets the domain tag account proofs must be signed under
func WithDomainTag(tag string) Option {
	return func(s *AuthService) {
		s.domainTag = tag
	}
}

// WithTTLs overrides the challenge, access and refresh token lifetimes
func WithTTLs(challenge, access, refresh time.Duration) Option {
	return func(s *AuthService) {
		s.challengeTTL = challenge
		s.accessTTL = access
		s.refreshTTL = refresh
	}
}

// NewAuthService creates an AuthService. Account proofs are checked by
// verifier against the records kept in records.
func NewAuthService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	records ports.RecordStore,
	verifier *proof.Verifier,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		tokenizer:    tokenizer,
		store:        store,
		records:      records,
		verifier:     verifier,
		eventPub:     eventPub,
		logger:       zap.NewNop(),
		clock:        clock.New(),
		challengeTTL: 5 * time.Minute,
		accessTTL:    5 * time.Minute,
		refreshTTL:   120 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DomainTag returns the domain tag account proofs are verified under
func (s *AuthService) DomainTag() string {
	return s.domainTag
}

// CreateChallenge generates a new single-use challenge for address. It
// returns the challenge token and the hex nonce the wallet has to sign.
func (s *AuthService) CreateChallenge(address string) (string, string, error) {
	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	issued := s.clock.Now()
	challenge := &core.Challenge{
		ID:        uuid.New().String(),
		Address:   addr,
		Nonce:     hex.EncodeToString(nonce),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(s.challengeTTL),
	}

	token, err := s.tokenizer.ChallengeToToken(challenge)
	if err != nil {
		return "", "", fmt.Errorf("failed to create token: %w", err)
	}

	return token, challenge.Nonce, nil
}

// Login authenticates a user using their signed challenge. The challenge
// can be used once.
func (s *AuthService) Login(ctx context.Context, challengeToken, address string, signatures []core.CompositeSignature) (*core.AuthResult, error) {
	challenge, err := s.tokenizer.TokenToChallenge(challengeToken)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge token: %w", err)
	}

	addr, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if addr != challenge.Address {
		return nil, fmt.Errorf("address mismatch: %w", core.ErrInvalidChallenge)
	}

	nonce, err := hex.DecodeString(challenge.Nonce)
	if err != nil {
		return nil, fmt.Errorf("malformed nonce: %w", core.ErrInvalidChallenge)
	}

	if err := s.verifier.VerifyMessage(ctx, addr, nonce, signatures); err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	consumed, err := s.store.ConsumeToken(ctx, challenge.ID, challenge.ExpiresAt.Sub(s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		return nil, core.ErrChallengeUsed
	}

	return s.issueTokens(addr)
}

// AuthenticateProof verifies an account proof against the stored record of
// its address, advances the record and issues session tokens.
func (s *AuthService) AuthenticateProof(ctx context.Context, p *core.AccountProof) (*core.AuthResult, error) {
	if p == nil {
		return nil, core.ErrMalformedProof
	}

	previous, err := s.records.GetRecord(ctx, p.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to load authentication record: %w", err)
	}

	accepted, err := s.verifier.Verify(ctx, p, s.domainTag, previous)
	if err != nil {
		return nil, err
	}

	// A concurrent login for the same address may have advanced the record
	// since it was loaded; the store rejects the stale write.
	if err := s.records.AdvanceRecord(ctx, accepted.Record()); err != nil {
		return nil, fmt.Errorf("failed to store authentication record: %w", err)
	}

	if err := s.eventPub.PublishAuthenticated(ctx, accepted.Address, accepted.Timestamp); err != nil {
		s.logger.Warn("failed to publish authenticated event",
			zap.String("address", accepted.Address), zap.Error(err))
	}

	return s.issueTokens(accepted.Address)
}

// issueTokens starts a new session for address
func (s *AuthService) issueTokens(address string) (*core.AuthResult, error) {
	issued := s.clock.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		Address:       address,
		IssuedAt:      issued,
		AccessExpiry:  issued.Add(s.accessTTL),
		RefreshExpiry: issued.Add(s.refreshTTL),
		RefreshID:     uuid.New().String(),
	}

	access, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	refresh, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &core.AuthResult{
		Address:      address,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.accessTTL,
	}, nil
}

// Refresh exchanges a refresh token for a new session. Each refresh token
// is accepted once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*core.AuthResult, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	if s.clock.Now().After(session.RefreshExpiry) {
		return nil, core.ErrTokenExpired
	}

	consumed, err := s.store.ConsumeToken(ctx, session.RefreshID, session.RefreshExpiry.Sub(s.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if !consumed {
		return nil, core.ErrTokenInvalidated
	}

	return s.issueTokens(session.Address)
}

// Logout invalidates a refresh token and every access token of its session
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshToken)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	ttl := session.RefreshExpiry.Sub(s.clock.Now())
	if ttl < minInvalidationTTL {
		ttl = minInvalidationTTL
	}
	if err := s.store.InvalidateToken(ctx, session.RefreshID, ttl); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.RefreshID); err != nil {
		s.logger.Warn("failed to publish logout event",
			zap.String("address", session.Address), zap.Error(err))
	}
	return nil
}

// ValidateAccessToken returns the session of accessToken. Access tokens of
// a logged out session are rejected with core.ErrTokenInvalidated.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if errors.Is(err, core.ErrTokenExpired) {
		return nil, core.ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if s.clock.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID == "" {
		return session, nil
	}
	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return nil, fmt.Errorf("failed to check session state: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}
	return session, nil
}
