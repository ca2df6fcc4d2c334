package proof

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const (
	// DefaultMaxAge is how far in the past a proof timestamp may lie
	DefaultMaxAge = 10 * time.Minute

	// DefaultMaxSkew is how far in the future a proof timestamp may lie
	DefaultMaxSkew = time.Minute
)

// Verifier checks account proofs. It holds no state of its own: the previous
// record is passed in and the accepted proof is handed back to the caller.
type Verifier struct {
	signatures ports.SignatureVerifier
	clock      clock.Clock
	maxAge     time.Duration
	maxSkew    time.Duration
}

// Option configures a Verifier
type Option func(*Verifier)

// WithClock sets the clock used for the plausibility window
func WithClock(c clock.Clock) Option {
	return func(v *Verifier) {
		v.clock = c
	}
}

// WithWindow sets the plausibility window around the current time
func WithWindow(maxAge, maxSkew time.Duration) Option {
	return func(v *Verifier) {
		v.maxAge = maxAge
		v.maxSkew = maxSkew
	}
}

// NewVerifier creates a new proof verifier
func NewVerifier(signatures ports.SignatureVerifier, opts ...Option) *Verifier {
	v := &Verifier{
		signatures: signatures,
		clock:      clock.New(),
		maxAge:     DefaultMaxAge,
		maxSkew:    DefaultMaxSkew,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates proof against the previously accepted record of the same
// address (nil if there is none). The proof's own DomainTag field is not
// trusted; the message is rebuilt with the verifier-side domainTag.
func (v *Verifier) Verify(
	ctx context.Context,
	proof *core.AccountProof,
	domainTag string,
	previous *core.AuthenticationRecord,
) (*core.AcceptedProof, error) {
	if proof == nil {
		return nil, core.ErrInvalidSignature
	}

	address, err := core.NormalizeAddress(proof.Address)
	if err != nil {
		return nil, err
	}

	if previous != nil && proof.Timestamp <= previous.LastAcceptedTimestamp {
		return nil, core.ErrReplayedOrStaleTimestamp
	}

	if !v.plausible(proof.Timestamp) {
		return nil, core.ErrImplausibleTimestamp
	}

	msg, err := BuildMessage(address, proof.Timestamp, domainTag)
	if err != nil {
		return nil, err
	}

	if err := v.VerifyMessage(ctx, address, msg, proof.Signatures); err != nil {
		return nil, err
	}

	return &core.AcceptedProof{
		Address:   address,
		Timestamp: proof.Timestamp,
	}, nil
}

// VerifyMessage checks that signatures by address cover message. It is used
// directly in challenge mode, where message is a random single-use nonce.
func (v *Verifier) VerifyMessage(ctx context.Context, address string, message []byte, signatures []core.CompositeSignature) error {
	if len(signatures) == 0 {
		return fmt.Errorf("no signatures: %w", core.ErrInvalidSignature)
	}

	want, err := core.NormalizeAddress(address)
	if err != nil {
		return err
	}
	for _, sig := range signatures {
		got, err := core.NormalizeAddress(sig.Address)
		if err != nil || got != want {
			return fmt.Errorf("signature by foreign account %q: %w", sig.Address, core.ErrInvalidSignature)
		}
	}

	ok, err := v.signatures.VerifySignatures(ctx, message, signatures)
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	if !ok {
		return core.ErrInvalidSignature
	}

	return nil
}

func (v *Verifier) plausible(timestamp int64) bool {
	now := v.clock.Now()
	ts := time.UnixMilli(timestamp)
	return !ts.Before(now.Add(-v.maxAge)) && !ts.After(now.Add(v.maxSkew))
}
