package ports

import (
	"context"

	"github.com/layer-3/walletauth/core"
)

// Signer produces composite signatures over a message
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]core.CompositeSignature, error)
}

// SignatureVerifier checks composite signatures over a message
type SignatureVerifier interface {
	VerifySignatures(ctx context.Context, message []byte, signatures []core.CompositeSignature) (bool, error)
}
