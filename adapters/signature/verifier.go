// Package signature verifies and produces composite signatures over account keys.
package signature

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// Verifier implements ports.SignatureVerifier against registered account keys
type Verifier struct {
	keys      ports.KeyResolver
	threshold int
}

// NewVerifier creates a verifier requiring core.FullWeight of valid keys
func NewVerifier(keys ports.KeyResolver) ports.SignatureVerifier {
	return &Verifier{
		keys:      keys,
		threshold: core.FullWeight,
	}
}

// VerifySignatures reports true when every signature is valid for a
// non-revoked key and the distinct keys together carry the full weight.
func (v *Verifier) VerifySignatures(ctx context.Context, message []byte, signatures []core.CompositeSignature) (bool, error) {
	if len(signatures) == 0 {
		return false, nil
	}

	weight := 0
	counted := make(map[string]bool, len(signatures))

	for _, sig := range signatures {
		key, err := v.keys.ResolveKey(ctx, sig.Address, sig.KeyID)
		if errors.Is(err, core.ErrKeyNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to resolve key %d of %s: %w", sig.KeyID, sig.Address, err)
		}
		if key.Revoked {
			return false, nil
		}

		raw, err := decodeHex(sig.Signature)
		if err != nil {
			return false, nil
		}

		ok, err := verifyWithKey(key, message, raw)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}

		id := fmt.Sprintf("%s/%d", key.Address, key.Index)
		if !counted[id] {
			counted[id] = true
			weight += key.Weight
		}
	}

	return weight >= v.threshold, nil
}
