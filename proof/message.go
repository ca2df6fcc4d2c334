// Package proof builds and verifies account-ownership proofs.
package proof

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/layer-3/walletauth/core"
)

// DomainTagLength is the fixed width of the domain tag prefix
const DomainTagLength = 32

// signedPayload is RLP encoded as the list [address, timestamp]
type signedPayload struct {
	Address   []byte
	Timestamp uint64
}

// BuildMessage returns the bytes a wallet signs to prove control of address
// at timestamp: the domain tag right-padded with zeros to 32 bytes, followed
// by the RLP encoding of [address, timestamp].
func BuildMessage(address string, timestamp int64, domainTag string) ([]byte, error) {
	if len(domainTag) > DomainTagLength {
		return nil, core.ErrDomainTagTooLong
	}
	if timestamp < 0 {
		return nil, fmt.Errorf("%w: negative timestamp", core.ErrImplausibleTimestamp)
	}

	addr, err := core.DecodeAddress(address)
	if err != nil {
		return nil, err
	}

	encoded, err := rlp.EncodeToBytes(signedPayload{
		Address:   addr,
		Timestamp: uint64(timestamp),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof message: %w", err)
	}

	msg := make([]byte, DomainTagLength, DomainTagLength+len(encoded))
	copy(msg, domainTag)
	return append(msg, encoded...), nil
}
