package core

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DecodeAddress decodes a hex account address, with or without 0x prefix
func DecodeAddress(address string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(address), "0x"), "0X")
	if raw == "" {
		return nil, ErrInvalidAddress
	}
	decoded, err := hexutil.Decode("0x" + raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return decoded, nil
}

// NormalizeAddress returns the canonical 0x-prefixed lowercase form of address
func NormalizeAddress(address string) (string, error) {
	decoded, err := DecodeAddress(address)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(decoded), nil
}
