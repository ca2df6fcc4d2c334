package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/layer-3/walletauth/core"
	"golang.org/x/crypto/sha3"
)

// digest hashes msg with the key's hash algorithm
func digest(algo core.HashAlgo, msg []byte) ([]byte, error) {
	switch algo {
	case core.HashAlgoSHA2_256:
		sum := sha256.Sum256(msg)
		return sum[:], nil
	case core.HashAlgoSHA3_256:
		sum := sha3.Sum256(msg)
		return sum[:], nil
	case core.HashAlgoKeccak_256:
		return crypto.Keccak256(msg), nil
	default:
		return nil, fmt.Errorf("%w: hash %q", core.ErrUnsupportedAlgorithm, algo)
	}
}

// verifyWithKey reports whether sig is a valid signature of msg by key.
// Malformed keys and signatures are reported as invalid, unknown algorithms
// as an error.
func verifyWithKey(key *core.AccountKey, msg, sig []byte) (bool, error) {
	switch key.SigAlgo {
	case core.SigAlgoEd25519:
		pub, err := solana.PublicKeyFromBase58(key.PublicKey)
		if err != nil || len(sig) != 64 {
			return false, nil
		}
		return solana.SignatureFromBytes(sig).Verify(pub, msg), nil

	case core.SigAlgoECDSAP256:
		hash, err := digest(key.HashAlgo, msg)
		if err != nil {
			return false, err
		}
		pub, err := parseP256PublicKey(key.PublicKey)
		if err != nil || len(sig) != 64 {
			return false, nil
		}
		r := new(big.Int).SetBytes(sig[:32])
		s := new(big.Int).SetBytes(sig[32:])
		return ecdsa.Verify(pub, hash, r, s), nil

	case core.SigAlgoECDSASecp256k1:
		hash, err := digest(key.HashAlgo, msg)
		if err != nil {
			return false, err
		}
		pub, err := parseSecp256k1PublicKey(key.PublicKey)
		if err != nil || (len(sig) != 64 && len(sig) != 65) {
			return false, nil
		}
		return crypto.VerifySignature(pub, hash, sig[:64]), nil

	default:
		return false, fmt.Errorf("%w: signature %q", core.ErrUnsupportedAlgorithm, key.SigAlgo)
	}
}

// parseP256PublicKey accepts X||Y, optionally with the 0x04 prefix
func parseP256PublicKey(encoded string) (*ecdsa.PublicKey, error) {
	raw, err := decodeHex(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) == 65 && raw[0] == 0x04 {
		raw = raw[1:]
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("P-256 public key must be 64 bytes, got %d", len(raw))
	}
	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(raw[:32]),
		Y:     new(big.Int).SetBytes(raw[32:]),
	}, nil
}

// parseSecp256k1PublicKey returns the 65 byte uncompressed encoding expected
// by crypto.VerifySignature. Compressed, X||Y and 0x04-prefixed forms are accepted.
func parseSecp256k1PublicKey(encoded string) ([]byte, error) {
	raw, err := decodeHex(encoded)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case 33:
		pub, err := crypto.DecompressPubkey(raw)
		if err != nil {
			return nil, err
		}
		return crypto.FromECDSAPub(pub), nil
	case 64:
		raw = append([]byte{0x04}, raw...)
	}
	pub, err := crypto.UnmarshalPubkey(raw)
	if err != nil {
		return nil, err
	}
	return crypto.FromECDSAPub(pub), nil
}

func decodeHex(s string) ([]byte, error) {
	if len(s) < 2 || (s[:2] != "0x" && s[:2] != "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}
