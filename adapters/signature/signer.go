package signature

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// KeySpec describes a private account key as stored in a keys file
type KeySpec struct {
	Address    string        `json:"address"`
	Index      int           `json:"index"`
	SigAlgo    core.SigAlgo  `json:"sigAlgo"`
	HashAlgo   core.HashAlgo `json:"hashAlgo"`
	Weight     int           `json:"weight"`
	PrivateKey string        `json:"privateKey"` // hex for ECDSA keys, base58 for Ed25519
}

// LocalKey is a private account key held in process
type LocalKey struct {
	address  string
	index    int
	sigAlgo  core.SigAlgo
	hashAlgo core.HashAlgo
	weight   int

	ecdsaKey *ecdsa.PrivateKey
	edKey    solana.PrivateKey
}

// GenerateKey creates a fresh random key for the account
func GenerateKey(address string, index int, sigAlgo core.SigAlgo, hashAlgo core.HashAlgo, weight int) (*LocalKey, error) {
	k := &LocalKey{
		address:  address,
		index:    index,
		sigAlgo:  sigAlgo,
		hashAlgo: hashAlgo,
		weight:   weight,
	}

	var err error
	switch sigAlgo {
	case core.SigAlgoECDSAP256:
		k.ecdsaKey, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case core.SigAlgoECDSASecp256k1:
		k.ecdsaKey, err = crypto.GenerateKey()
	case core.SigAlgoEd25519:
		k.edKey, err = solana.NewRandomPrivateKey()
	default:
		return nil, fmt.Errorf("%w: signature %q", core.ErrUnsupportedAlgorithm, sigAlgo)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	return k, nil
}

// ErrInvalidPrivateKey is returned for private keys that cannot be used to sign
var ErrInvalidPrivateKey = errors.New("invalid private key")

// ParseP256PrivateKey builds a P-256 key from its 32 byte big-endian scalar,
// which must lie in [1, N-1].
func ParseP256PrivateKey(raw []byte) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	if len(raw) != 32 {
		return nil, fmt.Errorf("%w: P-256 scalar must be 32 bytes, got %d", ErrInvalidPrivateKey, len(raw))
	}
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("%w: P-256 scalar out of range", ErrInvalidPrivateKey)
	}

	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = curve
	priv.X, priv.Y = curve.ScalarBaseMult(raw)
	return priv, nil
}

// KeyFromSpec loads a private key described by spec
func KeyFromSpec(spec KeySpec) (*LocalKey, error) {
	k := &LocalKey{
		address:  spec.Address,
		index:    spec.Index,
		sigAlgo:  spec.SigAlgo,
		hashAlgo: spec.HashAlgo,
		weight:   spec.Weight,
	}

	switch spec.SigAlgo {
	case core.SigAlgoECDSAP256:
		raw, err := decodeHex(spec.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: P-256: %v", ErrInvalidPrivateKey, err)
		}
		priv, err := ParseP256PrivateKey(raw)
		if err != nil {
			return nil, err
		}
		k.ecdsaKey = priv
	case core.SigAlgoECDSASecp256k1:
		raw, err := decodeHex(spec.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: secp256k1: %v", ErrInvalidPrivateKey, err)
		}
		priv, err := crypto.ToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: secp256k1: %v", ErrInvalidPrivateKey, err)
		}
		k.ecdsaKey = priv
	case core.SigAlgoEd25519:
		priv, err := solana.PrivateKeyFromBase58(spec.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid Ed25519 private key: %w", err)
		}
		k.edKey = priv
	default:
		return nil, fmt.Errorf("%w: signature %q", core.ErrUnsupportedAlgorithm, spec.SigAlgo)
	}

	return k, nil
}

// Spec returns the serializable form of the key, private part included
func (k *LocalKey) Spec() KeySpec {
	spec := KeySpec{
		Address:  k.address,
		Index:    k.index,
		SigAlgo:  k.sigAlgo,
		HashAlgo: k.hashAlgo,
		Weight:   k.weight,
	}
	if k.sigAlgo == core.SigAlgoEd25519 {
		spec.PrivateKey = k.edKey.String()
	} else {
		spec.PrivateKey = hexutil.Encode(k.ecdsaKey.D.FillBytes(make([]byte, 32)))
	}
	return spec
}

// AccountKey returns the public account key to register for verification
func (k *LocalKey) AccountKey() core.AccountKey {
	key := core.AccountKey{
		Address:  k.address,
		Index:    k.index,
		SigAlgo:  k.sigAlgo,
		HashAlgo: k.hashAlgo,
		Weight:   k.weight,
	}

	switch k.sigAlgo {
	case core.SigAlgoEd25519:
		key.PublicKey = k.edKey.PublicKey().String()
	default:
		xy := make([]byte, 64)
		k.ecdsaKey.X.FillBytes(xy[:32])
		k.ecdsaKey.Y.FillBytes(xy[32:])
		key.PublicKey = hexutil.Encode(xy)
	}
	return key
}

// SignRaw returns the raw signature bytes of msg
func (k *LocalKey) SignRaw(msg []byte) ([]byte, error) {
	switch k.sigAlgo {
	case core.SigAlgoEd25519:
		sig, err := k.edKey.Sign(msg)
		if err != nil {
			return nil, err
		}
		return sig[:], nil

	case core.SigAlgoECDSAP256:
		hash, err := digest(k.hashAlgo, msg)
		if err != nil {
			return nil, err
		}
		r, s, err := ecdsa.Sign(rand.Reader, k.ecdsaKey, hash)
		if err != nil {
			return nil, err
		}
		sig := make([]byte, 64)
		r.FillBytes(sig[:32])
		s.FillBytes(sig[32:])
		return sig, nil

	case core.SigAlgoECDSASecp256k1:
		hash, err := digest(k.hashAlgo, msg)
		if err != nil {
			return nil, err
		}
		sig, err := crypto.Sign(hash, k.ecdsaKey)
		if err != nil {
			return nil, err
		}
		return sig[:64], nil

	default:
		return nil, fmt.Errorf("%w: signature %q", core.ErrUnsupportedAlgorithm, k.sigAlgo)
	}
}

// Sign returns the composite signature of msg by this key
func (k *LocalKey) Sign(msg []byte) (core.CompositeSignature, error) {
	raw, err := k.SignRaw(msg)
	if err != nil {
		return core.CompositeSignature{}, fmt.Errorf("failed to sign with key %d of %s: %w", k.index, k.address, err)
	}
	return core.CompositeSignature{
		Address:   k.address,
		KeyID:     k.index,
		Signature: hexutil.Encode(raw),
	}, nil
}

// LocalSigner implements ports.Signer with in-process keys
type LocalSigner struct {
	keys []*LocalKey
}

// NewLocalSigner creates a signer that signs with every given key
func NewLocalSigner(keys ...*LocalKey) ports.Signer {
	return &LocalSigner{keys: keys}
}

// Sign signs message with each key in order
func (s *LocalSigner) Sign(ctx context.Context, message []byte) ([]core.CompositeSignature, error) {
	if len(s.keys) == 0 {
		return nil, fmt.Errorf("no signing keys configured")
	}

	sigs := make([]core.CompositeSignature, 0, len(s.keys))
	for _, k := range s.keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig, err := k.Sign(message)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}
