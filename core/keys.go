package core

// SigAlgo identifies the signature algorithm of an account key
type SigAlgo string

const (
	SigAlgoECDSAP256      SigAlgo = "ECDSA_P256"
	SigAlgoECDSASecp256k1 SigAlgo = "ECDSA_secp256k1"
	SigAlgoEd25519        SigAlgo = "Ed25519"
)

// HashAlgo identifies the hash applied to a message before signing
type HashAlgo string

const (
	HashAlgoSHA2_256   HashAlgo = "SHA2_256"
	HashAlgoSHA3_256   HashAlgo = "SHA3_256"
	HashAlgoKeccak_256 HashAlgo = "KECCAK_256"
)

// FullWeight is the combined key weight required to act for an account
const FullWeight = 1000

// AccountKey is a public key registered on an account
type AccountKey struct {
	Address   string   `json:"address"`
	Index     int      `json:"index"`
	PublicKey string   `json:"publicKey"` // hex for ECDSA keys, base58 for Ed25519
	SigAlgo   SigAlgo  `json:"sigAlgo"`
	HashAlgo  HashAlgo `json:"hashAlgo"`
	Weight    int      `json:"weight"`
	Revoked   bool     `json:"revoked"`
}
