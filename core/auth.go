package core

import "time"

// Challenge represents a fallback-mode authentication challenge
type Challenge struct {
	ID        string    // Unique identifier for the challenge
	Address   string    // Account address the challenge was issued for
	Nonce     string    // Random nonce to be signed
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge expires
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Unique session identifier
	Address       string    // Account address of the user
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// CompositeSignature is a signature paired with the account and key that produced it
type CompositeSignature struct {
	Address   string `json:"addr"`
	KeyID     int    `json:"keyId"`
	Signature string `json:"signature"` // hex encoded
}

// AccountProof is a signed claim that the holder controls Address at Timestamp
type AccountProof struct {
	Address    string               `json:"address"`
	Timestamp  int64                `json:"timestamp"` // milliseconds since epoch
	DomainTag  string               `json:"domainTag,omitempty"`
	Signatures []CompositeSignature `json:"signatures"`
}

// AuthenticationRecord is the last accepted proof timestamp of an account
type AuthenticationRecord struct {
	Address               string `json:"address"`
	LastAcceptedTimestamp int64  `json:"lastAcceptedTimestamp"`
}

// AcceptedProof is returned by a successful proof verification. The caller
// persists it as the new AuthenticationRecord.
type AcceptedProof struct {
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
}

// Record converts the accepted proof into the record that must be stored
func (p AcceptedProof) Record() AuthenticationRecord {
	return AuthenticationRecord{
		Address:               p.Address,
		LastAcceptedTimestamp: p.Timestamp,
	}
}

// AuthResult is the outcome of a successful login
type AuthResult struct {
	Address      string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
