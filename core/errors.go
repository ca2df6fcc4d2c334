package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidChallenge = errors.New("invalid challenge")
	ErrChallengeUsed    = errors.New("challenge already used")

	ErrReplayedOrStaleTimestamp = errors.New("replayed or stale timestamp")
	ErrImplausibleTimestamp     = errors.New("implausible timestamp")
	ErrInvalidAddress           = errors.New("invalid account address")
	ErrMalformedProof           = errors.New("malformed account proof")
	ErrDomainTagTooLong         = errors.New("domain tag exceeds 32 bytes")
	ErrKeyNotFound              = errors.New("account key not found")
	ErrUnsupportedAlgorithm     = errors.New("unsupported algorithm")

	ErrDeclined         = errors.New("declined")
	ErrExternallyHalted = errors.New("Externally Halted")
)

// NoReasonSupplied is the decline reason used when the wallet gives none
const NoReasonSupplied = "No reason supplied"

// DeclinedError is returned when the wallet service declines a request.
// It matches ErrDeclined with errors.Is.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	return "declined: " + e.Reason
}

func (e *DeclinedError) Is(target error) bool {
	return target == ErrDeclined
}

// Declined builds a DeclinedError, substituting the default reason for an empty one
func Declined(reason string) error {
	if reason == "" {
		reason = NoReasonSupplied
	}
	return &DeclinedError{Reason: reason}
}
