// Package coreerr defines the flat error taxonomy shared by every core
// component. Each boundary returns one of these kinds wrapped with
// context instead of a bespoke error type, so callers can branch on
// kind without importing package internals.
package coreerr

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy discriminant. Values group by origin: validation
// errors never retry, transport errors retry within a round, protocol
// and crypto errors are always session-terminal.
type Kind string

const (
	// Validation
	InvalidAddress     Kind = "invalid_address"
	MalformedPayload   Kind = "malformed_payload"
	UnsupportedChain   Kind = "unsupported_chain"
	UnhardenedPathOnly Kind = "unhardened_path_only"
	InvalidPublicKey   Kind = "invalid_public_key"

	// State
	NotEnoughFunds   Kind = "not_enough_funds"
	MissingChainField Kind = "missing_chain_field"
	QuoteExpired     Kind = "quote_expired"
	VaultBusy        Kind = "vault_busy"

	// Transport
	NetworkError Kind = "network_error"
	Timeout      Kind = "timeout"

	// Protocol
	ProtocolErr      Kind = "protocol_error"
	UnexpectedParty  Kind = "unexpected_party"
	ThresholdNotMet  Kind = "threshold_not_met"

	// Crypto
	SignatureVerificationFailed Kind = "signature_verification_failed"

	// Cancelled
	Cancelled Kind = "cancelled"
)

// Error is the concrete error type every boundary returns. Context
// fields are optional and only populated where meaningful (Round/Peer
// only ever appear on Protocol-kind errors).
type Error struct {
	Kind      Kind
	Message   string
	SessionID string
	VaultID   string
	Round     int
	Peer      string
	Cause     error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.SessionID != "" {
		s += fmt.Sprintf(" (session=%s)", e.SessionID)
	}
	if e.Peer != "" {
		s += fmt.Sprintf(" (peer=%s round=%d)", e.Peer, e.Round)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare error of the given kind.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithSession annotates an error with session/vault context. It returns
// a new *Error so call sites can chain: `return coreerr.WithSession(err, sid, vid)`.
func WithSession(err *Error, sessionID, vaultID string) *Error {
	e := *err
	e.SessionID = sessionID
	e.VaultID = vaultID
	return &e
}

// WithRound annotates a Protocol-kind error with the round and peer it
// happened against.
func WithRound(err *Error, round int, peer string) *Error {
	e := *err
	e.Round = round
	e.Peer = peer
	return &e
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
