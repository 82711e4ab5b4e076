package mpc

import (
	"sync"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/payload"
	"github.com/vultforge/core/internal/presign"
	"github.com/vultforge/core/internal/sig"
)

// State is the session lifecycle's discriminant (§4.5.2).
type State int

const (
	Idle State = iota
	Announced
	Joining
	Ready
	RoundActive
	Committing
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Announced:
		return "Announced"
	case Joining:
		return "Joining"
	case Ready:
		return "Ready"
	case RoundActive:
		return "Round"
	case Committing:
		return "Committing"
	case Completed:
		return "Completed"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Role distinguishes the party that announced the session from one
// that joined it (§3).
type Role int

const (
	RoleInitiator Role = iota
	RoleJoiner
)

// Session is the transient per-signing-ceremony object (§3). Only
// Signatures() takes mu; the engine updates the other fields, State
// included, from the session's own goroutine without it, and callers
// read exported fields such as State directly once Initiate or Join
// has returned.
type Session struct {
	mu sync.Mutex

	SessionID          string
	HexEncryptionKey   string
	RelayBaseURL       string
	VaultID            string
	LocalPartyID       string
	Threshold          int
	ExpectedParticipants []string
	JoinedParticipants map[string]struct{}
	Payload            payload.KeysignPayload
	Digests            []presign.Digest
	Scheme             chain.Scheme
	Role               Role
	State              State
	AbortReason        error

	round       int
	handle      Handle
	received    map[int]map[string]struct{} // round -> set of from-party already applied
	seenSeq     map[string]map[int]struct{} // from-party -> set of seq already applied
	signatures  []sig.RawSignature
}

func newSession(id, vaultID, localPartyID, hexKey, relayBaseURL string, expected []string, threshold int, role Role) *Session {
	return &Session{
		SessionID:            id,
		VaultID:              vaultID,
		LocalPartyID:         localPartyID,
		HexEncryptionKey:     hexKey,
		RelayBaseURL:         relayBaseURL,
		ExpectedParticipants: expected,
		Threshold:            threshold,
		Role:                 role,
		State:                Idle,
		JoinedParticipants:   make(map[string]struct{}),
		received:             make(map[int]map[string]struct{}),
		seenSeq:              make(map[string]map[int]struct{}),
	}
}

func (s *Session) markSeen(from string, seq int) bool {
	set, ok := s.seenSeq[from]
	if !ok {
		set = make(map[int]struct{})
		s.seenSeq[from] = set
	}
	if _, dup := set[seq]; dup {
		return false
	}
	set[seq] = struct{}{}
	return true
}

func (s *Session) expectedPeerCount() int {
	// Every expected participant other than the local party must
	// contribute one message per round.
	n := 0
	for _, p := range s.ExpectedParticipants {
		if p != s.LocalPartyID {
			n++
		}
	}
	return n
}

func (s *Session) isUnexpectedParty(partyID string) bool {
	for _, p := range s.ExpectedParticipants {
		if p == partyID {
			return false
		}
	}
	return true
}

// Signatures returns the finalized, per-digest raw signatures once the
// session has reached Completed.
func (s *Session) Signatures() []sig.RawSignature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sig.RawSignature{}, s.signatures...)
}
