package mpc

import (
	"errors"

	"github.com/vultforge/core/internal/sig"
)

// ErrFutureRound is returned by Primitive.RoundIn when a message's
// round number (tracked internally by the primitive) is ahead of the
// round the primitive is currently processing. The engine buffers such
// messages and replays them when it advances to the next round; a
// replayed message that is still ahead is buffered again for the round
// after that (§4.5.4: "the engine buffers messages whose declared
// round > current-round and delivers them on transition"). The engine
// does not filter out messages for a past round: every newly seen
// message reaches RoundIn, and any RoundIn error other than
// ErrFutureRound aborts the session with ProtocolErr.
var ErrFutureRound = errors.New("mpc: message is for a future round")

// PrimitiveConfig configures a new MPC session at the protocol-primitive
// level (§6 "WASM/crypto-primitive boundary"). SessionID and the party
// set are carried separately from the relay's own bookkeeping so a
// primitive implementation never needs relay knowledge.
type PrimitiveConfig struct {
	SessionID    string
	LocalPartyID string
	Parties      []string
	Threshold    int
	Digests      [][]byte
	KeyShare     []byte
}

// Handle is an opaque reference to a running primitive session; its
// only role is to be passed back into RoundIn/RoundOut/Finalize.
type Handle interface{}

// RoundStep reports what happened when a round of inbound messages was
// fed to the primitive.
type RoundStep struct {
	// RoundComplete is true once every inbound message expected for the
	// current round has been processed and the primitive is ready to
	// emit (or has already emitted, via RoundOut) round+1's outbound
	// messages.
	RoundComplete bool
	// Round is the round number this step advanced to.
	Round int
}

// OutboundMessage is a single message the primitive wants delivered to
// one or more peers, or broadcast when To is empty (§4.5.3).
type OutboundMessage struct {
	To   []string
	Body []byte
}

// Primitive is the black-box DKLS/GG20 implementation the engine
// drives (§6). A production embedder supplies a concrete
// implementation wrapping its own DKLS or GG20-legacy library; this
// module never imports one itself and only depends on this interface,
// exactly as §6 specifies: "these are reused black-box libraries."
type Primitive interface {
	// NewSession starts a primitive session for the given config and
	// returns a handle to it.
	NewSession(cfg PrimitiveConfig) (Handle, error)
	// RoundIn feeds one inbound message (already decrypted) to the
	// session and reports the resulting round state.
	RoundIn(h Handle, from string, body []byte) (RoundStep, error)
	// RoundOut drains outbound messages the primitive has queued for
	// the current round.
	RoundOut(h Handle) ([]OutboundMessage, error)
	// Finalize returns the normalized signature once the primitive has
	// completed every digest it was configured with, in the same order
	// as PrimitiveConfig.Digests.
	Finalize(h Handle) ([]sig.RawSignature, error)
}
