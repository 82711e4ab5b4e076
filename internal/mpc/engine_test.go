package mpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/sig"
)

// fakePrimitive drives a trivial two-round protocol: round 1 emits one
// outbound broadcast message, round 2 emits none (so the engine, after
// collecting round 2's inbound message, finalizes).
type fakePrimitive struct {
	roundOutCalls int32
	digests       [][]byte
}

func (f *fakePrimitive) NewSession(cfg PrimitiveConfig) (Handle, error) {
	f.digests = cfg.Digests
	return &struct{}{}, nil
}

func (f *fakePrimitive) RoundIn(h Handle, from string, body []byte) (RoundStep, error) {
	return RoundStep{RoundComplete: true}, nil
}

func (f *fakePrimitive) RoundOut(h Handle) ([]OutboundMessage, error) {
	call := atomic.AddInt32(&f.roundOutCalls, 1)
	if call == 1 {
		return []OutboundMessage{{Body: []byte("round-1-payload")}}, nil
	}
	return nil, nil
}

func (f *fakePrimitive) Finalize(h Handle) ([]sig.RawSignature, error) {
	sigs := make([]sig.RawSignature, len(f.digests))
	for i := range sigs {
		sigs[i] = sig.RawSignature{Format: sig.FormatEdDSA}
	}
	return sigs, nil
}

// singlePartyRelayServer backs a 1-of-1 session: the local party is the only
// expected participant, so the round loop never needs to fetch inbound
// peer messages (expectedPeerCount() == 0) and this only needs to
// accept the announce/join/post/complete calls the engine makes.
func singlePartyRelayServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/start/session-1", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]string{"party-1"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session-1", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/message/session-1", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/complete/session-1", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func TestEngine_FullSessionRoundTrip(t *testing.T) {
	hexKey := "00112233445566778899aabbccddeeff0011223344556677889900112233aa"[:32]
	srv := singlePartyRelayServer()
	defer srv.Close()

	primitive := &fakePrimitive{}
	engine := NewEngine(primitive, WithRelayBaseURL(srv.URL), WithJoinTimeout(2*time.Second), WithRoundTimeout(2*time.Second), WithSessionTimeout(5*time.Second))

	session, err := engine.Join(context.Background(), JoinConfig{
		SessionID:            "session-1",
		VaultID:              "vault-1",
		LocalPartyID:         "party-1",
		ExpectedParticipants: []string{"party-1"},
		Threshold:            1,
		HexEncryptionKey:     hexKey,
		Digests:              [][]byte{{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if session.State != Completed {
		t.Fatalf("expected Completed, got %v (abort reason: %v)", session.State, session.AbortReason)
	}
	if len(session.Signatures()) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(session.Signatures()))
	}
}

func TestEngine_ThresholdTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/session-1", func(w http.ResponseWriter, req *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/start/session-1", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]string{"party-1"}) // never reaches threshold 2
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	primitive := &fakePrimitive{}
	engine := NewEngine(primitive, WithRelayBaseURL(srv.URL), WithJoinTimeout(120*time.Millisecond))
	engine.joinPollInterval = 20 * time.Millisecond

	session, err := engine.Join(context.Background(), JoinConfig{
		SessionID:            "session-1",
		VaultID:              "vault-2",
		LocalPartyID:         "party-1",
		ExpectedParticipants: []string{"party-1", "party-2"},
		Threshold:            2,
		HexEncryptionKey:     "00112233445566778899aabbccddeeff0011223344556677889900112233aa"[:32],
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if session.State != Aborted {
		t.Fatalf("expected Aborted, got %v", session.State)
	}
	if !coreerr.Is(session.AbortReason, coreerr.ThresholdNotMet) {
		t.Fatalf("expected ThresholdNotMet, got %v", session.AbortReason)
	}
}

func TestVaultLocks_AtMostOneSessionPerVault(t *testing.T) {
	locks := newVaultLocks()
	if err := locks.acquire("vault-x"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := locks.acquire("vault-x"); !coreerr.Is(err, coreerr.VaultBusy) {
		t.Fatalf("expected VaultBusy on second acquire, got %v", err)
	}
	locks.release("vault-x")
	if err := locks.acquire("vault-x"); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

// twoRoundPrimitive drives a genuine two-party, two-round protocol: round
// N's message body is literally "rN", and RoundIn only accepts a message
// whose round tag matches the round the engine is currently driving
// (tracked by counting RoundOut calls, which happen exactly once per
// round) — anything else is a future round, returned as ErrFutureRound
// so the engine buffers it instead of applying it out of order.
type twoRoundPrimitive struct {
	digests [][]byte
	calls   int32
}

func (p *twoRoundPrimitive) NewSession(cfg PrimitiveConfig) (Handle, error) {
	p.digests = cfg.Digests
	return &struct{}{}, nil
}

func (p *twoRoundPrimitive) RoundOut(h Handle) ([]OutboundMessage, error) {
	call := atomic.AddInt32(&p.calls, 1)
	if call == 1 {
		return []OutboundMessage{{Body: []byte("r1")}}, nil
	}
	return nil, nil
}

func (p *twoRoundPrimitive) RoundIn(h Handle, from string, body []byte) (RoundStep, error) {
	want := fmt.Sprintf("r%d", atomic.LoadInt32(&p.calls))
	if string(body) != want {
		return RoundStep{}, ErrFutureRound
	}
	return RoundStep{RoundComplete: true}, nil
}

func (p *twoRoundPrimitive) Finalize(h Handle) ([]sig.RawSignature, error) {
	sigs := make([]sig.RawSignature, len(p.digests))
	for i := range sigs {
		sigs[i] = sig.RawSignature{Format: sig.FormatEdDSA}
	}
	return sigs, nil
}

// TestEngine_TolerantOfRelayReorderingDuplicationAndDroppedPolls exercises
// §8's relay-tolerance property: a relay that drops a poll attempt,
// delivers a later round's message before the current round's, and
// redelivers the same message (at-least-once semantics) must still let
// the session complete.
func TestEngine_TolerantOfRelayReorderingDuplicationAndDroppedPolls(t *testing.T) {
	hexKey := "00112233445566778899aabbccddeeff0011223344556677889900112233aa"[:32]

	seal := func(plaintext string) string {
		sealed, err := sealMessage(hexKey, []byte(plaintext))
		if err != nil {
			t.Fatalf("sealing fixture message: %v", err)
		}
		return base64.StdEncoding.EncodeToString(sealed)
	}
	round2Body := seal("r2")
	round1Body := seal("r1")

	var pollCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/start/session-2", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode([]string{"party-1", "party-2"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/session-2", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/message/session-2", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/complete/session-2", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/message/session-2/party-1", func(w http.ResponseWriter, req *http.Request) {
		switch atomic.AddInt32(&pollCalls, 1) {
		case 1:
			// Simulated dropped poll attempt: the engine must retry.
			w.WriteHeader(http.StatusInternalServerError)
		case 2:
			// Round 2's message arrives before round 1's (reordering),
			// redelivered once under the same seq (at-least-once
			// duplication) — the second copy must be deduped.
			_ = json.NewEncoder(w).Encode([]InboundMessage{
				{From: "party-2", Seq: 2, Body: round2Body},
				{From: "party-2", Seq: 2, Body: round2Body},
			})
		case 3:
			_ = json.NewEncoder(w).Encode([]InboundMessage{
				{From: "party-2", Seq: 1, Body: round1Body},
			})
		default:
			_ = json.NewEncoder(w).Encode([]InboundMessage{})
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	primitive := &twoRoundPrimitive{}
	engine := NewEngine(primitive,
		WithRelayBaseURL(srv.URL),
		WithJoinTimeout(2*time.Second),
		WithRoundTimeout(2*time.Second),
		WithSessionTimeout(5*time.Second),
	)
	engine.messagePollInterval = 10 * time.Millisecond

	session, err := engine.Join(context.Background(), JoinConfig{
		SessionID:            "session-2",
		VaultID:              "vault-2",
		LocalPartyID:         "party-1",
		ExpectedParticipants: []string{"party-1", "party-2"},
		Threshold:            2,
		HexEncryptionKey:     hexKey,
		Digests:              [][]byte{{9, 9, 9}},
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if session.State != Completed {
		t.Fatalf("expected Completed despite relay reordering/duplication/drop, got %v (abort reason: %v)", session.State, session.AbortReason)
	}
	if len(session.Signatures()) != 1 {
		t.Fatalf("expected 1 signature, got %d", len(session.Signatures()))
	}
	if calls := atomic.LoadInt32(&pollCalls); calls < 3 {
		t.Fatalf("expected at least 3 poll attempts (drop, reorder, resolve), got %d", calls)
	}
}

// TestEngine_AwaitReady_AbortsImmediatelyOnVaultBusy covers a relay
// that reports 409 Conflict while the engine is still polling for
// session-join participants: it must abort with VaultBusy on the
// first response instead of retrying maxPollRetries times and
// misreporting a NetworkError.
func TestEngine_AwaitReady_AbortsImmediatelyOnVaultBusy(t *testing.T) {
	var startCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/session-1", func(w http.ResponseWriter, req *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/start/session-1", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			atomic.AddInt32(&startCalls, 1)
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	primitive := &fakePrimitive{}
	engine := NewEngine(primitive, WithRelayBaseURL(srv.URL), WithJoinTimeout(2*time.Second))
	engine.joinPollInterval = 20 * time.Millisecond

	session, err := engine.Join(context.Background(), JoinConfig{
		SessionID:            "session-1",
		VaultID:              "vault-3",
		LocalPartyID:         "party-1",
		ExpectedParticipants: []string{"party-1", "party-2"},
		Threshold:            2,
		HexEncryptionKey:     "00112233445566778899aabbccddeeff0011223344556677889900112233aa"[:32],
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if session.State != Aborted {
		t.Fatalf("expected Aborted, got %v", session.State)
	}
	if !coreerr.Is(session.AbortReason, coreerr.VaultBusy) {
		t.Fatalf("expected VaultBusy, got %v", session.AbortReason)
	}
	if calls := atomic.LoadInt32(&startCalls); calls != 1 {
		t.Fatalf("expected exactly 1 participants call before aborting, got %d", calls)
	}
}

func TestSession_MarkSeen_DedupesDuplicateDeliveries(t *testing.T) {
	s := newSession("s", "v", "party-1", "", "", nil, 1, RoleJoiner)
	if !s.markSeen("party-2", 1) {
		t.Fatal("first delivery of seq 1 should be accepted")
	}
	if s.markSeen("party-2", 1) {
		t.Fatal("duplicate delivery of seq 1 should be rejected")
	}
	if !s.markSeen("party-2", 2) {
		t.Fatal("seq 2 should be accepted independently of seq 1")
	}
}
