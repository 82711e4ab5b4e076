// Package mpc implements the MPC Session Engine (§4.5): the session
// lifecycle state machine, the relay wire protocol client, per-message
// AES-GCM encryption, and the polling/backoff/cancellation semantics
// that drive a DKLS/GG20 signing ceremony to completion.
package mpc

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vultforge/core/internal/coreerr"
)

// Default timing constants (§4.5.2, §4.5.4).
const (
	DefaultJoinPollInterval    = 1 * time.Second
	DefaultJoinTimeout         = 120 * time.Second
	DefaultMessagePollInterval = 250 * time.Millisecond
	DefaultRoundTimeout        = 60 * time.Second
	DefaultSessionTimeout      = 300 * time.Second
	DefaultMaxPollRetries      = 5
)

// Engine drives sessions against a relay and a Primitive. One Engine
// can run many concurrent sessions across different vaults (§4.5.1);
// it enforces at-most-one-active-session-per-vault via its lock
// registry.
type Engine struct {
	relay     *RelayClient
	primitive Primitive
	logger    *zap.Logger
	locks     *vaultLocks

	cancelMu sync.Mutex
	cancels  map[string]func()
	canceled map[string]bool

	joinPollInterval    time.Duration
	joinTimeout         time.Duration
	messagePollInterval time.Duration
	roundTimeout        time.Duration
	sessionTimeout      time.Duration
	maxPollRetries      int
}

// Option configures an Engine at construction (§9 "constructor options
// on mpc.Engine", matching the teacher's flag-driven configuration
// style without introducing a config file format).
type Option func(*Engine)

func WithRelayBaseURL(url string) Option {
	return func(e *Engine) { e.relay = NewRelayClient(url, nil) }
}

func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		base := DefaultRelayBaseURL
		if e.relay != nil {
			base = e.relay.baseURL
		}
		e.relay = NewRelayClient(base, c)
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithJoinTimeout(d time.Duration) Option    { return func(e *Engine) { e.joinTimeout = d } }
func WithRoundTimeout(d time.Duration) Option   { return func(e *Engine) { e.roundTimeout = d } }
func WithSessionTimeout(d time.Duration) Option { return func(e *Engine) { e.sessionTimeout = d } }

// NewEngine builds an Engine against primitive with the §4.5 defaults,
// adjustable via Option.
func NewEngine(primitive Primitive, opts ...Option) *Engine {
	e := &Engine{
		relay:               NewRelayClient(DefaultRelayBaseURL, nil),
		primitive:           primitive,
		logger:              zap.NewNop(),
		locks:               newVaultLocks(),
		cancels:             make(map[string]func()),
		canceled:            make(map[string]bool),
		joinPollInterval:    DefaultJoinPollInterval,
		joinTimeout:         DefaultJoinTimeout,
		messagePollInterval: DefaultMessagePollInterval,
		roundTimeout:        DefaultRoundTimeout,
		sessionTimeout:      DefaultSessionTimeout,
		maxPollRetries:      DefaultMaxPollRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitiateConfig bundles the parameters of an initiate() call (§4.5.2
// Idle→Announced).
type InitiateConfig struct {
	SessionID            string
	VaultID              string
	LocalPartyID         string
	ExpectedParticipants []string
	Threshold            int
	HexEncryptionKey     string
	Digests              [][]byte
	KeyShare             []byte
}

// Initiate acquires the vault lock, announces the session to the relay,
// and runs it to completion (Idle → Announced → … → Completed/Aborted).
// The returned Session reflects the terminal state; err is non-nil only
// for failures that prevented the session from reaching a terminal
// state at all (acquiring the lock, the initial relay POST).
func (e *Engine) Initiate(ctx context.Context, cfg InitiateConfig) (*Session, error) {
	if err := e.locks.acquire(cfg.VaultID); err != nil {
		return nil, err
	}

	s := newSession(cfg.SessionID, cfg.VaultID, cfg.LocalPartyID, cfg.HexEncryptionKey, e.relay.baseURL, cfg.ExpectedParticipants, cfg.Threshold, RoleInitiator)
	log := e.logger.With(zap.String("session_id", s.SessionID), zap.String("vault_id", s.VaultID))

	if err := e.relay.Start(ctx, s.SessionID, cfg.ExpectedParticipants); err != nil {
		e.locks.release(cfg.VaultID)
		return nil, err
	}
	s.State = Announced
	log.Info("session announced", zap.Strings("expected", cfg.ExpectedParticipants))

	return e.run(ctx, s, cfg.Digests, cfg.KeyShare, log)
}

// JoinConfig bundles the parameters of a join() call (§4.5.2 Idle→Announced→Joining).
type JoinConfig struct {
	SessionID            string
	VaultID              string
	LocalPartyID         string
	ExpectedParticipants []string
	Threshold            int
	HexEncryptionKey     string
	Digests              [][]byte
	KeyShare             []byte
}

// Join posts this party's id to an already-announced session and runs
// it to completion, same terminal contract as Initiate.
func (e *Engine) Join(ctx context.Context, cfg JoinConfig) (*Session, error) {
	if err := e.locks.acquire(cfg.VaultID); err != nil {
		return nil, err
	}

	s := newSession(cfg.SessionID, cfg.VaultID, cfg.LocalPartyID, cfg.HexEncryptionKey, e.relay.baseURL, cfg.ExpectedParticipants, cfg.Threshold, RoleJoiner)
	log := e.logger.With(zap.String("session_id", s.SessionID), zap.String("vault_id", s.VaultID))
	s.State = Announced

	if err := e.relay.Join(ctx, s.SessionID, s.LocalPartyID); err != nil {
		e.locks.release(cfg.VaultID)
		return nil, err
	}
	s.State = Joining
	log.Info("joined session")

	return e.run(ctx, s, cfg.Digests, cfg.KeyShare, log)
}

// run drives a session from Joining/Announced through to a terminal
// state, always releasing the vault lock on the way out.
func (e *Engine) run(ctx context.Context, s *Session, digests [][]byte, keyShare []byte, log *zap.Logger) (*Session, error) {
	defer e.locks.release(s.VaultID)

	sessionCtx, cancel := context.WithTimeout(ctx, e.sessionTimeout)
	e.registerCancel(s.SessionID, cancel)
	defer func() {
		cancel()
		e.deregisterCancel(s.SessionID)
	}()

	if s.Role == RoleInitiator {
		s.State = Joining
	}
	if err := e.awaitReady(sessionCtx, s, log); err != nil {
		s.State = Aborted
		s.AbortReason = e.classifyAbort(s.SessionID, err)
		return s, nil
	}
	s.State = Ready
	log.Info("session ready", zap.Int("joined", len(s.JoinedParticipants)))

	if err := e.driveRounds(sessionCtx, s, digests, keyShare, log); err != nil {
		s.State = Aborted
		s.AbortReason = e.classifyAbort(s.SessionID, err)
		if coreerr.Is(s.AbortReason, coreerr.Cancelled) {
			bestEffortCtx, bcancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = e.relay.Complete(bestEffortCtx, s.SessionID)
			bcancel()
		}
		return s, nil
	}

	s.State = Completed
	_ = e.relay.Complete(ctx, s.SessionID)
	log.Info("session completed")
	return s, nil
}

// Cancel implements §4.5.4's local cancel(): it transitions the named
// session to Aborted(Cancelled) at its next await point. In-flight
// network calls are allowed to finish.
func (e *Engine) Cancel(sessionID string) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	e.canceled[sessionID] = true
	if cancel, ok := e.cancels[sessionID]; ok {
		cancel()
	}
}

func (e *Engine) registerCancel(sessionID string, cancel func()) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	e.cancels[sessionID] = cancel
}

func (e *Engine) deregisterCancel(sessionID string) {
	e.cancelMu.Lock()
	defer e.cancelMu.Unlock()
	delete(e.cancels, sessionID)
	delete(e.canceled, sessionID)
}

// classifyAbort distinguishes a user-requested Cancel from a plain
// context-deadline Timeout, since both surface as ctx.Done() to the
// poll loops below.
func (e *Engine) classifyAbort(sessionID string, err error) error {
	e.cancelMu.Lock()
	canceled := e.canceled[sessionID]
	e.cancelMu.Unlock()
	if canceled && coreerr.Is(err, coreerr.Timeout) {
		return coreerr.New(coreerr.Cancelled, "session cancelled")
	}
	return err
}

// awaitReady implements §4.5.2's Joining→Ready transition: poll the
// relay at joinPollInterval until |joined| ≥ threshold and the local
// party is among them, or joinTimeout elapses.
func (e *Engine) awaitReady(ctx context.Context, s *Session, log *zap.Logger) error {
	deadline := time.Now().Add(e.joinTimeout)
	ticker := time.NewTicker(e.joinPollInterval)
	defer ticker.Stop()

	var errs error
	attempt := 0
	for {
		if time.Now().After(deadline) {
			return coreerr.New(coreerr.ThresholdNotMet, "join timeout after %s waiting for threshold %d", e.joinTimeout, s.Threshold)
		}
		joined, err := e.relay.Participants(ctx, s.SessionID)
		if err != nil {
			if coreerr.Is(err, coreerr.VaultBusy) || coreerr.Is(err, coreerr.ProtocolErr) {
				return err
			}
			errs = multierr.Append(errs, err)
			attempt++
			if attempt > e.maxPollRetries {
				return coreerr.Wrap(coreerr.NetworkError, errs, "exhausted retries polling participants")
			}
			select {
			case <-ctx.Done():
				return coreerr.New(coreerr.Timeout, "session context done while awaiting ready")
			case <-time.After(pollBackoff(attempt, e.joinPollInterval)):
				continue
			}
		}
		attempt = 0

		s.JoinedParticipants = make(map[string]struct{})
		localJoined := false
		for _, p := range joined {
			if s.isUnexpectedParty(p) {
				return coreerr.New(coreerr.UnexpectedParty, "party %q is not in expected_participants", p)
			}
			s.JoinedParticipants[p] = struct{}{}
			if p == s.LocalPartyID {
				localJoined = true
			}
		}
		if len(s.JoinedParticipants) >= s.Threshold && localJoined {
			return nil
		}

		select {
		case <-ctx.Done():
			return coreerr.New(coreerr.Timeout, "session context done while awaiting ready")
		case <-ticker.C:
			log.Debug("awaiting threshold", zap.Int("joined", len(s.JoinedParticipants)), zap.Int("threshold", s.Threshold))
		}
	}
}
