package mpc

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vultforge/core/internal/coreerr"
)

// driveRounds implements §4.5.2's Ready→Round(1)→…→Committing→Completed
// path: start the primitive session, repeatedly fan out its outbound
// messages and feed it inbound ones until Finalize yields a signature
// for every digest.
func (e *Engine) driveRounds(ctx context.Context, s *Session, digests [][]byte, keyShare []byte, log *zap.Logger) error {
	parties := make([]string, 0, len(s.JoinedParticipants))
	for p := range s.JoinedParticipants {
		parties = append(parties, p)
	}

	handle, err := e.primitive.NewSession(PrimitiveConfig{
		SessionID:    s.SessionID,
		LocalPartyID: s.LocalPartyID,
		Parties:      parties,
		Threshold:    s.Threshold,
		Digests:      digests,
		KeyShare:     keyShare,
	})
	if err != nil {
		return coreerr.Wrap(coreerr.ProtocolErr, err, "starting primitive session")
	}
	s.handle = handle
	s.State = RoundActive
	s.round = 1

	buffered := map[int][]InboundMessage{}

	for {
		roundCtx, cancelRound := context.WithTimeout(ctx, e.roundTimeout)

		out, err := e.primitive.RoundOut(handle)
		if err != nil {
			cancelRound()
			return coreerr.Wrap(coreerr.ProtocolErr, err, "draining outbound messages")
		}
		for _, m := range out {
			sealed, err := sealMessage(s.HexEncryptionKey, m.Body)
			if err != nil {
				cancelRound()
				return err
			}
			if err := e.relay.PostMessage(ctx, s.SessionID, s.LocalPartyID, m.To, sealed); err != nil {
				cancelRound()
				return err
			}
		}

		complete, err := e.applyBufferedAndPoll(roundCtx, s, buffered)
		cancelRound()
		if err != nil {
			return err
		}
		if !complete {
			continue
		}

		if len(out) == 0 {
			break
		}
		s.round++
	}

	s.State = Committing
	sigs, err := e.primitive.Finalize(handle)
	if err != nil {
		return coreerr.Wrap(coreerr.SignatureVerificationFailed, err, "finalizing session")
	}
	s.signatures = sigs
	log.Info("session committed", zap.Int("signatures", len(sigs)))
	return nil
}

// applyBufferedAndPoll replays any messages buffered from a previous
// round's early arrival, then polls the relay until expectedPeerCount
// messages for the current round have been applied. It returns true
// once the round is complete.
func (e *Engine) applyBufferedAndPoll(ctx context.Context, s *Session, buffered map[int][]InboundMessage) (bool, error) {
	expected := s.expectedPeerCount()
	applied := s.received[s.round]
	if applied == nil {
		applied = make(map[string]struct{})
		s.received[s.round] = applied
	}

	for _, m := range buffered[s.round] {
		e.tryApply(s, m, applied, buffered)
	}
	delete(buffered, s.round)

	if len(applied) >= expected {
		return true, nil
	}

	var errs error
	attempt := 0
	for {
		msgs, err := e.relay.Messages(ctx, s.SessionID, s.LocalPartyID)
		if err != nil {
			if coreerr.Is(err, coreerr.VaultBusy) || coreerr.Is(err, coreerr.ProtocolErr) {
				return false, err
			}
			errs = multierr.Append(errs, err)
			attempt++
			if attempt > e.maxPollRetries {
				return false, coreerr.Wrap(coreerr.NetworkError, errs, "exhausted retries polling messages")
			}
			select {
			case <-ctx.Done():
				return false, timeoutOrCancel(ctx)
			case <-time.After(pollBackoff(attempt, e.messagePollInterval)):
				continue
			}
		}
		attempt = 0

		for _, wire := range msgs {
			if !s.markSeen(wire.From, wire.Seq) {
				continue // at-least-once delivery: duplicate, already applied
			}
			body, err := base64.StdEncoding.DecodeString(wire.Body)
			if err != nil {
				return false, coreerr.Wrap(coreerr.MalformedPayload, err, "decoding relay message body")
			}
			plaintext, err := openMessage(s.HexEncryptionKey, body)
			if err != nil {
				return false, err
			}
			ok, perr := e.applyOrBuffer(s, wire.From, plaintext, buffered)
			if perr != nil {
				return false, coreerr.WithRound(perr, s.round, wire.From)
			}
			if ok {
				applied[wire.From] = struct{}{}
			}
		}

		if len(applied) >= expected {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, timeoutOrCancel(ctx)
		case <-time.After(e.messagePollInterval):
		}
	}
}

// applyOrBuffer feeds a decrypted message to the primitive; a message
// declared for a future round (ErrFutureRound) is buffered instead of
// applied (§4.5.4). A non-nil *coreerr.Error return means the
// primitive genuinely rejected the message (§4.5.6 Protocol errors).
func (e *Engine) applyOrBuffer(s *Session, from string, plaintext []byte, buffered map[int][]InboundMessage) (bool, *coreerr.Error) {
	_, err := e.primitive.RoundIn(s.handle, from, plaintext)
	if err != nil {
		if errors.Is(err, ErrFutureRound) {
			buffered[s.round+1] = append(buffered[s.round+1], InboundMessage{From: from, Body: base64.StdEncoding.EncodeToString(plaintext)})
			return false, nil
		}
		return false, coreerr.Wrap(coreerr.ProtocolErr, err, "primitive rejected message")
	}
	return true, nil
}

// tryApply replays a previously-buffered message now that its round
// has arrived; a message the primitive still reports as ahead
// (ErrFutureRound) is buffered again for the following round.
func (e *Engine) tryApply(s *Session, m InboundMessage, applied map[string]struct{}, buffered map[int][]InboundMessage) {
	body, err := base64.StdEncoding.DecodeString(m.Body)
	if err != nil {
		return
	}
	_, err = e.primitive.RoundIn(s.handle, m.From, body)
	switch {
	case err == nil:
		applied[m.From] = struct{}{}
	case errors.Is(err, ErrFutureRound):
		buffered[s.round+1] = append(buffered[s.round+1], m)
	}
}

func timeoutOrCancel(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return coreerr.New(coreerr.Timeout, "session context cancelled")
	}
	return coreerr.New(coreerr.Timeout, "round timed out")
}
