package mpc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vultforge/core/internal/coreerr"
)

// DefaultRelayBaseURL is the relay the engine talks to when no
// override is supplied (§4.5.3).
const DefaultRelayBaseURL = "https://api.vultisig.com/router"

// RelayClient implements the wire protocol of §4.5.3 against a relay
// server. It performs no retry/backoff itself — that policy lives in
// the engine's poll loop (§4.5.4) so it can be shared across the
// participant-discovery and message-fanout endpoints uniformly.
type RelayClient struct {
	baseURL string
	http    *http.Client
}

// NewRelayClient builds a client against baseURL (or DefaultRelayBaseURL
// if empty) using httpClient (or http.DefaultClient if nil).
func NewRelayClient(baseURL string, httpClient *http.Client) *RelayClient {
	if baseURL == "" {
		baseURL = DefaultRelayBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RelayClient{baseURL: baseURL, http: httpClient}
}

// relayMessage is the wire shape of POST /message/{session_id} (§4.5.3).
type relayMessage struct {
	From string   `json:"from"`
	To   []string `json:"to,omitempty"`
	Body string   `json:"body"`
}

// Start announces a session with its expected participants (initiator
// only): POST /start/{session_id}.
func (c *RelayClient) Start(ctx context.Context, sessionID string, participants []string) error {
	return c.postJSON(ctx, fmt.Sprintf("/start/%s", sessionID), participants)
}

// Join posts this party's id to the session: POST /{session_id}.
func (c *RelayClient) Join(ctx context.Context, sessionID, partyID string) error {
	return c.postJSON(ctx, "/"+sessionID, []string{partyID})
}

// Participants fetches the currently joined participant ids: GET /start/{session_id}.
func (c *RelayClient) Participants(ctx context.Context, sessionID string) ([]string, error) {
	var joined []string
	if err := c.getJSON(ctx, fmt.Sprintf("/start/%s", sessionID), &joined); err != nil {
		return nil, err
	}
	return joined, nil
}

// PostMessage sends an already-sealed ciphertext to the relay,
// addressed to `to` (broadcast when to is empty).
func (c *RelayClient) PostMessage(ctx context.Context, sessionID, from string, to []string, sealedBody []byte) error {
	msg := relayMessage{From: from, To: to, Body: base64.StdEncoding.EncodeToString(sealedBody)}
	return c.postJSON(ctx, fmt.Sprintf("/message/%s", sessionID), msg)
}

// InboundMessage is one entry of GET /message/{session_id}/{party}.
type InboundMessage struct {
	From string `json:"from"`
	Seq  int    `json:"seq"`
	Body string `json:"body"`
}

// Messages fetches pending messages addressed to party. Delivery is
// at-least-once; callers dedupe by (session_id, from, seq) per §4.5.3.
func (c *RelayClient) Messages(ctx context.Context, sessionID, party string) ([]InboundMessage, error) {
	var msgs []InboundMessage
	if err := c.getJSON(ctx, fmt.Sprintf("/message/%s/%s", sessionID, party), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Complete marks the session done (best-effort on cancellation per §4.5.4).
func (c *RelayClient) Complete(ctx context.Context, sessionID string) error {
	return c.postJSON(ctx, fmt.Sprintf("/complete/%s", sessionID), nil)
}

// CompleteKeysign submits the final signature payload, used by the
// fast-vault server to learn the result (§4.5.3).
func (c *RelayClient) CompleteKeysign(ctx context.Context, sessionID string, payload interface{}) error {
	return c.postJSON(ctx, fmt.Sprintf("/complete/%s/keysign", sessionID), payload)
}

func (c *RelayClient) postJSON(ctx context.Context, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return coreerr.Wrap(coreerr.MalformedPayload, err, "marshalling relay request")
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return coreerr.Wrap(coreerr.NetworkError, err, "building relay request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *RelayClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return coreerr.Wrap(coreerr.NetworkError, err, "building relay request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return coreerr.Wrap(coreerr.NetworkError, err, "calling relay")
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *RelayClient) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return coreerr.Wrap(coreerr.NetworkError, err, "calling relay")
	}
	defer resp.Body.Close()
	return classifyStatus(resp.StatusCode)
}

// classifyStatus implements §6's "non-2xx responses other than 404 are
// retriable; 409 is fatal for the calling session" and §4.5.5's "409
// Conflict -> VaultBusy".
func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusConflict:
		return coreerr.New(coreerr.VaultBusy, "relay reports a session already active for this vault")
	case code == http.StatusNotFound:
		return coreerr.New(coreerr.ProtocolErr, "relay returned 404")
	default:
		return coreerr.New(coreerr.NetworkError, "relay returned status %d", code)
	}
}

// pollBackoff implements §4.5.4's exponential backoff schedule: starts
// at the base interval and doubles on each retry up to a 2s cap.
func pollBackoff(attempt int, base time.Duration) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > 2*time.Second {
			return 2 * time.Second
		}
	}
	return d
}
