// Package coresdk is the public facade over the signing core: deriving
// addresses, building payloads, generating pre-signing digests, driving
// an MPC session to a signature, and assembling the result into a
// chain-ready encoding. It exists so an embedding application depends
// on one stable import instead of every internal package directly,
// mirroring the teacher's pkg/client thin-delegation shape.
package coresdk

import (
	"context"
	"encoding/hex"
	"io"

	"go.uber.org/zap"

	"github.com/vultforge/core/internal/address"
	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/chaindata"
	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/derive"
	"github.com/vultforge/core/internal/mpc"
	"github.com/vultforge/core/internal/payload"
	"github.com/vultforge/core/internal/presign"
	"github.com/vultforge/core/internal/sig"
	"github.com/vultforge/core/internal/vaultcore"
)

// SDK bundles the components a caller needs to go from an intent
// (send/swap/deposit) to a broadcastable signed transaction. All
// fields below mirror §6's External Interfaces: chaindata.Source and
// the MPC primitive are injected, never constructed here.
type SDK struct {
	Builder *payload.Builder
	Store   vaultcore.VaultStore
	Engine  *mpc.Engine

	derive            *derive.Cache
	logger            *zap.Logger
	pendingEngineOpts []mpc.Option
}

// Option configures an SDK at construction.
type Option func(*SDK)

func WithLogger(l *zap.Logger) Option {
	return func(s *SDK) { s.logger = l }
}

// WithEngineOptions forwards options to the underlying mpc.Engine
// construction (relay URL, timeouts, HTTP client).
func WithEngineOptions(opts ...mpc.Option) Option {
	return func(s *SDK) { s.pendingEngineOpts = append(s.pendingEngineOpts, opts...) }
}

// NewSDK wires a Source, a VaultStore, and an MPC Primitive into one
// facade. primitive may be nil for callers that only need
// derive/address/payload/presign (no signing).
func NewSDK(source chaindata.Source, store vaultcore.VaultStore, primitive mpc.Primitive, opts ...Option) *SDK {
	s := &SDK{
		Builder: payload.NewBuilder(source),
		Store:   store,
		derive:  derive.NewCache(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if primitive != nil {
		engineOpts := append([]mpc.Option{mpc.WithLogger(s.logger)}, s.pendingEngineOpts...)
		s.Engine = mpc.NewEngine(primitive, engineOpts...)
	}
	return s
}

// DeriveAddress resolves chainName via the chain registry and derives
// the chain's public key from the vault's root key, returning the
// resulting on-chain address (§4.1, §4.2). For ECDSA chains the root
// key is walked down path; for EdDSA chains path is not used: Solana
// and Sui use the root key itself and other EdDSA chains use tweak
// index 0.
func (s *SDK) DeriveAddress(v *vaultcore.Vault, chainName, path string) (string, error) {
	d, err := chain.Lookup(chainName)
	if err != nil {
		return "", err
	}

	var pub []byte
	switch d.Scheme {
	case chain.ECDSA:
		rootPub, err := hex.DecodeString(v.PublicKeys.ECDSA)
		if err != nil {
			return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "decoding vault ECDSA public key")
		}
		chainCode, err := hex.DecodeString(v.HexChainCode)
		if err != nil {
			return "", coreerr.Wrap(coreerr.MalformedPayload, err, "decoding vault chain code")
		}
		key, err := s.derive.DeriveECDSA(rootPub, chainCode, path)
		if err != nil {
			return "", err
		}
		pub = key.CompressedPub
	case chain.EdDSA:
		rootPub, err := hex.DecodeString(v.PublicKeys.EdDSA)
		if err != nil {
			return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "decoding vault EdDSA public key")
		}
		chainCode, err := hex.DecodeString(v.HexChainCode)
		if err != nil {
			return "", coreerr.Wrap(coreerr.MalformedPayload, err, "decoding vault chain code")
		}
		singleKey := d.Family == chain.FamilySolana || d.Family == chain.FamilySui
		key, err := s.derive.DeriveEdDSA(rootPub, chainCode, 0, singleKey)
		if err != nil {
			return "", err
		}
		pub = key.CompressedPub
	}

	return address.Derive(pub, d)
}

// PreSign lowers a resolved KeysignPayload to its unsigned-transaction
// bytes and digest set (§4.3).
func (s *SDK) PreSign(p payload.KeysignPayload) ([]presign.Result, error) {
	return presign.Generate(p)
}

// SigningRequest bundles a relay session identity with the digests a
// caller wants signed in that one session (S5: an approve's digests
// followed by the swap's, signed together).
type SigningRequest struct {
	SessionID            string
	VaultID              string
	LocalPartyID         string
	ExpectedParticipants []string
	Threshold            int
	HexEncryptionKey     string
	Results              []presign.Result
	KeyShare             []byte
	Initiator            bool
}

// SignedResult pairs one presign.Result with its assembled, per-digest
// chain-ready signature encodings, in digest order.
type SignedResult struct {
	UnsignedTx []byte
	Signatures [][]byte
}

// Sign drives the MPC session to completion and assembles every
// digest's raw signature into its chain encoding (§4.4/§4.5 combined).
// The returned []SignedResult has one entry per presign.Result in
// req.Results, in order — so an approve-then-swap session (S5) yields
// two independently-usable signed outputs.
func (s *SDK) Sign(ctx context.Context, req SigningRequest, family chain.Family) ([]SignedResult, error) {
	if s.Engine == nil {
		return nil, coreerr.New(coreerr.MalformedPayload, "SDK was constructed without an MPC primitive")
	}

	var digests [][]byte
	for _, r := range req.Results {
		for _, d := range r.Digests {
			digests = append(digests, []byte(d))
		}
	}

	var session *mpc.Session
	var err error
	if req.Initiator {
		session, err = s.Engine.Initiate(ctx, mpc.InitiateConfig{
			SessionID:            req.SessionID,
			VaultID:              req.VaultID,
			LocalPartyID:         req.LocalPartyID,
			ExpectedParticipants: req.ExpectedParticipants,
			Threshold:            req.Threshold,
			HexEncryptionKey:     req.HexEncryptionKey,
			Digests:              digests,
			KeyShare:             req.KeyShare,
		})
	} else {
		session, err = s.Engine.Join(ctx, mpc.JoinConfig{
			SessionID:            req.SessionID,
			VaultID:              req.VaultID,
			LocalPartyID:         req.LocalPartyID,
			ExpectedParticipants: req.ExpectedParticipants,
			Threshold:            req.Threshold,
			HexEncryptionKey:     req.HexEncryptionKey,
			Digests:              digests,
			KeyShare:             req.KeyShare,
		})
	}
	if err != nil {
		return nil, err
	}
	if session.State != mpc.Completed {
		return nil, session.AbortReason
	}

	raws := session.Signatures()
	if len(raws) != len(digests) {
		return nil, coreerr.New(coreerr.SignatureVerificationFailed, "expected %d signatures, got %d", len(digests), len(raws))
	}

	out := make([]SignedResult, len(req.Results))
	idx := 0
	for i, r := range req.Results {
		out[i].UnsignedTx = r.UnsignedTx
		for range r.Digests {
			normalized := sig.Normalize(raws[idx])
			encoded, err := sig.EncodeForChain(normalized, family)
			if err != nil {
				return nil, err
			}
			out[i].Signatures = append(out[i].Signatures, encoded)
			idx++
		}
	}
	return out, nil
}

// VaultSummary is a read-only snapshot of a vault's ceremony metadata,
// safe to log or display without touching key share bytes.
type VaultSummary struct {
	Name      string
	VaultID   string
	LibType   string
	Threshold int
	Signers   []string
}

// Summarize implements the introspection surface a wallet UI needs to
// show "this vault is a 2-of-3 DKLS vault with signers A, B, C" without
// exposing KeyShares.
func Summarize(v *vaultcore.Vault) VaultSummary {
	return VaultSummary{
		Name:      v.Name,
		VaultID:   v.VaultID(),
		LibType:   v.LibType.String(),
		Threshold: v.Threshold,
		Signers:   append([]string{}, v.Signers...),
	}
}

// WriteResult serializes data as JSON or YAML to out, generalizing the
// teacher's internal/util.OutputResult into a library-safe function
// (no os.Exit, no CLI-specific error strings).
func WriteResult(data interface{}, format string, out io.Writer) error {
	switch format {
	case "json":
		return writeJSON(data, out)
	case "yaml":
		return writeYAML(data, out)
	default:
		return coreerr.New(coreerr.MalformedPayload, "unsupported output format %q", format)
	}
}
