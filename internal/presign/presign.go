// Package presign implements the Pre-signing Hash Generator: lowering a
// resolved payload.KeysignPayload into the chain's canonical
// unsigned-transaction bytes and the exact digest(s) an MPC session must
// sign. It is pure — no I/O, no randomness — and table-driven per
// chain.Family the same way the teacher's chain-string tables dispatch
// address and fee logic.
package presign

import (
	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/payload"
)

// Digest is one 32-byte (or, for EdDSA message signing, arbitrary
// length) value the MPC engine must produce a signature over.
type Digest []byte

// Result is the output of pre_signing_hashes: the serialized unsigned
// transaction plus the ordered digest set to sign against it.
type Result struct {
	UnsignedTx []byte
	Digests    []Digest
}

// Generate implements pre_signing_hashes (§4.3). When the payload
// carries an erc20_approve_payload, the approve's digests are emitted
// as a separate prior Result so the caller signs them in the same
// session before the main payload (S5). The approve takes the payload's
// EVM nonce and the main transaction is built with nonce+1.
func Generate(p payload.KeysignPayload) ([]Result, error) {
	var results []Result

	if p.ERC20ApprovePayload != nil {
		approveResult, err := generateERC20Approve(p)
		if err != nil {
			return nil, err
		}
		results = append(results, approveResult)
		if evm := p.BlockchainSpecific.EVM; evm != nil {
			bumped := *evm
			bumped.Nonce++
			p.BlockchainSpecific.EVM = &bumped
		}
	}

	main, err := generateOne(p)
	if err != nil {
		return nil, err
	}
	results = append(results, main)
	return results, nil
}

func generateOne(p payload.KeysignPayload) (Result, error) {
	// A general swap with a provider-built transaction is signed
	// verbatim: the provider already encoded data/value/gas, so the
	// generator only needs to hash exactly that (§4.3 decision table).
	if p.SwapPayload != nil && p.SwapPayload.General != nil {
		return generalSwapDigest(p)
	}

	switch p.Coin.Chain.Family {
	case chain.FamilyEVM:
		return evmDigest(p)
	case chain.FamilyUTXO:
		return utxoDigests(p)
	case chain.FamilyCosmos, chain.FamilyThorchain, chain.FamilyMayachain:
		return cosmosDigest(p)
	case chain.FamilySolana:
		return solanaDigest(p)
	case chain.FamilySui:
		return suiDigest(p)
	case chain.FamilyRipple:
		return rippleDigest(p)
	default:
		return Result{}, coreerr.New(coreerr.UnsupportedChain, "pre_signing_hashes not implemented for family %d", p.Coin.Chain.Family)
	}
}
