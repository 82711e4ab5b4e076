package presign

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/payload"
)

// solanaDigest implements the Solana branch of pre_signing_hashes
// (§4.3): a v0 message wrapping a single System Program Transfer
// instruction. Ed25519 signs the message directly, so the "digest"
// handed to the MPC engine is the serialized, unsigned message bytes
// themselves, not a hash of them.
func solanaDigest(p payload.KeysignPayload) (Result, error) {
	spec := p.BlockchainSpecific.Solana
	if spec == nil {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "solana payload missing blockchain_specific.solana")
	}

	fromPub, err := solana.PublicKeyFromBase58(p.Coin.Address)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.InvalidAddress, err, "decoding from address %q", p.Coin.Address)
	}
	toPub, err := solana.PublicKeyFromBase58(p.ToAddress)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.InvalidAddress, err, "decoding to address %q", p.ToAddress)
	}

	lamports, err := parseUint64(p.ToAmount)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "parsing to_amount")
	}

	recentBlockhash := solana.HashFromBytes(spec.RecentBlockhash[:])

	instructions := []solana.Instruction{system.NewTransferInstruction(lamports, fromPub, toPub).Build()}
	if spec.PriorityFee > 0 {
		instructions = append([]solana.Instruction{computeUnitPriceInstruction(spec.PriorityFee)}, instructions...)
	}

	tx, err := solana.NewTransaction(instructions, recentBlockhash, solana.TransactionPayer(fromPub))
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "building solana message")
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "marshaling solana message")
	}

	return Result{UnsignedTx: msg, Digests: []Digest{Digest(msg)}}, nil
}

// computeBudgetProgramID is Solana's built-in ComputeBudget111... program.
var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// computeUnitPriceInstruction builds the ComputeBudget program's
// SetComputeUnitPrice instruction (discriminant 3, little-endian u64
// micro-lamports), matching the priority-fee convention the gateway
// example repo's buildSetComputeUnitLimitInstruction uses for its own
// compute-budget instruction.
func computeUnitPriceInstruction(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	for i := 0; i < 8; i++ {
		data[1+i] = byte(microLamports >> (8 * i))
	}
	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

func parseUint64(s string) (uint64, error) {
	n, err := parseInt64(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, coreerr.New(coreerr.MalformedPayload, "amount %q is negative", s)
	}
	return uint64(n), nil
}
