// Package sig implements the Signature Assembler (§4.4): normalizing
// raw MPC signature shares into canonical on-chain encodings. Embedding
// those encodings into a signed transaction is not done in this package.
package sig

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/coreerr"
)

// Format distinguishes the two schemes a RawSignature can carry.
type Format int

const (
	FormatECDSA Format = iota
	FormatEdDSA
)

// RawSignature is the MPC engine's raw signature share (§3). For
// ECDSA, RecoveryID is resolved by Normalize before assembly; for
// EdDSA, R and S together are the 64-byte (R, S) pair.
type RawSignature struct {
	R          [32]byte
	S          [32]byte
	RecoveryID *byte
	Format     Format
}

// secp256k1N is the curve order, used for low-s normalization.
var secp256k1N = secp256k1.S256().N

// secp256k1HalfN is n/2, the low-s threshold (EIP-2 / BIP-62).
var secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)

// Normalize applies low-s canonicalization (§4.4, §8 property 6): if
// s > n/2, replace s with n-s and flip the recovery id's low bit.
// Idempotent — applying it twice yields the same result as once, since
// the second call observes s already ≤ n/2 and leaves it untouched.
func Normalize(raw RawSignature) RawSignature {
	if raw.Format != FormatECDSA {
		return raw
	}
	s := new(big.Int).SetBytes(raw.S[:])
	if s.Cmp(secp256k1HalfN) <= 0 {
		return raw
	}
	normS := new(big.Int).Sub(secp256k1N, s)

	out := raw
	var buf [32]byte
	normS.FillBytes(buf[:])
	out.S = buf
	if raw.RecoveryID != nil {
		flipped := *raw.RecoveryID ^ 1
		out.RecoveryID = &flipped
	}
	return out
}

// ResolveRecoveryID implements §4.4's "derive recovery_id by trying
// both candidates and matching against the expected derived public
// key" when the MPC primitive didn't already attach one. It tries
// candidates 0 through 3 in order and returns the first that recovers
// to expectedPub; recoverCompact keeps only the low bit, so 2 and 3
// repeat 0 and 1 and a match is always reported as 0 or 1.
func ResolveRecoveryID(digest []byte, raw RawSignature, expectedPub *secp256k1.PublicKey) (byte, error) {
	r := new(big.Int).SetBytes(raw.R[:])
	s := new(big.Int).SetBytes(raw.S[:])

	for _, candidate := range []byte{0, 1, 2, 3} {
		pub, err := recoverCompact(digest, r, s, candidate)
		if err != nil {
			continue
		}
		if pub.IsEqual(expectedPub) {
			return candidate, nil
		}
	}
	return 0, coreerr.New(coreerr.SignatureVerificationFailed, "no recovery candidate matches the expected public key")
}

// VerifyRecovery implements the §8 property 4 round-trip invariant:
// recover_pubkey(digest, r, s, recovery) == expected_derived_pub.
func VerifyRecovery(digest []byte, raw RawSignature, expectedPub *secp256k1.PublicKey) error {
	if raw.RecoveryID == nil {
		return coreerr.New(coreerr.SignatureVerificationFailed, "signature has no recovery id to verify")
	}
	r := new(big.Int).SetBytes(raw.R[:])
	s := new(big.Int).SetBytes(raw.S[:])
	pub, err := recoverCompact(digest, r, s, *raw.RecoveryID)
	if err != nil {
		return errors.Wrap(coreerr.New(coreerr.SignatureVerificationFailed, "recovering public key from signature"), err.Error())
	}
	if !pub.IsEqual(expectedPub) {
		return coreerr.New(coreerr.SignatureVerificationFailed, "recovered public key does not match expected vault key")
	}
	return nil
}

// EncodeForChain implements §4.4's per-chain signature encoding after
// normalization and (for ECDSA) recovery-id resolution.
func EncodeForChain(raw RawSignature, family chain.Family) ([]byte, error) {
	switch raw.Format {
	case FormatEdDSA:
		return encodeEdDSA(raw), nil
	case FormatECDSA:
		switch family {
		case chain.FamilyEVM:
			return encodeEVMSignature(raw)
		case chain.FamilyUTXO:
			return encodeDERWithSighash(raw, sighashAllByte)
		case chain.FamilyCosmos, chain.FamilyThorchain, chain.FamilyMayachain, chain.FamilyRipple:
			return encodeRawRS(raw), nil
		default:
			return nil, coreerr.New(coreerr.UnsupportedChain, "signature encoding not implemented for family %d", family)
		}
	default:
		return nil, coreerr.New(coreerr.MalformedPayload, "unknown signature format %d", raw.Format)
	}
}

// encodeRawRS is the raw 64-byte r∥s encoding Cosmos-family chains use.
func encodeRawRS(raw RawSignature) []byte {
	out := make([]byte, 64)
	copy(out[:32], raw.R[:])
	copy(out[32:], raw.S[:])
	return out
}

// encodeEdDSA is the 64-byte R∥S pass-through (§4.4: "R ∥ S as-is").
func encodeEdDSA(raw RawSignature) []byte {
	return encodeRawRS(raw)
}
