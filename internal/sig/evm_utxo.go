package sig

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/vultforge/core/internal/coreerr"
)

// sighashAllByte is appended to a UTXO DER signature (§4.4: "DER
// SEQUENCE{INTEGER r, INTEGER s} followed by SIGHASH byte").
const sighashAllByte = 0x01

// recoveryIDBase is decred's compact-signature header offset: the
// first byte of a 65-byte compact signature is 27+recoveryID, +4 more
// when the recovered key should be treated as compressed.
const recoveryIDBase = 27
const recoveryIDCompressedOffset = 4

// recoverCompact rebuilds a decred-style 65-byte compact signature
// from (r, s, recoveryID) and recovers the signing public key,
// grounding §4.4's "derive recovery_id by trying both candidates" on
// the same library already used for every other secp256k1 operation in
// this module.
func recoverCompact(digest []byte, r, s *big.Int, recoveryID byte) (*secp256k1.PublicKey, error) {
	compact := make([]byte, 65)
	compact[0] = recoveryIDBase + recoveryIDCompressedOffset + (recoveryID & 1)
	r.FillBytes(compact[1:33])
	s.FillBytes(compact[33:65])

	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.SignatureVerificationFailed, err, "recovering public key")
	}
	return pub, nil
}

// encodeEVMSignature implements §4.4's EVM encoding: y_parity =
// recovery & 1, packed as r(32) ∥ s(32) ∥ v(1) — the raw triple an
// EIP-1559 signed transaction embeds (the RLP wrapping itself happens
// in the transaction assembly step, outside this package's scope).
func encodeEVMSignature(raw RawSignature) ([]byte, error) {
	if raw.RecoveryID == nil {
		return nil, coreerr.New(coreerr.SignatureVerificationFailed, "evm signature missing resolved recovery id")
	}
	out := make([]byte, 65)
	copy(out[:32], raw.R[:])
	copy(out[32:64], raw.S[:])
	out[64] = *raw.RecoveryID & 1
	return out, nil
}

// encodeDERWithSighash implements §4.4's UTXO encoding: DER
// SEQUENCE{INTEGER r, INTEGER s} followed by the sighash type byte.
func encodeDERWithSighash(raw RawSignature, sighashType byte) ([]byte, error) {
	r := new(big.Int).SetBytes(raw.R[:])
	s := new(big.Int).SetBytes(raw.S[:])

	der := encodeDERSequence(derEncodeInt(r), derEncodeInt(s))
	return append(der, sighashType), nil
}

// derEncodeInt encodes a big.Int as a DER INTEGER, prepending a 0x00
// byte when the high bit is set so it is never misread as negative.
func derEncodeInt(n *big.Int) []byte {
	b := n.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0x00}, b...)
	}
	return append([]byte{0x02, byte(len(b))}, b...)
}

func encodeDERSequence(parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	return append([]byte{0x30, byte(len(body))}, body...)
}
