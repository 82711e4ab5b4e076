package sig

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/vultforge/core/internal/chain"
)

func TestNormalize_Idempotent(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256([]byte("normalize me"))
	compact := ecdsa.SignCompact(priv, digest[:], false)

	recID := (compact[0] - recoveryIDBase) & 1
	var r, s [32]byte
	copy(r[:], compact[1:33])
	copy(s[:], compact[33:65])
	raw := RawSignature{R: r, S: s, RecoveryID: &recID, Format: FormatECDSA}

	once := Normalize(raw)
	twice := Normalize(once)
	if once.S != twice.S || *once.RecoveryID != *twice.RecoveryID {
		t.Fatal("Normalize is not idempotent")
	}

	// Force a high-s signature by negating s mod n, and confirm
	// normalizing it yields the low-s form with a flipped recovery bit.
	sBig := new(big.Int).SetBytes(s[:])
	highS := new(big.Int).Sub(secp256k1N, sBig)
	if highS.Cmp(secp256k1HalfN) <= 0 {
		t.Skip("unexpected: negated s is still low-s for this signature")
	}
	var highSBuf [32]byte
	highS.FillBytes(highSBuf[:])
	highRecID := recID
	highRaw := RawSignature{R: r, S: highSBuf, RecoveryID: &highRecID, Format: FormatECDSA}

	normalized := Normalize(highRaw)
	if normalized.S != s {
		t.Fatal("normalizing a high-s signature should recover the original low-s value")
	}
	if *normalized.RecoveryID == highRecID {
		t.Fatal("normalizing a high-s signature should flip the recovery id's low bit")
	}

	again := Normalize(normalized)
	if again.S != normalized.S || *again.RecoveryID != *normalized.RecoveryID {
		t.Fatal("Normalize is not idempotent on an already-normalized signature")
	}
}

func TestResolveRecoveryID_And_VerifyRecovery_RoundTrip(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	pub := priv.PubKey()
	digest := sha256.Sum256([]byte("recover me"))
	compact := ecdsa.SignCompact(priv, digest[:], false)

	var r, s [32]byte
	copy(r[:], compact[1:33])
	copy(s[:], compact[33:65])
	raw := RawSignature{R: r, S: s, Format: FormatECDSA}

	recID, err := ResolveRecoveryID(digest[:], raw, pub)
	if err != nil {
		t.Fatalf("ResolveRecoveryID: %v", err)
	}
	raw.RecoveryID = &recID

	if err := VerifyRecovery(digest[:], raw, pub); err != nil {
		t.Fatalf("VerifyRecovery: %v", err)
	}

	wrongPriv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyRecovery(digest[:], raw, wrongPriv.PubKey()); err == nil {
		t.Fatal("expected VerifyRecovery to fail against the wrong public key")
	}
}

func TestResolveRecoveryID_NoMatch(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256([]byte("garbage"))
	raw := RawSignature{Format: FormatECDSA} // zero r, s — recovers to nothing meaningful
	if _, err := ResolveRecoveryID(digest[:], raw, priv.PubKey()); err == nil {
		t.Fatal("expected no recovery candidate to match")
	}
}

func signedRaw(t *testing.T) (RawSignature, []byte, *secp256k1.PublicKey) {
	t.Helper()
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256([]byte("encode me"))
	compact := ecdsa.SignCompact(priv, digest[:], false)
	recID := (compact[0] - recoveryIDBase) & 1

	var r, s [32]byte
	copy(r[:], compact[1:33])
	copy(s[:], compact[33:65])
	return RawSignature{R: r, S: s, RecoveryID: &recID, Format: FormatECDSA}, digest[:], priv.PubKey()
}

func TestEncodeForChain_EVM(t *testing.T) {
	raw, _, _ := signedRaw(t)
	out, err := EncodeForChain(raw, chain.FamilyEVM)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 65 {
		t.Fatalf("expected 65 bytes, got %d", len(out))
	}
	if out[64] != 0 && out[64] != 1 {
		t.Fatalf("expected trailing parity byte 0 or 1, got %d", out[64])
	}
}

func TestEncodeForChain_UTXO(t *testing.T) {
	raw, _, _ := signedRaw(t)
	out, err := EncodeForChain(raw, chain.FamilyUTXO)
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 0x30 {
		t.Fatalf("expected DER SEQUENCE tag 0x30, got %#x", out[0])
	}
	if out[len(out)-1] != sighashAllByte {
		t.Fatalf("expected trailing sighash byte %#x, got %#x", sighashAllByte, out[len(out)-1])
	}
}

func TestEncodeForChain_CosmosFamily(t *testing.T) {
	raw, _, _ := signedRaw(t)
	for _, fam := range []chain.Family{chain.FamilyCosmos, chain.FamilyThorchain, chain.FamilyMayachain, chain.FamilyRipple} {
		out, err := EncodeForChain(raw, fam)
		if err != nil {
			t.Fatalf("family %d: %v", fam, err)
		}
		if len(out) != 64 {
			t.Fatalf("family %d: expected 64 bytes, got %d", fam, len(out))
		}
	}
}

func TestEncodeForChain_EdDSA(t *testing.T) {
	var r, s [32]byte
	r[0] = 1
	s[0] = 2
	raw := RawSignature{R: r, S: s, Format: FormatEdDSA}
	out, err := EncodeForChain(raw, chain.FamilySolana)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 64 {
		t.Fatalf("expected 64 bytes, got %d", len(out))
	}
	if out[0] != 1 || out[32] != 2 {
		t.Fatal("expected raw R||S pass-through")
	}
}

func TestEncodeForChain_UnsupportedFamily(t *testing.T) {
	raw, _, _ := signedRaw(t)
	if _, err := EncodeForChain(raw, chain.Family(999)); err == nil {
		t.Fatal("expected unsupported-family error")
	}
}
