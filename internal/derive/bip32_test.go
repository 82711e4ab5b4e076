package derive

import (
	"bytes"
	"encoding/hex"
	"testing"
)

const (
	s1RootPub      = "027b25c85c4b72a051e592b5a55e54c2f9f150c23d9fa5c57597a01ccf3aeea4"
	s1ChainCode    = "d0e7e21350cd9fbe2dc1a21e7d6c6c8f3a6b5f5f5e5f5f5f5f5f5f5f5f5fb22d31"
)

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decoding fixture hex: %v", err)
	}
	return b
}

func TestDeriveECDSA_Determinism(t *testing.T) {
	rootPub := mustDecode(t, s1RootPub)
	chainCode := mustDecode(t, s1ChainCode)

	c1 := NewCache()
	k1, err := c1.DeriveECDSA(rootPub, chainCode, "m/44'/60'/0'/0/0")
	if err != nil {
		t.Fatalf("first derivation: %v", err)
	}

	c2 := NewCache()
	k2, err := c2.DeriveECDSA(rootPub, chainCode, "m/44'/60'/0'/0/0")
	if err != nil {
		t.Fatalf("second derivation: %v", err)
	}

	if !bytes.Equal(k1.CompressedPub, k2.CompressedPub) {
		t.Fatalf("derivations diverged: %x vs %x", k1.CompressedPub, k2.CompressedPub)
	}
}

func TestDeriveECDSA_CacheHit(t *testing.T) {
	rootPub := mustDecode(t, s1RootPub)
	chainCode := mustDecode(t, s1ChainCode)

	c := NewCache()
	k1, err := c.DeriveECDSA(rootPub, chainCode, "m/84'/0'/0'/0/0")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	k2, err := c.DeriveECDSA(rootPub, chainCode, "m/84'/0'/0'/0/0")
	if err != nil {
		t.Fatalf("derive (cached): %v", err)
	}
	if !bytes.Equal(k1.CompressedPub, k2.CompressedPub) {
		t.Fatalf("cached result differs from first derivation")
	}
}

func TestDeriveECDSAIndices_RejectsHardened(t *testing.T) {
	rootPub := mustDecode(t, s1RootPub)
	chainCode := mustDecode(t, s1ChainCode)

	c := NewCache()
	_, err := c.DeriveECDSAIndices(rootPub, chainCode, []uint32{44 | hardenedBit, 60, 0, 0, 0})
	if err == nil {
		t.Fatal("expected UnhardenedPathOnly for a genuinely hardened index")
	}
}

func TestDeriveECDSA_RejectsZeroChainCode(t *testing.T) {
	rootPub := mustDecode(t, s1RootPub)
	zero := make([]byte, 32)

	c := NewCache()
	_, err := c.DeriveECDSA(rootPub, zero, "m/44'/60'/0'/0/0")
	if err == nil {
		t.Fatal("expected rejection of all-zero chain code")
	}
}

func TestDeriveECDSA_InvalidPublicKey(t *testing.T) {
	c := NewCache()
	_, err := c.DeriveECDSA([]byte("not a pubkey"), mustDecode(t, s1ChainCode), "m/44'/60'/0'/0/0")
	if err == nil {
		t.Fatal("expected InvalidPublicKey for malformed root key")
	}
}

func TestDeriveEdDSA_SingleKeyIsRootKey(t *testing.T) {
	root := bytes.Repeat([]byte{0x01}, 32)
	c := NewCache()
	k, err := c.DeriveEdDSA(root, nil, 0, true)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if !bytes.Equal(k.CompressedPub, root) {
		t.Fatalf("single-key chain should return the root key unchanged")
	}
}
