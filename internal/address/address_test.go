package address

import (
	"encoding/hex"
	"testing"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/derive"
)

// S1 fixture from the spec: vault root ECDSA pub and chain code. The
// test derives the m/44'/60'/0'/0/0 Ethereum address from them and
// checks only its format (42 characters, "0x" prefix), not its value.
const (
	s1RootPub   = "027b25c85c4b72a051e592b5a55e54c2f9f150c23d9fa5c57597a01ccf3aeea4"
	s1ChainCode = "d0e7e21350cd9fbe2dc1a21e7d6c6c8f3a6b5f5f5e5f5f5f5f5f5f5f5f5fb22d31"
)

func TestDeriveAddress_EVM(t *testing.T) {
	rootPub, _ := hex.DecodeString(s1RootPub)
	chainCode, _ := hex.DecodeString(s1ChainCode)

	c := derive.NewCache()
	key, err := c.DeriveECDSA(rootPub, chainCode, "m/44'/60'/0'/0/0")
	if err != nil {
		t.Fatalf("derive: %v", err)
	}

	d, err := chain.Lookup("ethereum")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	addr, err := Derive(key.CompressedPub, d)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	if len(addr) != 42 || addr[:2] != "0x" {
		t.Fatalf("malformed evm address: %s", addr)
	}
}

func TestValidateEVMAddress(t *testing.T) {
	if err := ValidateEVMAddress("0x65261c9d3b49367e6a49902B1e735b2e734F8ee7"); err != nil {
		t.Fatalf("expected valid checksummed address, got %v", err)
	}
	if err := ValidateEVMAddress("not-an-address"); err == nil {
		t.Fatal("expected rejection of malformed address")
	}
}

// S6: a cosmos1... address submitted where the chain expects the
// "thor" HRP must fail InvalidAddress without any network call.
func TestValidateCosmosAddress_WrongHRP(t *testing.T) {
	encoded, err := cosmosAddress(mustCompressedPub(t), "cosmos")
	if err != nil {
		t.Fatalf("encoding fixture cosmos address: %v", err)
	}
	if err := ValidateCosmosAddress(encoded, "thor"); err == nil {
		t.Fatal("expected InvalidAddress when HRP does not match the expected chain")
	}
}

func mustCompressedPub(t *testing.T) []byte {
	t.Helper()
	b, err := hex.DecodeString(s1RootPub)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSuiAddress_Deterministic(t *testing.T) {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i)
	}
	a1, err := suiAddress(pub)
	if err != nil {
		t.Fatalf("sui address: %v", err)
	}
	a2, _ := suiAddress(pub)
	if a1 != a2 {
		t.Fatalf("sui address derivation is not deterministic: %s vs %s", a1, a2)
	}
	if len(a1) != 66 || a1[:2] != "0x" {
		t.Fatalf("malformed sui address: %s", a1)
	}
}

func TestSolanaAddress_RejectsWrongLength(t *testing.T) {
	if _, err := solanaAddress([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected InvalidPublicKey for short solana key")
	}
}
