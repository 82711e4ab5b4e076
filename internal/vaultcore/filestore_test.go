package vaultcore

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	v1 "github.com/vultisig/commondata/go/vultisig/vault/v1"
	"google.golang.org/protobuf/proto"
)

func buildUnencryptedContainer(t *testing.T) string {
	t.Helper()
	pv := &v1.Vault{
		Name:           "test-vault",
		PublicKeyEcdsa: "02abc",
		PublicKeyEddsa: "deadbeef",
		HexChainCode:   "00112233",
		LocalPartyId:   "party-1",
		Signers:        []string{"party-1", "party-2"},
		KeyShares: []*v1.Vault_KeyShare{
			{PublicKey: "02abc", Keyshare: "{\"fake\":\"gg20-share\"}"},
			{PublicKey: "deadbeef", Keyshare: "{\"fake\":\"eddsa-share\"}"},
		},
	}
	vaultBytes, err := proto.Marshal(pv)
	if err != nil {
		t.Fatal(err)
	}
	container := &v1.VaultContainer{
		Vault:       base64.StdEncoding.EncodeToString(vaultBytes),
		IsEncrypted: false,
	}
	containerBytes, err := proto.Marshal(container)
	if err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(containerBytes)
}

func TestFileStore_RegisterAndLoad_Unencrypted(t *testing.T) {
	store := NewFileStore()
	encoded := buildUnencryptedContainer(t)
	if err := store.Register(encoded); err != nil {
		t.Fatalf("register: %v", err)
	}

	v, err := store.Load("02abc")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Name != "test-vault" {
		t.Fatalf("unexpected name %q", v.Name)
	}
	if v.VaultID() != "02abc" {
		t.Fatalf("expected vault id to equal ecdsa public key, got %q", v.VaultID())
	}
	if v.LibType != LibGG20Legacy {
		t.Fatalf("expected GG20-legacy lib type for JSON-shaped shares, got %v", v.LibType)
	}
}

func TestFileStore_Load_UnknownVault(t *testing.T) {
	store := NewFileStore()
	if _, err := store.Load("nonexistent"); err == nil {
		t.Fatal("expected error loading unknown vault")
	}
}

func TestEncryptDecryptAESGCM_RoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("round trip me")
	sealed, err := encryptAESGCM(plaintext, key, func(b []byte) error {
		_, err := rand.Read(b)
		return err
	})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	encoded := base64.StdEncoding.EncodeToString(sealed)
	got, err := decryptAESGCM(encoded, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}
