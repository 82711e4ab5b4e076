// Package vaultcore defines the Vault data model (§3) and a reference
// VaultStore. Vault file format encoding/decryption at rest is
// injected per §6 — this package's store is a reference/test double,
// not a hardened production vault format handler.
package vaultcore

import (
	"fmt"
)

// LibType distinguishes the two TSS protocol families a vault's key
// shares may have been produced under, carried through to MpcPrimitive
// selection (§9 "GG20-legacy vs DKLS lib_type branching").
type LibType int

const (
	LibDKLS LibType = iota
	LibGG20Legacy
)

func (l LibType) String() string {
	if l == LibGG20Legacy {
		return "GG20-legacy"
	}
	return "DKLS"
}

// PublicKeys holds the vault's two root keys (§3).
type PublicKeys struct {
	ECDSA string // compressed secp256k1 point, 33 bytes hex
	EdDSA string // Ed25519 point, 32 bytes hex
}

// KeyShares holds this party's opaque share of each signing scheme.
// The blobs are passed through to the MpcPrimitive untouched; this
// package never interprets their contents.
type KeyShares struct {
	ECDSA []byte
	EdDSA []byte
}

// Vault is the persistent identity (§3). VaultID is always
// PublicKeys.ECDSA — two vaults are the same iff their ECDSA root keys
// match.
type Vault struct {
	Name          string
	PublicKeys    PublicKeys
	HexChainCode  string
	Signers       []string
	LocalPartyID  string
	KeyShares     KeyShares
	LibType       LibType
	Threshold     int
	CreatedAtUnix int64
}

// VaultID returns the vault's identity per §3's invariant.
func (v *Vault) VaultID() string {
	return v.PublicKeys.ECDSA
}

// UnlockedVault is the handle the session engine is given once a
// caller has supplied the correct password; it carries no extra
// capability over Vault beyond having passed the unlock check, kept
// as a distinct type so call sites can't accidentally sign with a
// Vault that was never unlocked.
type UnlockedVault struct {
	*Vault
}

// VaultStore is the persistent-state boundary (§6): "the core accesses
// [vault files] through a VaultStore abstraction with load(id) →
// Vault, unlock(id, password) → UnlockedVault." Production
// implementations live outside this module; FileStore below is a
// reference/test double only.
type VaultStore interface {
	Load(id string) (*Vault, error)
	Unlock(id, password string) (*UnlockedVault, error)
}

// errVaultNotFound is returned by VaultStore.Load/Unlock when no vault
// with the given id is known to the store. Not part of §7's signing
// taxonomy — this is a storage-layer lookup failure, matched by the
// teacher's own plain fmt.Errorf convention outside the core pipeline.
func errVaultNotFound(id string) error {
	return fmt.Errorf("no vault registered with id %q", id)
}
