// Package address implements the table-driven address codec: mapping
// a derived public key plus a chain.Descriptor to the chain's on-chain
// address string. Each family's encoding is grounded on the teacher's
// internal/vault/address_derivation.go, generalized from vault-specific
// hardcoded output into a pure function of (pubkey, descriptor).
package address

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required for legacy Bitcoin-style hash160

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/coreerr"
)

// Derive maps a derived public key to its on-chain address string,
// dispatching on the chain's family. pub is the already-derived
// per-chain key (see internal/derive): compressed secp256k1 for ECDSA
// families, raw 32-byte point for EdDSA families.
func Derive(pub []byte, d chain.Descriptor) (string, error) {
	switch d.Family {
	case chain.FamilyEVM:
		return evmAddress(pub)
	case chain.FamilyUTXO:
		return utxoAddress(pub, d.UTXONetwork)
	case chain.FamilyCosmos, chain.FamilyThorchain, chain.FamilyMayachain:
		return cosmosAddress(pub, d.CosmosHRP)
	case chain.FamilySolana:
		return solanaAddress(pub)
	case chain.FamilySui:
		return suiAddress(pub)
	case chain.FamilyRipple:
		return rippleAddress(pub)
	case chain.FamilyTon:
		return tonAddress(pub)
	case chain.FamilyTron:
		return tronAddress(pub)
	case chain.FamilyCardano:
		return cardanoAddress(pub)
	case chain.FamilyPolkadot:
		return polkadotAddress(pub)
	default:
		return "", coreerr.New(coreerr.UnsupportedChain, "no address codec registered for family %d", d.Family)
	}
}

// hash160 computes RIPEMD160(SHA256(data)), the payload every
// Bitcoin-derived address family hashes down to before applying its
// own prefix/checksum scheme.
func hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	return h.Sum(nil)
}
