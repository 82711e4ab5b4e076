package derive

import (
	"crypto/sha512"

	"github.com/decred/dcrd/dcrec/edwards/v2"

	"github.com/vultforge/core/internal/coreerr"
)

// DeriveEdDSA produces the per-chain Ed25519 public key from the
// vault's root EdDSA public key. Chains that use Solana/SUI-style
// "single key" addressing (the convention the teacher's
// deriveEdDSAAddresses follows — the whole vault shares one Ed25519
// address across accounts) return the root key unchanged; chains that
// want SLIP-0010 unhardened child derivation apply an additive tweak
// on the Edwards curve keyed by the path's final index and the shared
// chain code.
//
// SLIP-0010's canonical Ed25519 scheme is hardened-only (it has no
// notion of a public non-hardened child), so "unhardened" here means
// Vultisig's own convention: a deterministic scalar tweak derived from
// SHA-512(chainCode || pub || index) (a plain hash, not an HMAC; the
// first 32 bytes are the scalar) added to the public point, loosely
// mirroring the secp256k1 BIP32 formula but on edwards25519. Chains
// whose wallets do not support child accounts (Solana, SUI) skip this
// entirely per §4.1 ("otherwise the root key itself").
func (c *Cache) DeriveEdDSA(rootPub, chainCode []byte, tweakIndex uint32, singleKey bool) (DerivedKey, error) {
	if len(rootPub) != 32 {
		return DerivedKey{}, coreerr.New(coreerr.InvalidPublicKey, "ed25519 public key must be 32 bytes, got %d", len(rootPub))
	}
	if singleKey {
		out := make([]byte, 32)
		copy(out, rootPub)
		return DerivedKey{CompressedPub: out}, nil
	}
	if err := guardChainCode(chainCode); err != nil {
		return DerivedKey{}, err
	}

	point, err := edwards.UnmarshalPubkey(rootPub)
	if err != nil {
		return DerivedKey{}, coreerr.Wrap(coreerr.InvalidPublicKey, err, "decoding ed25519 root public key")
	}

	curve := edwards.Edwards()
	tweak := eddsaTweak(chainCode, rootPub, tweakIndex)
	tweakX, tweakY := curve.ScalarBaseMult(tweak)
	childX, childY := curve.Add(point.X, point.Y, tweakX, tweakY)
	child := edwards.NewPublicKey(curve, childX, childY)

	return DerivedKey{CompressedPub: child.Serialize()}, nil
}

// eddsaTweak derives the additive scalar for a child index: the first
// 32 bytes of SHA-512(chainCode || serializedParent || index), modeled
// on BIP32's HMAC-SHA512 construction but without the HMAC.
func eddsaTweak(chainCode, parentPub []byte, index uint32) []byte {
	data := make([]byte, 0, len(parentPub)+4)
	data = append(data, parentPub...)
	data = append(data, byte(index>>24), byte(index>>16), byte(index>>8), byte(index))
	sum := sha512.Sum512(append(chainCode, data...))
	return sum[:32]
}
