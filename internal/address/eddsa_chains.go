package address

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/vultforge/core/internal/coreerr"
)

// solanaAddress is the base58 encoding of the raw 32-byte Ed25519
// point, matching the teacher's deriveEdDSAAddresses.
func solanaAddress(pub []byte) (string, error) {
	if len(pub) != 32 {
		return "", coreerr.New(coreerr.InvalidPublicKey, "solana public key must be 32 bytes, got %d", len(pub))
	}
	return base58.Encode(pub), nil
}

// suiSchemeFlagEd25519 is Sui's single-byte signature-scheme tag
// prepended before hashing a public key into an address.
const suiSchemeFlagEd25519 = 0x00

// suiAddress implements blake2b(scheme_tag || pub)[0:32] hex, replacing
// the teacher's hardcoded single-vault placeholder address (flagged
// "TODO: Implement proper SUI address derivation using blake2b hashing"
// in address_derivation.go) with the real algorithm.
func suiAddress(pub []byte) (string, error) {
	if len(pub) != 32 {
		return "", coreerr.New(coreerr.InvalidPublicKey, "sui public key must be 32 bytes, got %d", len(pub))
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "constructing blake2b hasher")
	}
	h.Write([]byte{suiSchemeFlagEd25519})
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum), nil
}

// rippleAddress is ripemd160(sha256(pub)) base58-checked with XRP's
// account-id version byte, the same hash160 pipeline UTXO chains use
// but with XRP's own base58 alphabet: the Bitcoin-alphabet encoding is
// translated character by character, so the leading version byte
// yields the 'r' prefix.
func rippleAddress(compressedPub []byte) (string, error) {
	const bitcoinAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	const xrpAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"
	h160 := hash160(compressedPub)
	encoded := base58.CheckEncode(h160, 0x00)
	return strings.Map(func(r rune) rune {
		return rune(xrpAlphabet[strings.IndexRune(bitcoinAlphabet, r)])
	}, encoded), nil
}
