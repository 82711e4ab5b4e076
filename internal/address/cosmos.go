package address

import (
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vultforge/core/internal/coreerr"
)

// cosmosAddress encodes a compressed secp256k1 public key as a
// Cosmos-SDK bech32 address: bech32(hrp, ripemd160(sha256(pub))).
// Grounded on the teacher's deriveThorchainAddress, generalized from a
// hardcoded "thor" HRP to any Cosmos-family chain's HRP.
func cosmosAddress(compressedPub []byte, hrp string) (string, error) {
	if _, err := secp256k1.ParsePubKey(compressedPub); err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "parsing cosmos public key")
	}
	h160 := hash160(compressedPub)
	conv, err := bech32.ConvertBits(h160, 8, 5, true)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "converting bech32 bit groups")
	}
	addr, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "encoding bech32 address")
	}
	return addr, nil
}

// ValidateCosmosAddress checks that addr decodes under bech32 and
// carries the expected HRP, failing InvalidAddress otherwise (§4.2
// step 1, exercised by scenario S6: a "cosmos1..." address submitted
// where the chain expects "thor" must fail before any network call).
func ValidateCosmosAddress(addr, expectedHRP string) error {
	hrp, _, err := bech32.Decode(addr)
	if err != nil {
		return coreerr.Wrap(coreerr.InvalidAddress, err, "decoding bech32 address %q", addr)
	}
	if hrp != expectedHRP {
		return coreerr.New(coreerr.InvalidAddress, "address %q has hrp %q, expected %q", addr, hrp, expectedHRP)
	}
	return nil
}
