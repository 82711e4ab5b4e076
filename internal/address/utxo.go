package address

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gcash/bchutil"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/coreerr"
)

// utxoAddress dispatches to the per-network encoding. Grounded on the
// teacher's per-chain deriveXAddress functions in address_derivation.go;
// the Bitcoin Cash path replaces the teacher's hardcoded placeholder
// ("TODO: implement proper CashAddr derivation") with a real CashAddr
// encoding from bchutil, a dependency the teacher already pulls in
// transitively through gcash/bchd but never imports directly.
func utxoAddress(compressedPub []byte, network chain.UTXONetwork) (string, error) {
	switch network {
	case chain.BTC:
		return segwitAddress(compressedPub, &chaincfg.MainNetParams, "bc")
	case chain.LTC:
		ltc := chaincfg.MainNetParams
		ltc.Bech32HRPSegwit = "ltc"
		addr, err := segwitAddress(compressedPub, &ltc, "ltc")
		return addr, err
	case chain.BCH:
		return bchAddress(compressedPub)
	case chain.DOGE:
		return base58CheckP2PKH(compressedPub, 0x1E), nil
	case chain.DASH:
		return base58CheckP2PKH(compressedPub, 0x4C), nil
	case chain.ZEC:
		return zcashAddress(compressedPub), nil
	default:
		return "", coreerr.New(coreerr.UnsupportedChain, "unknown utxo network %d", network)
	}
}

func segwitAddress(compressedPub []byte, params *chaincfg.Params, hrp string) (string, error) {
	h160 := hash160(compressedPub)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(h160, params)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "encoding segwit address")
	}
	encoded := addr.EncodeAddress()
	if hrp != "bc" && len(encoded) > 3 && encoded[:3] == "bc1" {
		// btcsuite always renders the "bc1" HRP baked into the library's
		// segwit address type; for non-Bitcoin networks we substitute the
		// network's own HRP, matching the teacher's Litecoin workaround.
		return hrp + "1" + encoded[3:], nil
	}
	return encoded, nil
}

func bchAddress(compressedPub []byte) (string, error) {
	h160 := hash160(compressedPub)
	addr, err := bchutil.NewAddressPubKeyHash(h160, &chaincfg.MainNetParams)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "encoding cashaddr")
	}
	return addr.EncodeAddress(), nil
}

func base58CheckP2PKH(compressedPub []byte, version byte) string {
	h160 := hash160(compressedPub)
	return base58.CheckEncode(h160, version)
}

func zcashAddress(compressedPub []byte) string {
	h160 := hash160(compressedPub)
	versioned := append([]byte{0x1C, 0xB8}, h160...)
	checksum := sha256.Sum256(versioned)
	checksum = sha256.Sum256(checksum[:])
	full := append(versioned, checksum[:4]...)
	return base58.Encode(full)
}
