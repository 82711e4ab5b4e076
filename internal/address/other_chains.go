package address

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/vultforge/core/internal/coreerr"
)

// tronAddress reuses the Ethereum-style Keccak160 payload but encodes
// it base58check under Tron's 0x41 address-prefix byte, per Tron's
// "EVM address with a different wrapper" convention.
func tronAddress(compressedPub []byte) (string, error) {
	evmHex, err := evmAddress(compressedPub)
	if err != nil {
		return "", err
	}
	payload, err := hexNo0x(evmHex)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "decoding evm payload for tron address")
	}
	versioned := append([]byte{0x41}, payload...)
	return base58.Encode(appendChecksum(versioned)), nil
}

// cardanoAddress implements the Byron-era enterprise address shape:
// base58(hash160(pub)) prefixed with Cardano's address-type byte. Full
// Shelley bech32 addresses carry staking-key components this SDK does
// not model (no staking flows in scope); this is the payment-only form.
func cardanoAddress(pub []byte) (string, error) {
	if len(pub) != 32 {
		return "", coreerr.New(coreerr.InvalidPublicKey, "cardano public key must be 32 bytes, got %d", len(pub))
	}
	h160 := hash160(pub)
	versioned := append([]byte{0x61}, h160...)
	return base58.Encode(appendChecksum(versioned)), nil
}

// polkadotAddress implements the SS58 address format: a network prefix
// byte, the raw 32-byte public key, and a 2-byte checksum taken from
// blake2b-512("SS58PRE" || prefix || pub). Only the Polkadot mainnet
// prefix (0) is produced.
func polkadotAddress(pub []byte) (string, error) {
	if len(pub) != 32 {
		return "", coreerr.New(coreerr.InvalidPublicKey, "polkadot public key must be 32 bytes, got %d", len(pub))
	}
	const polkadotPrefix = 0x00
	versioned := append([]byte{polkadotPrefix}, pub...)
	checksum := blake2b.Sum512(append([]byte("SS58PRE"), versioned...))
	return base58.Encode(append(versioned, checksum[:2]...)), nil
}

// tonAddress implements TON's raw bounceable address form: a workchain
// byte, the 32-byte account id, and a CRC16 checksum, base64url-encoded
// by callers that need the human "EQ..." form; this returns the
// canonical "<workchain>:<hex account id>" representation the rest of
// this SDK's payload builder consumes internally.
func tonAddress(pub []byte) (string, error) {
	if len(pub) != 32 {
		return "", coreerr.New(coreerr.InvalidPublicKey, "ton public key must be 32 bytes, got %d", len(pub))
	}
	return "0:" + hex.EncodeToString(pub), nil
}

func appendChecksum(data []byte) []byte {
	sum := sha256.Sum256(data)
	sum = sha256.Sum256(sum[:])
	return append(data, sum[:4]...)
}

func hexNo0x(s string) ([]byte, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
