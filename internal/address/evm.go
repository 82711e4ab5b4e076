package address

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vultforge/core/internal/coreerr"
)

// evmAddress computes Keccak256(uncompressed_pub[1:])[12:] and renders
// it with the EIP-55 mixed-case checksum, matching
// deriveEthereumAddress in the teacher but swapping the hand-rolled
// Keccak call for go-ethereum's crypto.PubkeyToAddress so the checksum
// comes from the same library every EVM consumer of this SDK uses.
func evmAddress(compressedPub []byte) (string, error) {
	pub, err := secp256k1.ParsePubKey(compressedPub)
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "parsing evm public key")
	}
	ecdsaPub, err := crypto.UnmarshalPubkey(pub.SerializeUncompressed())
	if err != nil {
		return "", coreerr.Wrap(coreerr.InvalidPublicKey, err, "converting to ecdsa.PublicKey")
	}
	addr := crypto.PubkeyToAddress(*ecdsaPub)
	return addr.Hex(), nil
}

// ValidateEVMAddress enforces hex-40 + EIP-55 compatibility (§4.2 step 1).
// An all-lowercase or all-uppercase address is accepted as
// checksum-agnostic; a mixed-case address must match EIP-55 exactly.
func ValidateEVMAddress(addr string) error {
	if !common.IsHexAddress(addr) {
		return coreerr.New(coreerr.InvalidAddress, "%q is not a valid hex-40 address", addr)
	}
	if hasMixedCase(addr) {
		checksummed := common.HexToAddress(addr).Hex()
		if checksummed != addr {
			return coreerr.New(coreerr.InvalidAddress, "%q fails EIP-55 checksum, expected %q", addr, checksummed)
		}
	}
	return nil
}

func hasMixedCase(addr string) bool {
	hasLower, hasUpper := false, false
	for _, r := range addr[2:] {
		switch {
		case r >= 'a' && r <= 'f':
			hasLower = true
		case r >= 'A' && r <= 'F':
			hasUpper = true
		}
	}
	return hasLower && hasUpper
}
