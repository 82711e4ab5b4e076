package payload

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"

	"github.com/vultforge/core/internal/address"
	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/coreerr"
)

// validateReceiver enforces §4.2 step 1's per-family address checks
// before any network call is made (scenario S6 depends on this running
// first, independent of ChainDataSource).
func validateReceiver(receiver string, d chain.Descriptor) error {
	switch d.Family {
	case chain.FamilyEVM:
		return address.ValidateEVMAddress(receiver)
	case chain.FamilyCosmos, chain.FamilyThorchain, chain.FamilyMayachain:
		return address.ValidateCosmosAddress(receiver, d.CosmosHRP)
	case chain.FamilyUTXO:
		return validateUTXOAddress(receiver)
	case chain.FamilyRipple:
		return validateRippleAddress(receiver)
	default:
		if receiver == "" {
			return coreerr.New(coreerr.InvalidAddress, "receiver address is empty")
		}
		return nil
	}
}

// validateRippleAddress checks the classic-address shape: XRPL encodes
// with its own base58 alphabet, so this core checks the 'r' prefix and
// length bounds rather than decoding against btcutil's Bitcoin
// alphabet, which would reject every valid XRP address.
func validateRippleAddress(receiver string) error {
	if len(receiver) < 25 || len(receiver) > 35 || receiver[0] != 'r' {
		return coreerr.New(coreerr.InvalidAddress, "%q is not a valid XRP classic address", receiver)
	}
	return nil
}

func validateUTXOAddress(receiver string) error {
	// btcutil.DecodeAddress validates against the network's own encoding
	// rules (base58check or bech32) and rejects malformed checksums.
	if _, err := btcutil.DecodeAddress(receiver, &chaincfg.MainNetParams); err != nil {
		return coreerr.Wrap(coreerr.InvalidAddress, err, "decoding utxo address %q", receiver)
	}
	return nil
}
