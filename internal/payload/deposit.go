package payload

import (
	"context"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/coreerr"
)

// BuildDeposit implements build_deposit (§4.2): THORChain/MayaChain
// liquidity ops. These are structurally a Cosmos-family send to the
// chain's own module address with a structured memo, so it reuses the
// same SignDoc resolution path as build_send.
func (b *Builder) BuildDeposit(ctx context.Context, coin AccountCoin, amount, memo string, fee *FeeSettings, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	if coin.Chain.Family != chain.FamilyThorchain && coin.Chain.Family != chain.FamilyMayachain {
		return KeysignPayload{}, coreerr.New(coreerr.UnsupportedChain, "build_deposit only supports THORChain/MayaChain, got family %d", coin.Chain.Family)
	}
	if memo == "" {
		return KeysignPayload{}, coreerr.New(coreerr.MalformedPayload, "deposit requires a non-empty memo")
	}

	acct, err := b.Source.GetAccount(ctx, coin.Chain, coin.Address)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching account")
	}

	gas := uint64(2_000_000)
	if fee != nil && fee.EVMGasLimit != 0 {
		gas = fee.EVMGasLimit
	}

	return KeysignPayload{
		Coin:                coin,
		ToAddress:           coin.Address, // deposit messages target the chain module, not an external recipient
		ToAmount:            amount,
		Memo:                memo,
		VaultPublicKeyECDSA: vaultPub,
		VaultLocalPartyID:   vaultParty,
		LibType:             lib,
		BlockchainSpecific: BlockchainSpecific{
			Kind: coin.Chain.Family,
			Cosmos: &CosmosSpecific{
				AccountNumber: acct.AccountNumber,
				Sequence:      acct.Sequence,
				Gas:           gas,
			},
		},
	}, nil
}
