package payload

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/coreerr"
)

// Quote is the opaque structured swap quote the caller supplies (§1
// non-goals: this core is not a swap aggregator, it only lowers an
// already-fetched quote into a payload).
type Quote struct {
	ExpiresAt time.Time

	// Native (THORChain/MayaChain memo) fields.
	InboundVaultAddress string
	DestAsset           string
	MinOut              string
	StreamingInterval    int
	StreamingQuantity    int
	AffiliateAddress     string
	AffiliateFeeBps      int

	// General (provider-built tx) fields.
	ProviderTxData  []byte
	ProviderToAddr  string
	ProviderValue   string
	ProviderGas     uint64
	SpenderAddress  string
}

// nowFunc is overridable in tests; production code always uses the
// wall clock.
var nowFunc = time.Now

// BuildSwap implements build_swap (§4.2 step 5): lower a quote into
// either a THORChain-style memo payload or a general provider-tx
// payload, prepending an ERC-20 approve payload when the allowance is
// insufficient.
func (b *Builder) BuildSwap(ctx context.Context, from, to AccountCoin, amount string, quote Quote, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	if nowFunc().After(quote.ExpiresAt) {
		return KeysignPayload{}, coreerr.New(coreerr.QuoteExpired, "quote expired at %s", quote.ExpiresAt)
	}

	isNativeSwap := from.Chain.Family == chain.FamilyThorchain || from.Chain.Family == chain.FamilyMayachain
	if isNativeSwap {
		return b.buildNativeSwap(ctx, from, amount, quote, vaultPub, vaultParty, lib)
	}
	return b.buildGeneralSwap(ctx, from, amount, quote, vaultPub, vaultParty, lib)
}

func (b *Builder) buildNativeSwap(ctx context.Context, from AccountCoin, amount string, quote Quote, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	memo := fmt.Sprintf("=:%s:%s:%s/%d/%d:%s:%d",
		quote.DestAsset, quote.InboundVaultAddress, quote.MinOut,
		boolToStreaming(quote.StreamingQuantity > 0), quote.StreamingInterval,
		quote.AffiliateAddress, quote.AffiliateFeeBps)

	base, err := b.buildCosmosSend(ctx, from, quote.InboundVaultAddress, amount, memo, vaultPub, vaultParty, lib)
	if err != nil {
		return KeysignPayload{}, err
	}
	base.SwapPayload = &SwapPayload{Native: &NativeSwapPayload{Memo: memo}}
	return base, nil
}

func boolToStreaming(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (b *Builder) buildGeneralSwap(ctx context.Context, from AccountCoin, amount string, quote Quote, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	base, err := b.buildEVMSend(ctx, from, quote.ProviderToAddr, quote.ProviderValue, "", nil, vaultPub, vaultParty, lib)
	if err != nil {
		return KeysignPayload{}, err
	}
	base.ToAddress = quote.ProviderToAddr
	base.BlockchainSpecific.EVM.GasLimit = quote.ProviderGas
	base.SwapPayload = &SwapPayload{General: &GeneralSwapPayload{
		FromAddress: from.Address,
		ToAddress:   quote.ProviderToAddr,
		Data:        quote.ProviderTxData,
		ValueWei:    quote.ProviderValue,
		Gas:         quote.ProviderGas,
	}}

	if !from.IsNative && from.ContractAddress != "" {
		allowance, err := b.Source.GetERC20Allowance(ctx, from.Chain, from.ContractAddress, from.Address, quote.SpenderAddress)
		if err != nil {
			return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching erc20 allowance")
		}
		requested, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return KeysignPayload{}, coreerr.New(coreerr.MalformedPayload, "amount %q is not a base-unit integer", amount)
		}
		if allowance.Cmp(requested) < 0 {
			base.ERC20ApprovePayload = &ERC20ApprovePayload{Spender: quote.SpenderAddress, Amount: amount}
		}
	}

	return base, nil
}
