package payload

import (
	"context"
	"math/big"
	"strconv"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/chaindata"
	"github.com/vultforge/core/internal/coreerr"
)

// maxOpReturnBytesBTC is the OP_RETURN payload cap for Bitcoin (§4.2
// step 6); other UTXO chains reuse this unless they diverge.
const maxOpReturnBytesBTC = 80

// FeeSettings carries caller overrides for the resolved chain fee,
// subject to the lower bounds in §4.2 step 2.
type FeeSettings struct {
	EVMMaxFeeWei      *big.Int
	EVMPriorityFeeWei *big.Int
	EVMGasLimit       uint64
	UTXOByteFeeSat    int64
}

// Builder ties a ChainDataSource to the build_* operations. It holds
// no mutable state of its own — every call is a pure function of its
// arguments plus whatever the injected source returns.
type Builder struct {
	Source chaindata.Source
}

// NewBuilder constructs a Builder over the given chain data source.
func NewBuilder(src chaindata.Source) *Builder {
	return &Builder{Source: src}
}

// BuildSend implements build_send (§4.2): resolve live chain state,
// refine the amount (including "send max"), select UTXOs where
// applicable, and return an immutable KeysignPayload.
func (b *Builder) BuildSend(ctx context.Context, coin AccountCoin, receiver, amount, memo string, fee *FeeSettings, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	if err := validateReceiver(receiver, coin.Chain); err != nil {
		return KeysignPayload{}, err
	}

	switch coin.Chain.Family {
	case chain.FamilyEVM:
		return b.buildEVMSend(ctx, coin, receiver, amount, memo, fee, vaultPub, vaultParty, lib)
	case chain.FamilyUTXO:
		return b.buildUTXOSend(ctx, coin, receiver, amount, memo, fee, vaultPub, vaultParty, lib)
	case chain.FamilyCosmos, chain.FamilyThorchain, chain.FamilyMayachain:
		return b.buildCosmosSend(ctx, coin, receiver, amount, memo, vaultPub, vaultParty, lib)
	case chain.FamilySolana:
		return b.buildSolanaSend(ctx, coin, receiver, amount, memo, vaultPub, vaultParty, lib)
	case chain.FamilySui:
		return b.buildSuiSend(ctx, coin, receiver, amount, memo, vaultPub, vaultParty, lib)
	case chain.FamilyRipple:
		return b.buildRippleSend(ctx, coin, receiver, amount, memo, vaultPub, vaultParty, lib)
	default:
		return KeysignPayload{}, coreerr.New(coreerr.UnsupportedChain, "build_send not implemented for family %d", coin.Chain.Family)
	}
}

func (b *Builder) buildEVMSend(ctx context.Context, coin AccountCoin, receiver, amount, memo string, fee *FeeSettings, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	nonce, err := b.Source.GetNonce(ctx, coin.Chain, coin.Address)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching nonce")
	}
	fees, err := b.Source.GetFees(ctx, coin.Chain)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching fees")
	}

	priority := big.NewInt(2_000_000_000) // 2 Gwei default priority tip
	maxFee := new(big.Int).Add(new(big.Int).Mul(fees.BaseFeeWei, big.NewInt(2)), priority)
	gasLimit := uint64(21000)
	if fee != nil {
		if fee.EVMPriorityFeeWei != nil {
			priority = fee.EVMPriorityFeeWei
		}
		if fee.EVMMaxFeeWei != nil {
			lowerBound := new(big.Int).Add(new(big.Int).Mul(fees.BaseFeeWei, big.NewInt(2)), priority)
			if fee.EVMMaxFeeWei.Cmp(lowerBound) < 0 {
				return KeysignPayload{}, coreerr.New(coreerr.MissingChainField, "max_fee %s below required lower bound %s", fee.EVMMaxFeeWei, lowerBound)
			}
			maxFee = fee.EVMMaxFeeWei
		} else {
			maxFee = new(big.Int).Add(new(big.Int).Mul(fees.BaseFeeWei, big.NewInt(2)), priority)
		}
		if fee.EVMGasLimit != 0 {
			gasLimit = fee.EVMGasLimit
		}
	}

	amountWei, err := refineAmount(ctx, b.Source, coin, amount, new(big.Int).Mul(maxFee, big.NewInt(int64(gasLimit))))
	if err != nil {
		return KeysignPayload{}, err
	}

	return KeysignPayload{
		Coin:                coin,
		ToAddress:           receiver,
		ToAmount:            amountWei.String(),
		Memo:                memo,
		VaultPublicKeyECDSA: vaultPub,
		VaultLocalPartyID:   vaultParty,
		LibType:             lib,
		BlockchainSpecific: BlockchainSpecific{
			Kind: chain.FamilyEVM,
			EVM: &EVMSpecific{
				MaxFeePerGasWei:      maxFee.String(),
				PriorityFeePerGasWei: priority.String(),
				Nonce:                nonce,
				GasLimit:             gasLimit,
			},
		},
	}, nil
}

func (b *Builder) buildUTXOSend(ctx context.Context, coin AccountCoin, receiver, amount, memo string, fee *FeeSettings, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	if len(memo) > maxOpReturnBytesBTC {
		return KeysignPayload{}, coreerr.New(coreerr.MalformedPayload, "memo exceeds %d byte OP_RETURN cap", maxOpReturnBytesBTC)
	}

	feeInfo, err := b.Source.GetFees(ctx, coin.Chain)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching fee rate")
	}
	byteFee := feeInfo.ByteFeeSat
	if fee != nil && fee.UTXOByteFeeSat > 0 {
		if fee.UTXOByteFeeSat < feeInfo.MempoolMinSat {
			return KeysignPayload{}, coreerr.New(coreerr.MissingChainField, "byte_fee %d below mempool minimum %d", fee.UTXOByteFeeSat, feeInfo.MempoolMinSat)
		}
		byteFee = fee.UTXOByteFeeSat
	}

	utxos, err := b.Source.GetUtxos(ctx, coin.Chain, coin.Address)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching utxos")
	}

	amountSat, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MalformedPayload, err, "parsing amount")
	}

	numOutputs := 1
	selected, fees, err := SelectUTXOs(utxos, amountSat, byteFee, numOutputs+1, false)
	if err != nil {
		return KeysignPayload{}, err
	}
	var total int64
	for _, u := range selected {
		total += u.Amount
	}
	change := ChangeAmount(total, amountSat, fees)
	if change == 0 {
		// Recompute with a single output (no change) since the fee
		// estimate above assumed a change output would exist.
		fees = EstimateUTXOFee(byteFee, len(selected), 1, false)
	}

	utxoInfos := make([]UtxoInfo, len(selected))
	for i, u := range selected {
		utxoInfos[i] = UtxoInfo{Hash: u.TxID, Index: u.Vout, Amount: u.Amount, Script: u.Script}
	}

	return KeysignPayload{
		Coin:                coin,
		ToAddress:           receiver,
		ToAmount:            strconv.FormatInt(amountSat, 10),
		Memo:                memo,
		VaultPublicKeyECDSA: vaultPub,
		VaultLocalPartyID:   vaultParty,
		LibType:             lib,
		UtxoInfo:            utxoInfos,
		BlockchainSpecific: BlockchainSpecific{
			Kind: chain.FamilyUTXO,
			UTXO: &UTXOSpecific{ByteFeeSat: byteFee},
		},
	}, nil
}

func (b *Builder) buildCosmosSend(ctx context.Context, coin AccountCoin, receiver, amount, memo, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	acct, err := b.Source.GetAccount(ctx, coin.Chain, coin.Address)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching account")
	}
	const defaultGas = uint64(200000)
	return KeysignPayload{
		Coin:                coin,
		ToAddress:           receiver,
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
				Gas:           defaultGas,
			},
		},
	}, nil
}

func (b *Builder) buildSolanaSend(ctx context.Context, coin AccountCoin, receiver, amount, memo, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	blockhash, err := b.Source.GetRecentBlockhash(ctx, coin.Chain)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching recent blockhash")
	}
	return KeysignPayload{
		Coin:                coin,
		ToAddress:           receiver,
		ToAmount:            amount,
		Memo:                memo,
		VaultPublicKeyECDSA: vaultPub,
		VaultLocalPartyID:   vaultParty,
		LibType:             lib,
		BlockchainSpecific: BlockchainSpecific{
			Kind:   chain.FamilySolana,
			Solana: &SolanaSpecific{RecentBlockhash: blockhash},
		},
	}, nil
}

func (b *Builder) buildSuiSend(ctx context.Context, coin AccountCoin, receiver, amount, memo, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	fees, err := b.Source.GetFees(ctx, coin.Chain)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching reference gas price")
	}
	const defaultGasBudget = uint64(3_000_000)
	gasPrice := uint64(1000)
	if fees.GasPrice != nil {
		gasPrice = fees.GasPrice.Uint64()
	}
	return KeysignPayload{
		Coin:                coin,
		ToAddress:           receiver,
		ToAmount:            amount,
		Memo:                memo,
		VaultPublicKeyECDSA: vaultPub,
		VaultLocalPartyID:   vaultParty,
		LibType:             lib,
		BlockchainSpecific: BlockchainSpecific{
			Kind: chain.FamilySui,
			Sui:  &SuiSpecific{ReferenceGasPrice: gasPrice, GasBudget: defaultGasBudget},
		},
	}, nil
}

// rippleBaseFeeDrops is XRPL's network-standard minimum transaction
// cost in drops (1e-6 XRP).
const rippleBaseFeeDrops = 10

func (b *Builder) buildRippleSend(ctx context.Context, coin AccountCoin, receiver, amount, memo, vaultPub, vaultParty string, lib LibType) (KeysignPayload, error) {
	acct, err := b.Source.GetAccount(ctx, coin.Chain, coin.Address)
	if err != nil {
		return KeysignPayload{}, coreerr.Wrap(coreerr.MissingChainField, err, "fetching account")
	}
	return KeysignPayload{
		Coin:                coin,
		ToAddress:           receiver,
		ToAmount:            amount,
		Memo:                memo,
		VaultPublicKeyECDSA: vaultPub,
		VaultLocalPartyID:   vaultParty,
		LibType:             lib,
		BlockchainSpecific: BlockchainSpecific{
			Kind:   chain.FamilyRipple,
			Ripple: &RippleSpecific{Sequence: uint32(acct.Sequence), FeeDrops: rippleBaseFeeDrops},
		},
	}, nil
}

// refineAmount implements §4.2 step 3: parse the amount, which must
// already be a base-unit integer (no conversion from a decimal amount
// via coin.Decimals is done), apply "send max" fee subtraction for the
// native coin, and check the balance covers amount plus fee reserve.
// For a non-native coin only the amount is checked against the balance.
func refineAmount(ctx context.Context, src chaindata.Source, coin AccountCoin, amount string, feeWei *big.Int) (*big.Int, error) {
	requested, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, coreerr.New(coreerr.MalformedPayload, "amount %q is not a base-unit integer", amount)
	}

	balance, err := src.GetBalance(ctx, coin.Chain, coin.Address, coin.ContractAddress)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.MissingChainField, err, "fetching balance")
	}

	if coin.IsNative && requested.Cmp(balance) == 0 {
		sendMax := new(big.Int).Sub(balance, feeWei)
		if sendMax.Sign() < 0 {
			return nil, coreerr.New(coreerr.NotEnoughFunds, "balance %s insufficient to cover fee %s", balance, feeWei)
		}
		return sendMax, nil
	}

	required := new(big.Int).Set(requested)
	if coin.IsNative {
		required = new(big.Int).Add(required, feeWei)
	}
	if required.Cmp(balance) > 0 {
		return nil, coreerr.New(coreerr.NotEnoughFunds, "need %s, have %s", required, balance)
	}
	return requested, nil
}
