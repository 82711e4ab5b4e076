package presign

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/payload"
)

// erc20TransferSelector is the first four bytes of
// keccak256("transfer(address,uint256)").
var erc20TransferSelector = [4]byte{0xa9, 0x05, 0x9c, 0xbb}

// erc20ApproveSelector is the first four bytes of
// keccak256("approve(address,uint256)").
var erc20ApproveSelector = [4]byte{0x09, 0x5e, 0xa7, 0xb3}

// evmDigest implements the EVM branch of pre_signing_hashes (§4.3): an
// EIP-1559 dynamic-fee transaction. Legacy (gas-price) transactions are
// not built; a payload whose EIP-1559 fee fields are empty or not
// base-unit integers is rejected as MalformedPayload. go-ethereum's own
// types.Transaction + Signer is used for both the RLP encoding and the
// keccak256 digest so the byte image matches exactly what a node
// recomputes — this core never hand-rolls RLP.
func evmDigest(p payload.KeysignPayload) (Result, error) {
	spec := p.BlockchainSpecific.EVM
	if spec == nil {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "evm payload missing blockchain_specific.evm")
	}

	to, data, value, err := evmCallTarget(p, erc20TransferSelector)
	if err != nil {
		return Result{}, err
	}

	tx, err := buildDynamicFeeTx(p.Coin.Chain.EVMChainID, spec, to, value, data)
	if err != nil {
		return Result{}, err
	}
	return evmResultFromTx(p.Coin.Chain.EVMChainID, tx)
}

// generalSwapDigest hashes a provider-built transaction verbatim — the
// swap aggregator already encoded data/value/gas, so this core signs
// exactly those bytes rather than reconstructing them (§4.3 decision
// table: "provider-built transaction... uses the provided data/value/gas
// verbatim").
func generalSwapDigest(p payload.KeysignPayload) (Result, error) {
	spec := p.BlockchainSpecific.EVM
	if spec == nil {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "general swap payload missing blockchain_specific.evm")
	}
	sw := p.SwapPayload.General
	value, ok := new(big.Int).SetString(sw.ValueWei, 10)
	if !ok {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "general swap value %q is not a base-unit integer", sw.ValueWei)
	}
	if !common.IsHexAddress(sw.ToAddress) {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "general swap to_address %q is not a valid hex address", sw.ToAddress)
	}
	to := common.HexToAddress(sw.ToAddress)

	gasLimit := spec.GasLimit
	if sw.Gas != 0 {
		gasLimit = sw.Gas
	}
	specWithProviderGas := *spec
	specWithProviderGas.GasLimit = gasLimit

	tx, err := buildDynamicFeeTx(p.Coin.Chain.EVMChainID, &specWithProviderGas, &to, value, sw.Data)
	if err != nil {
		return Result{}, err
	}
	return evmResultFromTx(p.Coin.Chain.EVMChainID, tx)
}

// generateERC20Approve builds the prior approve(spender, amount) digest
// set (S5). It claims the nonce the builder fetched for the address;
// the main swap transaction that follows it in the same session must
// use nonce+1, since both share one signer and one session.
func generateERC20Approve(p payload.KeysignPayload) (Result, error) {
	spec := p.BlockchainSpecific.EVM
	if spec == nil {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "approve payload missing blockchain_specific.evm")
	}
	if p.Coin.ContractAddress == "" {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "erc20_approve_payload requires coin.contract_address")
	}
	if !common.IsHexAddress(p.Coin.ContractAddress) {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "contract_address %q is not a valid hex address", p.Coin.ContractAddress)
	}
	if !common.IsHexAddress(p.ERC20ApprovePayload.Spender) {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "approve spender %q is not a valid hex address", p.ERC20ApprovePayload.Spender)
	}
	amount, ok := new(big.Int).SetString(p.ERC20ApprovePayload.Amount, 10)
	if !ok {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "approve amount %q is not a base-unit integer", p.ERC20ApprovePayload.Amount)
	}

	data := encodeTransferLikeCall(erc20ApproveSelector, common.HexToAddress(p.ERC20ApprovePayload.Spender), amount)
	contract := common.HexToAddress(p.Coin.ContractAddress)

	tx, err := buildDynamicFeeTx(p.Coin.Chain.EVMChainID, spec, &contract, big.NewInt(0), data)
	if err != nil {
		return Result{}, err
	}
	return evmResultFromTx(p.Coin.Chain.EVMChainID, tx)
}

// evmCallTarget resolves (to, data, value) for a plain build_send: a
// native transfer goes straight to the receiver; an ERC-20 transfer
// redirects `to` to the token contract and encodes the call data,
// value always zero (§4.3: "ERC-20 transfers: data = selector(...),
// value=0, to=contract").
func evmCallTarget(p payload.KeysignPayload, selector [4]byte) (*common.Address, []byte, *big.Int, error) {
	if !common.IsHexAddress(p.ToAddress) {
		return nil, nil, nil, coreerr.New(coreerr.MalformedPayload, "to_address %q is not a valid hex address", p.ToAddress)
	}
	value, ok := new(big.Int).SetString(p.ToAmount, 10)
	if !ok {
		return nil, nil, nil, coreerr.New(coreerr.MalformedPayload, "to_amount %q is not a base-unit integer", p.ToAmount)
	}

	if p.Coin.IsNative || p.Coin.ContractAddress == "" {
		to := common.HexToAddress(p.ToAddress)
		return &to, nil, value, nil
	}

	if !common.IsHexAddress(p.Coin.ContractAddress) {
		return nil, nil, nil, coreerr.New(coreerr.MalformedPayload, "contract_address %q is not a valid hex address", p.Coin.ContractAddress)
	}
	contract := common.HexToAddress(p.Coin.ContractAddress)
	data := encodeTransferLikeCall(selector, common.HexToAddress(p.ToAddress), value)
	return &contract, data, big.NewInt(0), nil
}

// encodeTransferLikeCall ABI-encodes any (address, uint256) call:
// selector ∥ pad32(address) ∥ pad32(uint256).
func encodeTransferLikeCall(selector [4]byte, addr common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, selector[:]...)
	data = append(data, make([]byte, 12)...)
	data = append(data, addr.Bytes()...)
	amtBytes := amount.Bytes()
	data = append(data, make([]byte, 32-len(amtBytes))...)
	data = append(data, amtBytes...)
	return data
}

func buildDynamicFeeTx(chainID int64, spec *payload.EVMSpecific, to *common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	maxFee, ok := new(big.Int).SetString(spec.MaxFeePerGasWei, 10)
	if !ok {
		return nil, coreerr.New(coreerr.MalformedPayload, "max_fee_per_gas %q is not a base-unit integer", spec.MaxFeePerGasWei)
	}
	priority, ok := new(big.Int).SetString(spec.PriorityFeePerGasWei, 10)
	if !ok {
		return nil, coreerr.New(coreerr.MalformedPayload, "priority_fee_per_gas %q is not a base-unit integer", spec.PriorityFeePerGasWei)
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(chainID),
		Nonce:     spec.Nonce,
		GasTipCap: priority,
		GasFeeCap: maxFee,
		Gas:       spec.GasLimit,
		To:        to,
		Value:     value,
		Data:      data,
		AccessList: types.AccessList{},
	}), nil
}

// evmResultFromTx produces the RLP-encoded unsigned transaction and its
// EIP-1559 signing digest via go-ethereum's own signer, matching the
// 0x02-prefixed keccak256(rlp([chain_id, nonce, ...])) image a node
// recomputes (§4.3).
func evmResultFromTx(chainID int64, tx *types.Transaction) (Result, error) {
	signer := types.LatestSignerForChainID(big.NewInt(chainID))
	digest := signer.Hash(tx)

	raw, err := tx.MarshalBinary()
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "marshaling unsigned evm transaction")
	}
	return Result{UnsignedTx: raw, Digests: []Digest{digest.Bytes()}}, nil
}
