// Package payload implements the Payload Builder: turning a
// high-level intent (send/swap/deposit) plus live chain state into an
// immutable KeysignPayload. Modeled on the shape of
// github.com/vultisig/commondata's keysign/v1.KeysignPayload protobuf
// message, the same wire type the teacher's vault package round-trips
// when reading vault containers.
package payload

import (
	"github.com/vultforge/core/internal/chain"
)

// AccountCoin identifies the asset a payload moves.
type AccountCoin struct {
	Chain           chain.Descriptor
	Address         string
	Ticker          string
	Decimals        int
	ContractAddress string
	IsNative        bool
}

// UtxoInfo is one selected input for a UTXO-family transaction.
type UtxoInfo struct {
	Hash   string
	Index  uint32
	Amount int64
	Script []byte
}

// EVMSpecific carries the EIP-1559 fee fields.
type EVMSpecific struct {
	MaxFeePerGasWei      string
	PriorityFeePerGasWei string
	Nonce                uint64
	GasLimit             uint64
}

// UTXOSpecific carries the fee rate used for byte-size fee estimation.
type UTXOSpecific struct {
	ByteFeeSat int64
}

// CosmosSpecific carries SignDoc account/sequence/gas fields, shared by
// native Cosmos SDK chains, THORChain, and MayaChain.
type CosmosSpecific struct {
	AccountNumber uint64
	Sequence      uint64
	Gas           uint64
}

// SuiSpecific carries the gas fields Sui's TransactionData needs.
type SuiSpecific struct {
	ReferenceGasPrice uint64
	GasBudget         uint64
	Coins             []string
}

// SolanaSpecific carries the blockhash a Solana message is built
// against plus an optional priority fee in micro-lamports.
type SolanaSpecific struct {
	RecentBlockhash [32]byte
	PriorityFee     uint64
}

// RippleSpecific carries the account Sequence and drops-denominated Fee
// an XRP Payment transaction needs.
type RippleSpecific struct {
	Sequence uint32
	FeeDrops int64
}

// BlockchainSpecific is the tagged union over chain families. The
// builder sets exactly one field, chosen by Coin.Chain.Family, and
// records that family in Kind. Kind itself is not read: the pre-signing
// hash generator dispatches on Coin.Chain.Family and rejects a payload
// whose matching field is nil as MalformedPayload.
type BlockchainSpecific struct {
	Kind   chain.Family
	EVM    *EVMSpecific
	UTXO   *UTXOSpecific
	Cosmos *CosmosSpecific
	Sui    *SuiSpecific
	Solana *SolanaSpecific
	Ripple *RippleSpecific
}

// NativeSwapPayload is a THORChain/MayaChain memo-based swap.
type NativeSwapPayload struct {
	Memo string
}

// GeneralSwapPayload embeds a provider-built (1inch-style) transaction.
type GeneralSwapPayload struct {
	FromAddress string
	ToAddress   string
	Data        []byte
	ValueWei    string
	Gas         uint64
}

// SwapPayload is the tagged union over swap kinds.
type SwapPayload struct {
	Native  *NativeSwapPayload
	General *GeneralSwapPayload
}

// ERC20ApprovePayload describes a prior approve() call a swap may need.
type ERC20ApprovePayload struct {
	Spender string
	Amount  string
}

// LibType mirrors Vault.lib_type (§3): which MPC primitive produced
// the key shares that will sign this payload.
type LibType int

const (
	LibDKLS LibType = iota
	LibGG20Legacy
)

// KeysignPayload is the fully-resolved signing request (§3). It is
// immutable once constructed: any refinement (fee bump, UTXO reselect)
// produces a new value rather than mutating this one.
type KeysignPayload struct {
	Coin                AccountCoin
	ToAddress           string
	ToAmount            string // base-unit integer, string-encoded
	Memo                string
	VaultPublicKeyECDSA string
	VaultLocalPartyID   string
	LibType             LibType
	UtxoInfo            []UtxoInfo
	BlockchainSpecific  BlockchainSpecific
	SwapPayload         *SwapPayload
	ERC20ApprovePayload *ERC20ApprovePayload
}
