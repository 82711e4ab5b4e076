// Package chaindata declares the ChainDataSource boundary (§6): the
// minimal set of live-chain lookups the Payload Builder needs. This
// core never implements an RPC client — callers inject one.
package chaindata

import (
	"context"
	"math/big"

	"github.com/vultforge/core/internal/chain"
)

// Utxo is a single spendable output as reported by the data source.
type Utxo struct {
	TxID    string
	Vout    uint32
	Amount  int64
	Script  []byte
	Confirmed bool
}

// FeeInfo is family-specific fee data. Only the fields relevant to the
// queried chain's family are populated; the rest are zero.
type FeeInfo struct {
	// EVM
	BaseFeeWei     *big.Int
	SuggestedGasPriceWei *big.Int
	// UTXO
	ByteFeeSat int64
	MempoolMinSat int64
	// Cosmos-like
	GasPrice *big.Int
}

// Account is the Cosmos-SDK-style account state needed for sequence
// numbers in SignDoc construction.
type Account struct {
	AccountNumber uint64
	Sequence      uint64
}

// Source is the injected dependency the Payload Builder calls through.
// Every method takes a context so callers can bound RPC latency; the
// core never retries these calls itself (§6, out of scope).
type Source interface {
	GetBalance(ctx context.Context, c chain.Descriptor, address string, contract string) (*big.Int, error)
	GetNonce(ctx context.Context, c chain.Descriptor, address string) (uint64, error)
	GetFees(ctx context.Context, c chain.Descriptor) (FeeInfo, error)
	GetUtxos(ctx context.Context, c chain.Descriptor, address string) ([]Utxo, error)
	GetRecentBlockhash(ctx context.Context, c chain.Descriptor) ([32]byte, error)
	GetAccount(ctx context.Context, c chain.Descriptor, address string) (Account, error)
	GetERC20Allowance(ctx context.Context, c chain.Descriptor, token, owner, spender string) (*big.Int, error)
}

// Broadcaster is the injected §6 delegate for submitting a signed
// transaction. The core never calls this itself beyond the public
// facade (pkg/coresdk) forwarding a caller's explicit request.
type Broadcaster interface {
	Broadcast(ctx context.Context, c chain.Descriptor, signedTx []byte) (txHash string, err error)
}
