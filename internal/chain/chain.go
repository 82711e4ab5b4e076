// Package chain defines the ChainDescriptor type and the registry of
// supported chains. The source this SDK was ported from normalizes
// chain identity through a partial string-matching table that falls
// through silently on unknown strings (flagged in the teacher's
// derivation work as "TODO: derive properly"). This package replaces
// that with a closed, strongly-typed enum: unknown chains fail
// UnsupportedChain at the boundary instead of silently degrading.
package chain

import "github.com/vultforge/core/internal/coreerr"

// Scheme is the signature scheme a chain's root key uses.
type Scheme int

const (
	ECDSA Scheme = iota
	EdDSA
)

func (s Scheme) String() string {
	if s == EdDSA {
		return "EdDSA"
	}
	return "ECDSA"
}

// Family groups chains that share a pre-signing/address encoding.
type Family int

const (
	FamilyEVM Family = iota
	FamilyUTXO
	FamilyCosmos
	FamilySolana
	FamilySui
	FamilyRipple
	FamilyTon
	FamilyTron
	FamilyCardano
	FamilyPolkadot
	FamilyThorchain
	FamilyMayachain
)

// UTXONetwork distinguishes UTXO-family chains.
type UTXONetwork int

const (
	BTC UTXONetwork = iota
	LTC
	BCH
	DOGE
	DASH
	ZEC
)

// Descriptor is the immutable, per-chain identity: family, derivation
// path, signature scheme, and the family-specific fields needed to
// disambiguate within a family (EVM chain id, UTXO network, Cosmos
// denom/HRP).
type Descriptor struct {
	Name         string
	Ticker       string
	Family       Family
	Scheme       Scheme
	DerivePath   string
	EVMChainID   int64
	UTXONetwork  UTXONetwork
	CosmosHRP    string
	CosmosDenom  string
	CosmosDecimals int
	Decimals     int
}

var registry = map[string]Descriptor{
	"ethereum":  {Name: "ethereum", Ticker: "ETH", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 1, Decimals: 18},
	"bsc":       {Name: "bsc", Ticker: "BNB", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 56, Decimals: 18},
	"avalanche": {Name: "avalanche", Ticker: "AVAX", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 43114, Decimals: 18},
	"polygon":   {Name: "polygon", Ticker: "MATIC", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 137, Decimals: 18},
	"cronoschain": {Name: "cronoschain", Ticker: "CRO", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 25, Decimals: 18},
	"arbitrum":  {Name: "arbitrum", Ticker: "ETH", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 42161, Decimals: 18},
	"optimism":  {Name: "optimism", Ticker: "ETH", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 10, Decimals: 18},
	"base":      {Name: "base", Ticker: "ETH", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 8453, Decimals: 18},
	"blast":     {Name: "blast", Ticker: "ETH", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 81457, Decimals: 18},
	"zksync":    {Name: "zksync", Ticker: "ETH", Family: FamilyEVM, Scheme: ECDSA, DerivePath: "m/44'/60'/0'/0/0", EVMChainID: 324, Decimals: 18},

	"bitcoin":     {Name: "bitcoin", Ticker: "BTC", Family: FamilyUTXO, Scheme: ECDSA, DerivePath: "m/84'/0'/0'/0/0", UTXONetwork: BTC, Decimals: 8},
	"litecoin":    {Name: "litecoin", Ticker: "LTC", Family: FamilyUTXO, Scheme: ECDSA, DerivePath: "m/84'/2'/0'/0/0", UTXONetwork: LTC, Decimals: 8},
	"bitcoincash": {Name: "bitcoincash", Ticker: "BCH", Family: FamilyUTXO, Scheme: ECDSA, DerivePath: "m/44'/145'/0'/0/0", UTXONetwork: BCH, Decimals: 8},
	"dogecoin":    {Name: "dogecoin", Ticker: "DOGE", Family: FamilyUTXO, Scheme: ECDSA, DerivePath: "m/44'/3'/0'/0/0", UTXONetwork: DOGE, Decimals: 8},
	"dash":        {Name: "dash", Ticker: "DASH", Family: FamilyUTXO, Scheme: ECDSA, DerivePath: "m/44'/5'/0'/0/0", UTXONetwork: DASH, Decimals: 8},
	"zcash":       {Name: "zcash", Ticker: "ZEC", Family: FamilyUTXO, Scheme: ECDSA, DerivePath: "m/44'/133'/0'/0/0", UTXONetwork: ZEC, Decimals: 8},

	"thorchain": {Name: "thorchain", Ticker: "RUNE", Family: FamilyThorchain, Scheme: ECDSA, DerivePath: "m/44'/931'/0'/0/0", CosmosHRP: "thor", CosmosDenom: "rune", CosmosDecimals: 8, Decimals: 8},
	"mayachain": {Name: "mayachain", Ticker: "CACAO", Family: FamilyMayachain, Scheme: ECDSA, DerivePath: "m/44'/931'/0'/0/0", CosmosHRP: "maya", CosmosDenom: "cacao", CosmosDecimals: 10, Decimals: 10},
	"cosmoshub": {Name: "cosmoshub", Ticker: "ATOM", Family: FamilyCosmos, Scheme: ECDSA, DerivePath: "m/44'/118'/0'/0/0", CosmosHRP: "cosmos", CosmosDenom: "uatom", CosmosDecimals: 6, Decimals: 6},
	"kujira":    {Name: "kujira", Ticker: "KUJI", Family: FamilyCosmos, Scheme: ECDSA, DerivePath: "m/44'/118'/0'/0/0", CosmosHRP: "kujira", CosmosDenom: "ukuji", CosmosDecimals: 6, Decimals: 6},

	"solana": {Name: "solana", Ticker: "SOL", Family: FamilySolana, Scheme: EdDSA, DerivePath: "m/44'/501'/0'/0'", Decimals: 9},
	"sui":    {Name: "sui", Ticker: "SUI", Family: FamilySui, Scheme: EdDSA, DerivePath: "m/44'/784'/0'/0'/0'", Decimals: 9},

	"ripple":   {Name: "ripple", Ticker: "XRP", Family: FamilyRipple, Scheme: ECDSA, DerivePath: "m/44'/144'/0'/0/0", Decimals: 6},
	"ton":      {Name: "ton", Ticker: "TON", Family: FamilyTon, Scheme: EdDSA, DerivePath: "m/44'/607'/0'", Decimals: 9},
	"tron":     {Name: "tron", Ticker: "TRX", Family: FamilyTron, Scheme: ECDSA, DerivePath: "m/44'/195'/0'/0/0", Decimals: 6},
	"cardano":  {Name: "cardano", Ticker: "ADA", Family: FamilyCardano, Scheme: EdDSA, DerivePath: "m/1852'/1815'/0'/0/0", Decimals: 6},
	"polkadot": {Name: "polkadot", Ticker: "DOT", Family: FamilyPolkadot, Scheme: EdDSA, DerivePath: "m/44'/354'/0'/0'/0'", Decimals: 10},
}

// Lookup resolves a canonical lowercase chain name to its Descriptor.
// Unknown names fail UnsupportedChain rather than silently falling
// through, closing the gap flagged against the source's chain-string
// normalization table.
func Lookup(name string) (Descriptor, error) {
	d, ok := registry[name]
	if !ok {
		return Descriptor{}, coreerr.New(coreerr.UnsupportedChain, "unknown chain %q", name)
	}
	return d, nil
}

// All returns every registered descriptor, sorted by registration
// order is not guaranteed; callers needing a stable order should sort
// by Name.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	return out
}

// IsEVM reports whether a family uses EVM-style RLP transactions.
func (f Family) IsEVM() bool { return f == FamilyEVM }

// IsUTXO reports whether a family uses UTXO-style inputs/outputs.
func (f Family) IsUTXO() bool { return f == FamilyUTXO }

// IsCosmosLike reports whether a family signs a Cosmos SignDoc (native
// Cosmos SDK chains plus THORChain/MayaChain, which share the sign-doc
// shape even though their memo/message conventions differ).
func (f Family) IsCosmosLike() bool {
	return f == FamilyCosmos || f == FamilyThorchain || f == FamilyMayachain
}
