package presign

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/vultforge/core/internal/chain"
	"github.com/vultforge/core/internal/payload"
)

// TestEVMDigest_S1 pins the spec's scenario S1: an EVM native send with
// literal fee/nonce/chain-id fields must hash to the exact published
// digest.
func TestEVMDigest_S1(t *testing.T) {
	d, err := chain.Lookup("ethereum")
	if err != nil {
		t.Fatal(err)
	}
	coin := payload.AccountCoin{Chain: d, Address: "0x65261c9d3b49367e6a49902B1e735b2e734F8ee7", IsNative: true, Decimals: 18}

	p := payload.KeysignPayload{
		Coin:      coin,
		ToAddress: "0x65261c9d3b49367e6a49902B1e735b2e734F8ee7",
		ToAmount:  "100000000000000",
		BlockchainSpecific: payload.BlockchainSpecific{
			Kind: chain.FamilyEVM,
			EVM: &payload.EVMSpecific{
				MaxFeePerGasWei:      "20000000000",
				PriorityFeePerGasWei: "2000000000",
				Nonce:                122,
				GasLimit:             21000,
			},
		},
	}

	results, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Digests) != 1 {
		t.Fatalf("expected 1 digest, got %d", len(results[0].Digests))
	}

	got := "0x" + hex.EncodeToString(results[0].Digests[0])
	want := "0xe5cb0f65221a2e84d3c1700cfe0d98b788ada4170ff72e68754febf99bb1f467"
	if got != want {
		t.Fatalf("digest mismatch: got %s, want %s", got, want)
	}
}

func TestUTXODigests_S3_Count(t *testing.T) {
	d, err := chain.Lookup("bitcoin")
	if err != nil {
		t.Fatal(err)
	}
	coin := payload.AccountCoin{Chain: d, Address: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", IsNative: true}
	p := payload.KeysignPayload{
		Coin:      coin,
		ToAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		ToAmount:  "80000",
		UtxoInfo: []payload.UtxoInfo{
			{Hash: "0000000000000000000000000000000000000000000000000000000000000001", Index: 0, Amount: 50000, Script: segwitScriptForTest(t)},
			{Hash: "1111111111111111111111111111111111111111111111111111111111111111", Index: 1, Amount: 30000, Script: segwitScriptForTest(t)},
			{Hash: "2222222222222222222222222222222222222222222222222222222222222222", Index: 0, Amount: 20000, Script: segwitScriptForTest(t)},
		},
		BlockchainSpecific: payload.BlockchainSpecific{
			Kind: chain.FamilyUTXO,
			UTXO: &payload.UTXOSpecific{ByteFeeSat: 10},
		},
	}

	results, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(results[0].Digests) != 3 {
		t.Fatalf("expected 3 digests in input order, got %d", len(results[0].Digests))
	}
}

func segwitScriptForTest(t *testing.T) []byte {
	t.Helper()
	// OP_0 <20-byte hash> — a well-formed P2WPKH scriptPubKey.
	script := make([]byte, 22)
	script[0] = 0x00
	script[1] = 0x14
	return script
}

func TestCosmosDigest_Deterministic(t *testing.T) {
	d, err := chain.Lookup("thorchain")
	if err != nil {
		t.Fatal(err)
	}
	coin := payload.AccountCoin{Chain: d, Address: "thor1abc", IsNative: true}
	p := payload.KeysignPayload{
		Coin:                coin,
		ToAddress:           "thor1def",
		ToAmount:            "1000000",
		VaultPublicKeyECDSA: "027b25c8000000000000000000000000000000000000000000000000000aeea4",
		BlockchainSpecific: payload.BlockchainSpecific{
			Kind:   chain.FamilyThorchain,
			Cosmos: &payload.CosmosSpecific{AccountNumber: 5, Sequence: 2, Gas: 200000},
		},
	}
	r1, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	r2, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if hex.EncodeToString(r1[0].Digests[0]) != hex.EncodeToString(r2[0].Digests[0]) {
		t.Fatal("cosmos SignDoc digest is not deterministic")
	}
}

func TestSolanaDigest_MessageBytesAreDigest(t *testing.T) {
	d, err := chain.Lookup("solana")
	if err != nil {
		t.Fatal(err)
	}
	from := make([]byte, 32)
	to := make([]byte, 32)
	to[0] = 1
	coin := payload.AccountCoin{Chain: d, Address: base58.Encode(from), IsNative: true}
	p := payload.KeysignPayload{
		Coin:      coin,
		ToAddress: base58.Encode(to),
		ToAmount:  "1000000",
		BlockchainSpecific: payload.BlockchainSpecific{
			Kind:   chain.FamilySolana,
			Solana: &payload.SolanaSpecific{},
		},
	}
	results, err := Generate(p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(results[0].Digests[0]) != len(results[0].UnsignedTx) {
		t.Fatal("solana digest should be the raw serialized message, not a hash of it")
	}
}

