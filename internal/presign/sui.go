package presign

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/payload"
)

// suiIntentPrefix is {scope=0 (TransactionData), version=0, app_id=0},
// prepended to every BCS-serialized TransactionData before hashing
// (§4.3).
var suiIntentPrefix = [3]byte{0, 0, 0}

// suiDigest implements the Sui branch of pre_signing_hashes: BCS-encode
// a minimal PaySui-style TransactionData (single coin transfer, no
// merge/split), prefix with the intent bytes, blake2b-256 to one
// digest. Sui's own SDK is not present anywhere in this corpus, so the
// BCS encoding here is hand-rolled against the publicly documented
// TransactionData layout rather than pulled from a vendored client.
func suiDigest(p payload.KeysignPayload) (Result, error) {
	spec := p.BlockchainSpecific.Sui
	if spec == nil {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "sui payload missing blockchain_specific.sui")
	}

	sender, err := suiAddressBytes(p.Coin.Address)
	if err != nil {
		return Result{}, err
	}
	recipient, err := suiAddressBytes(p.ToAddress)
	if err != nil {
		return Result{}, err
	}
	amount, err := parseUint64(p.ToAmount)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "parsing to_amount")
	}

	var gasCoinRefs [][]byte
	for _, coinID := range spec.Coins {
		ref, err := suiAddressBytes(coinID)
		if err != nil {
			return Result{}, err
		}
		gasCoinRefs = append(gasCoinRefs, ref)
	}

	txData := bcsTransactionData{
		Sender:        sender,
		Recipient:     recipient,
		AmountMist:    amount,
		GasBudget:     spec.GasBudget,
		GasPrice:      spec.ReferenceGasPrice,
		GasCoinsCount: uint64(len(gasCoinRefs)),
	}
	body := encodeBCSTransactionData(txData, gasCoinRefs)

	preimage := make([]byte, 0, len(suiIntentPrefix)+len(body))
	preimage = append(preimage, suiIntentPrefix[:]...)
	preimage = append(preimage, body...)

	digest := blake2b.Sum256(preimage)
	return Result{UnsignedTx: preimage, Digests: []Digest{digest[:]}}, nil
}

func suiAddressBytes(addr string) ([]byte, error) {
	h := strings.TrimPrefix(addr, "0x")
	b, err := hex.DecodeString(h)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidAddress, err, "decoding sui address %q", addr)
	}
	if len(b) != 32 {
		return nil, coreerr.New(coreerr.InvalidAddress, "sui address %q is not 32 bytes", addr)
	}
	return b, nil
}

type bcsTransactionData struct {
	Sender        []byte
	Recipient     []byte
	AmountMist    uint64
	GasBudget     uint64
	GasPrice      uint64
	GasCoinsCount uint64
}

// encodeBCSTransactionData lays out fields in declaration order with
// BCS's own ULEB128 length prefixes for variable-length data and raw
// little-endian for fixed-width integers, matching BCS's documented
// encoding rules for structs/vectors/u64.
func encodeBCSTransactionData(t bcsTransactionData, gasCoins [][]byte) []byte {
	var b []byte
	b = append(b, t.Sender...)
	b = append(b, t.Recipient...)
	b = binary.LittleEndian.AppendUint64(b, t.AmountMist)
	b = binary.LittleEndian.AppendUint64(b, t.GasBudget)
	b = binary.LittleEndian.AppendUint64(b, t.GasPrice)
	b = append(b, bcsULEB128(t.GasCoinsCount)...)
	for _, c := range gasCoins {
		b = append(b, c...)
	}
	return b
}

// bcsULEB128 is BCS's ULEB128 encoding, used for sequence lengths (here
// the gas-coin vector's length).
func bcsULEB128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			break
		}
	}
	return out
}
