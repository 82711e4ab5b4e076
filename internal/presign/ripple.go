package presign

import (
	"crypto/sha256"
	"crypto/sha512"
	"math/big"

	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/payload"
)

// xrpAlphabet is XRPL's own base58 dictionary order — distinct from
// Bitcoin's, so btcutil's base58 codec (fixed to the Bitcoin alphabet)
// cannot decode a classic XRP address.
const xrpAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

// xrpBase58CheckDecode decodes a classic XRP address to its 20-byte
// account id, verifying the 4-byte double-SHA256 checksum and the
// 0x00 "account id" version byte.
func xrpBase58CheckDecode(s string) ([]byte, error) {
	var index [256]int8
	for i := range index {
		index[i] = -1
	}
	for i, c := range xrpAlphabet {
		index[c] = int8(i)
	}

	n := new(big.Int)
	base := big.NewInt(58)
	for _, c := range s {
		if c > 255 || index[c] < 0 {
			return nil, coreerr.New(coreerr.InvalidAddress, "invalid base58 character %q", c)
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(int64(index[c])))
	}

	decoded := n.Bytes()
	leadingZeros := 0
	for leadingZeros < len(s) && s[leadingZeros] == byte(xrpAlphabet[0]) {
		leadingZeros++
	}
	full := make([]byte, leadingZeros+len(decoded))
	copy(full[leadingZeros:], decoded)

	if len(full) < 5 {
		return nil, coreerr.New(coreerr.InvalidAddress, "decoded address too short")
	}
	body, checksum := full[:len(full)-4], full[len(full)-4:]
	sum1 := sha256.Sum256(body)
	sum2 := sha256.Sum256(sum1[:])
	for i := 0; i < 4; i++ {
		if checksum[i] != sum2[i] {
			return nil, coreerr.New(coreerr.InvalidAddress, "checksum mismatch")
		}
	}
	if body[0] != 0x00 {
		return nil, coreerr.New(coreerr.InvalidAddress, "unexpected version byte %#x", body[0])
	}
	return body[1:], nil
}

// stxPrefix is XRPL's "single transaction" hashing prefix, prepended
// before SHA-512-half when signing (§4.3).
var stxPrefix = [4]byte{'S', 'T', 'X', 0x00}

// rippleFieldPayment / rippleFieldAccount / ... are a minimal subset of
// XRPL's field-code table (rippled's definitions.json), just enough to
// encode a Payment with no destination tag, no memos, no path set —
// the common case this core targets. XRPL's own SDK is not present
// anywhere in this corpus, so the encoding is hand-rolled against the
// publicly documented canonical binary format.
const (
	rippleTypeUInt16  = 1
	rippleTypeUInt32  = 2
	rippleTypeAmount  = 6
	rippleTypeAccount = 8

	rippleFieldTransactionType = 2  // UInt16
	rippleFieldFlags           = 2  // UInt32
	rippleFieldSequence        = 4  // UInt32
	rippleFieldAmount          = 1  // Amount
	rippleFieldFee             = 8  // Amount
	rippleFieldSigningPubKey   = 3  // VariableLength (Blob) — field code, type handled separately
	rippleFieldAccount         = 1  // Account
	rippleFieldDestination     = 3  // Account

	paymentTransactionType = 0
)

// rippleDigest implements the XRP branch of pre_signing_hashes (§4.3):
// canonical binary encoding with TxnSignature omitted, "STX\x00"
// prefix, SHA-512-half.
func rippleDigest(p payload.KeysignPayload) (Result, error) {
	spec := p.BlockchainSpecific.Ripple
	if spec == nil {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "ripple payload missing blockchain_specific.ripple")
	}
	amount, err := parseUint64(p.ToAmount)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "parsing to_amount")
	}

	var b []byte
	b = appendFieldHeader(b, rippleTypeUInt16, rippleFieldTransactionType)
	b = appendUint16(b, paymentTransactionType)

	b = appendFieldHeader(b, rippleTypeUInt32, rippleFieldFlags)
	b = appendUint32(b, 0)

	b = appendFieldHeader(b, rippleTypeUInt32, rippleFieldSequence)
	b = appendUint32(b, spec.Sequence)

	b = appendFieldHeader(b, rippleTypeAmount, rippleFieldAmount)
	b = appendXRPAmount(b, amount)

	b = appendFieldHeader(b, rippleTypeAmount, rippleFieldFee)
	b = appendXRPAmount(b, uint64(spec.FeeDrops))

	pub, err := rippleDecodeVault(p.VaultPublicKeyECDSA)
	if err != nil {
		return Result{}, err
	}
	b = appendFieldHeaderVL(b, rippleFieldSigningPubKey)
	b = appendVariableLength(b, pub)

	srcAccount, err := rippleAccountID(p.Coin.Address)
	if err != nil {
		return Result{}, err
	}
	b = appendFieldHeader(b, rippleTypeAccount, rippleFieldAccount)
	b = appendVariableLength(b, srcAccount)

	dstAccount, err := rippleAccountID(p.ToAddress)
	if err != nil {
		return Result{}, err
	}
	b = appendFieldHeader(b, rippleTypeAccount, rippleFieldDestination)
	b = appendVariableLength(b, dstAccount)

	preimage := append(append([]byte{}, stxPrefix[:]...), b...)
	sum := sha512.Sum512(preimage)
	digest := sum[:32] // SHA-512-half

	return Result{UnsignedTx: b, Digests: []Digest{digest}}, nil
}

func appendFieldHeader(b []byte, typeCode, fieldCode int) []byte {
	if typeCode < 16 && fieldCode < 16 {
		return append(b, byte(typeCode<<4|fieldCode))
	}
	return append(b, byte(typeCode), byte(fieldCode))
}

// appendFieldHeaderVL is the field header for the one VariableLength
// (Blob) field this core emits (SigningPubKey, type code 7).
func appendFieldHeaderVL(b []byte, fieldCode int) []byte {
	const rippleTypeBlob = 7
	return appendFieldHeader(b, rippleTypeBlob, fieldCode)
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// appendXRPAmount encodes a native-XRP amount: the high bit clear
// (distinguishing it from an issued-currency amount), next bit set
// (XRPL's "is positive" convention), remaining 62 bits the drop count.
func appendXRPAmount(b []byte, drops uint64) []byte {
	v := drops | (1 << 62)
	return append(b, byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendVariableLength(b, data []byte) []byte {
	n := len(data)
	switch {
	case n <= 192:
		b = append(b, byte(n))
	case n <= 12480:
		n -= 193
		b = append(b, byte(193+n/256), byte(n%256))
	default:
		n -= 12481
		b = append(b, byte(241+n/65536), byte((n/256)%256), byte(n%256))
	}
	return append(b, data...)
}

func rippleAccountID(classicAddr string) ([]byte, error) {
	hash, err := xrpBase58CheckDecode(classicAddr)
	if err != nil {
		return nil, coreerr.Wrap(coreerr.InvalidAddress, err, "decoding ripple address %q", classicAddr)
	}
	return hash, nil
}

func rippleDecodeVault(hexPub string) ([]byte, error) {
	b := mustPubKeyBytes(hexPub)
	if b == nil {
		return nil, coreerr.New(coreerr.InvalidPublicKey, "vault_public_key_ecdsa %q is not valid hex", hexPub)
	}
	return b, nil
}
