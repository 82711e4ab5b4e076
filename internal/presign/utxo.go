package presign

import (
	"bytes"
	"strconv"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/vultforge/core/internal/coreerr"
	"github.com/vultforge/core/internal/payload"
)

// utxoDigests implements the UTXO branch of pre_signing_hashes (§4.3):
// build the transaction with ordered inputs/outputs, then compute the
// BIP-143 segwit sighash for each input in input order (S3: three
// inputs in, three digests out, same order).
func utxoDigests(p payload.KeysignPayload) (Result, error) {
	spec := p.BlockchainSpecific.UTXO
	if spec == nil {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "utxo payload missing blockchain_specific.utxo")
	}
	if len(p.UtxoInfo) == 0 {
		return Result{}, coreerr.New(coreerr.MalformedPayload, "utxo payload has no selected inputs")
	}

	amountSat, err := parseInt64(p.ToAmount)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "parsing to_amount")
	}

	toAddr, err := btcutil.DecodeAddress(p.ToAddress, &chaincfg.MainNetParams)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.InvalidAddress, err, "decoding to_address")
	}
	toScript, err := txscript.PayToAddrScript(toAddr)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "building output script")
	}

	var totalIn int64
	for _, u := range p.UtxoInfo {
		totalIn += u.Amount
	}

	numOutputs := 2
	fee := payload.EstimateUTXOFee(spec.ByteFeeSat, len(p.UtxoInfo), numOutputs, false)
	change := payload.ChangeAmount(totalIn, amountSat, fee)
	if change == 0 {
		numOutputs = 1
		fee = payload.EstimateUTXOFee(spec.ByteFeeSat, len(p.UtxoInfo), numOutputs, false)
		change = payload.ChangeAmount(totalIn, amountSat, fee)
	}

	changeAddr, err := btcutil.DecodeAddress(p.Coin.Address, &chaincfg.MainNetParams)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.InvalidAddress, err, "decoding change address")
	}
	changeScript, err := txscript.PayToAddrScript(changeAddr)
	if err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "building change script")
	}

	tx := wire.NewMsgTx(2)
	prevOutFetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, u := range p.UtxoInfo {
		hash, err := chainhash.NewHashFromStr(u.Hash)
		if err != nil {
			return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "parsing utxo txid %q", u.Hash)
		}
		op := wire.NewOutPoint(hash, u.Index)
		tx.AddTxIn(wire.NewTxIn(op, nil, nil))
	}
	for i, u := range p.UtxoInfo {
		prevOutFetcher.AddPrevOut(tx.TxIn[i].PreviousOutPoint, &wire.TxOut{Value: u.Amount, PkScript: u.Script})
	}

	tx.AddTxOut(wire.NewTxOut(amountSat, toScript))
	if change > 0 {
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	}

	if len(p.Memo) > 0 {
		opReturn, err := txscript.NullDataScript([]byte(p.Memo))
		if err != nil {
			return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "encoding OP_RETURN memo")
		}
		tx.AddTxOut(wire.NewTxOut(0, opReturn))
	}

	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)
	digests := make([]Digest, len(p.UtxoInfo))
	for i, u := range p.UtxoInfo {
		h, err := txscript.CalcWitnessSigHash(u.Script, sigHashes, txscript.SigHashAll, tx, i, u.Amount)
		if err != nil {
			return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "computing witness sighash for input %d", i)
		}
		digests[i] = Digest(h)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return Result{}, coreerr.Wrap(coreerr.MalformedPayload, err, "serializing unsigned transaction")
	}

	return Result{UnsignedTx: buf.Bytes(), Digests: digests}, nil
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
