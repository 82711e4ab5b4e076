package payload

import (
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/vultforge/core/internal/chaindata"
	"github.com/vultforge/core/internal/coreerr"
)

// dustThresholdSat is the minimum change-output value this builder
// will emit; below it the change is absorbed into the fee (§4.2 step 4).
const dustThresholdSat = 546

// segwitOverheadVBytes / segwitInputVBytes / segwitOutputVBytes are the
// P2WPKH size estimator constants from §4.2 step 4.
const (
	segwitOverheadVBytes = 10
	segwitInputVBytes    = 68
	segwitOutputVBytes   = 31
	legacyOverheadVBytes = 10
	legacyInputVBytes    = 148
	legacyOutputVBytes   = 34
)

// EstimateUTXOFee computes byte_fee × (overhead + perInput·|in| +
// perOutput·|out|) using the segwit-size constants unless legacy is
// requested.
func EstimateUTXOFee(byteFeeSat int64, numIn, numOut int, legacy bool) int64 {
	overhead, perIn, perOut := segwitOverheadVBytes, segwitInputVBytes, segwitOutputVBytes
	if legacy {
		overhead, perIn, perOut = legacyOverheadVBytes, legacyInputVBytes, legacyOutputVBytes
	}
	vbytes := int64(overhead + perIn*numIn + perOut*numOut)
	return byteFeeSat * vbytes
}

// SelectUTXOs performs greedy-descending selection: sort candidates by
// amount descending (ties broken by (txid, vout) ascending for
// determinism, §8 property 7), then accumulate until the running total
// covers amount plus the fee estimate for the inputs selected so far.
// The fee estimate is recomputed on every iteration since it grows
// with the input count.
func SelectUTXOs(utxos []chaindata.Utxo, amountSat, byteFeeSat int64, numOutputs int, legacy bool) ([]chaindata.Utxo, int64, error) {
	candidates := make([]chaindata.Utxo, 0, len(utxos))
	for _, u := range utxos {
		if u.Confirmed {
			candidates = append(candidates, u)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Amount != candidates[j].Amount {
			return candidates[i].Amount > candidates[j].Amount
		}
		if candidates[i].TxID != candidates[j].TxID {
			return candidates[i].TxID < candidates[j].TxID
		}
		return candidates[i].Vout < candidates[j].Vout
	})

	var errs *multierror.Error
	var selected []chaindata.Utxo
	var total int64
	for _, u := range candidates {
		selected = append(selected, u)
		total += u.Amount
		fee := EstimateUTXOFee(byteFeeSat, len(selected), numOutputs, legacy)
		if total >= amountSat+fee {
			return selected, fee, nil
		}
		errs = multierror.Append(errs, coreerr.New(coreerr.NotEnoughFunds, "selected %d inputs totalling %d sat, need %d + fee", len(selected), total, amountSat))
	}

	return nil, 0, coreerr.Wrap(coreerr.NotEnoughFunds, errs.ErrorOrNil(), "insufficient confirmed utxos to cover %d sat plus fee", amountSat)
}

// ChangeAmount returns the change output value, or 0 if it would be
// dust (absorbed into the fee per §4.2 step 4).
func ChangeAmount(selectedTotal, amountSat, fee int64) int64 {
	change := selectedTotal - amountSat - fee
	if change <= dustThresholdSat {
		return 0
	}
	return change
}
