package reconciler

import (
	"math/big"

	"github.com/holiman/uint256"
)

// BumpFees is the result of CalculateBumpFees: the fees to resubmit a
// stuck transaction with.
type BumpFees struct {
	MaxFee      *big.Int
	PriorityFee *big.Int
}

// CalculateBumpFees computes the replacement fee cap and priority fee for
// a stuck EIP-1559 transaction, given the current network fee estimate.
// All arithmetic happens on uint256.Int rather than big.Int or floats, to
// stay bit-exact for chain-native integers; inputs and outputs cross the
// boundary as *big.Int because that's what go-ethereum's transaction types
// expose.
//
// Returns nil if the stale transaction's fees already meet or exceed the
// current estimate (no replacement needed).
func CalculateBumpFees(txMaxFee, txPriorityFee, currentMaxFee, currentPriorityFee *big.Int) *BumpFees {
	txMax := mustUint256(txMaxFee)
	txPrio := mustUint256(txPriorityFee)
	curMax := mustUint256(currentMaxFee)
	curPrio := mustUint256(currentPriorityFee)

	if txMax.Cmp(curMax) >= 0 && txPrio.Cmp(curPrio) >= 0 {
		return nil
	}

	newPriority := new(uint256.Int).Set(curPrio)
	if txPrio.Cmp(newPriority) > 0 {
		newPriority.Set(txPrio)
	}

	// baseFee = (currentMaxFee - currentPriorityFee) / 2, integer division,
	// reconstructing what the EIP-1559 estimator assumed.
	baseFee := new(uint256.Int).Sub(curMax, curPrio)
	baseFee.Div(baseFee, uint256.NewInt(2))

	adjustedMax := new(uint256.Int).Mul(baseFee, uint256.NewInt(2))
	adjustedMax.Add(adjustedMax, newPriority)

	// minReplacement = txMaxFee + ceil(txMaxFee * 10 / 100), computed as
	// txMaxFee + (txMaxFee*10 + 99) / 100 in integer arithmetic.
	tenPct := new(uint256.Int).Mul(txMax, uint256.NewInt(10))
	tenPct.Add(tenPct, uint256.NewInt(99))
	tenPct.Div(tenPct, uint256.NewInt(100))
	minReplacement := new(uint256.Int).Add(txMax, tenPct)

	newMax := new(uint256.Int).Set(adjustedMax)
	if minReplacement.Cmp(newMax) > 0 {
		newMax.Set(minReplacement)
	}
	if curMax.Cmp(newMax) > 0 {
		newMax.Set(curMax)
	}

	return &BumpFees{
		MaxFee:      newMax.ToBig(),
		PriorityFee: newPriority.ToBig(),
	}
}

func mustUint256(v *big.Int) *uint256.Int {
	u, overflow := uint256.FromBig(v)
	if overflow {
		// Fee values never approach 2^256; a value that does is corrupt
		// input we cannot reconcile safely, so saturate rather than wrap.
		return new(uint256.Int).SetAllOne()
	}
	return u
}
