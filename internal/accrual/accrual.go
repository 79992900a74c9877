// Package accrual computes tax owed for an elapsed settlement interval.
//
// ComputeOwed is pure: no state, no clock reads, no side effects. The same
// inputs always produce the same result, which is what makes journal replay
// reproduce persisted balances exactly.
package accrual

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/roach88/harberger/internal/ledger"
)

// ComputeOwed returns rate * (now - last).
//
// Fails with ClockRegression if now < last and with ArithmeticOverflow if
// the product does not fit in uint64. Zero elapsed time always yields zero.
func ComputeOwed(rate, last, now uint64) (uint64, error) {
	if now < last {
		return 0, ledger.NewClockRegressionError(last, now)
	}
	elapsed := now - last
	if elapsed == 0 || rate == 0 {
		return 0, nil
	}

	// The product of two uint64 values always fits in 128 bits.
	owed := new(uint256.Int).Mul(uint256.NewInt(rate), uint256.NewInt(elapsed))
	if !owed.IsUint64() {
		return 0, ledger.NewOverflowError(fmt.Sprintf("rate %d * elapsed %d", rate, elapsed))
	}
	return owed.Uint64(), nil
}
