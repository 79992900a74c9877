package settlement

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/roach88/harberger/internal/ledger"
)

// allocateDebit splits debit across contributions proportionally using the
// largest-remainder method. The returned shares sum to debit exactly and no
// share exceeds its contribution.
//
// share_i = floor(debit * c_i / total), then the leftover units go one each
// to the largest remainders (debit * c_i mod total). Ties go to the lower
// index; callers pass contributions sorted by depositor ID.
//
// Products are computed in 256 bits so debit * c_i never wraps.
func allocateDebit(debit uint64, contributions []uint64) ([]uint64, error) {
	shares := make([]uint64, len(contributions))
	if debit == 0 || len(contributions) == 0 {
		return shares, nil
	}

	var total uint64
	for _, c := range contributions {
		var err error
		if total, err = ledger.AddChecked(total, c); err != nil {
			return nil, err
		}
	}
	if debit > total {
		return nil, ledger.NewOverflowError("debit exceeds pooled contributions")
	}
	if debit == total {
		copy(shares, contributions)
		return shares, nil
	}

	type remainder struct {
		idx int
		rem uint256.Int
	}
	rems := make([]remainder, len(contributions))
	totalInt := uint256.NewInt(total)
	debitInt := uint256.NewInt(debit)

	var assigned uint64
	for i, c := range contributions {
		product := new(uint256.Int).Mul(debitInt, uint256.NewInt(c))
		quo, rem := new(uint256.Int), new(uint256.Int)
		quo.DivMod(product, totalInt, rem)
		// quo <= c because debit < total.
		shares[i] = quo.Uint64()
		assigned += shares[i]
		rems[i] = remainder{idx: i, rem: *rem}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].rem.Gt(&rems[b].rem)
	})

	// At most len(contributions)-1 units are left over, and every unit goes
	// to an entry with a non-zero remainder, which has headroom below c_i.
	leftover := debit - assigned
	for k := uint64(0); k < leftover; k++ {
		shares[rems[k].idx]++
	}
	return shares, nil
}
