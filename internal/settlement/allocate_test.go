package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(xs []uint64) uint64 {
	var s uint64
	for _, x := range xs {
		s += x
	}
	return s
}

func TestAllocateDebit(t *testing.T) {
	tests := []struct {
		name          string
		debit         uint64
		contributions []uint64
		want          []uint64
	}{
		{"exact proportion", 20, []uint64{70, 30}, []uint64{14, 6}},
		{"whole pool", 100, []uint64{70, 30}, []uint64{70, 30}},
		{"zero debit", 0, []uint64{70, 30}, []uint64{0, 0}},
		{"single depositor", 7, []uint64{10}, []uint64{7}},
		{"equal split tie goes to first", 1, []uint64{5, 5}, []uint64{1, 0}},
		{"three way remainder", 2, []uint64{1, 1, 1}, []uint64{1, 1, 0}},
		{"remainder ties keep order", 5, []uint64{3, 3, 4}, []uint64{2, 1, 2}},
		{"largest remainder wins", 3, []uint64{2, 5}, []uint64{1, 2}},
		{"no depositors", 0, nil, []uint64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := allocateDebit(tt.debit, tt.contributions)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocateDebit_LargeValuesDoNotWrap(t *testing.T) {
	contributions := []uint64{math.MaxUint64 / 2, math.MaxUint64 / 4, math.MaxUint64 / 4}
	total := sum(contributions)
	debit := total - 3

	got, err := allocateDebit(debit, contributions)
	require.NoError(t, err)
	assert.Equal(t, debit, sum(got))
	for i := range got {
		assert.LessOrEqual(t, got[i], contributions[i])
	}
}

func TestAllocateDebit_SumAlwaysExact(t *testing.T) {
	contributions := []uint64{13, 1, 977, 42, 8, 8, 301}
	total := sum(contributions)

	for debit := uint64(0); debit <= total; debit++ {
		got, err := allocateDebit(debit, contributions)
		require.NoError(t, err)
		require.Equal(t, debit, sum(got), "debit %d", debit)
		for i := range got {
			require.LessOrEqual(t, got[i], contributions[i], "debit %d idx %d", debit, i)
		}
	}
}

func TestAllocateDebit_DebitAbovePool(t *testing.T) {
	_, err := allocateDebit(11, []uint64{5, 5})
	assert.Error(t, err)
}
