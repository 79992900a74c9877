package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, yaml string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(yaml))
	require.NoError(t, err)
	return s
}

func TestRun_Minimal(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	ev := result.Trace[0]
	assert.Equal(t, 1, ev.Step)
	assert.Equal(t, "step-0001", ev.RequestID)
	assert.Empty(t, ev.Error)
	require.NotNil(t, ev.Result)

	got := result.Final["a1"]
	assert.Equal(t, "active", got.State)
	assert.Equal(t, "alice", got.Custodian)
	assert.Equal(t, uint64(10), got.Escrow)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	result, err := Run(mustParse(t, `
name: mismatch
description: wrong escrow expectation
collection: {id: c, admin: a, denomination: usdc, rate: 1}
steps:
  - {op: deposit, asset: a1, actor: alice, amount: 10, at: 0, expect: {escrow: 11}}
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 1 (deposit): escrow = 10, want 11")
}

func TestRun_UnexpectedError(t *testing.T) {
	result, err := Run(mustParse(t, `
name: unexpected
description: settle on an asset with no ledger
collection: {id: c, admin: a, denomination: usdc, rate: 1}
steps:
  - {op: settle, asset: ghost, at: 1}
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "ASSET_NOT_FOUND", result.Trace[0].Error)
	assert.Nil(t, result.Trace[0].Result)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_MissingExpectedError(t *testing.T) {
	result, err := Run(mustParse(t, `
name: missing_error
description: deposit succeeds where a failure was expected
collection: {id: c, admin: a, denomination: usdc, rate: 1}
steps:
  - {op: deposit, asset: a1, actor: alice, amount: 1, at: 0, expect_error: INVALID_AMOUNT}
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected error INVALID_AMOUNT, got success")
}

func TestRun_FinalMissingAsset(t *testing.T) {
	result, err := Run(mustParse(t, `
name: final_missing
description: final expectation on an asset nobody deposited to
collection: {id: c, admin: a, denomination: usdc, rate: 1}
steps:
  - {op: deposit, asset: a1, actor: alice, amount: 1, at: 0}
final:
  - {asset: a2, escrow: 0}
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, "final a2: asset has no ledger")
}

func TestRun_InvalidCollection(t *testing.T) {
	s := mustParse(t, minimalScenario)
	s.Collection.Denomination = ""

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to register collection")
}

func TestRun_ScenarioFiles(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/rate_change_and_retry.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := MarshalSnapshot(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalSnapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestCanonicalize_ConvertsNumbers(t *testing.T) {
	got, err := canonicalize(struct {
		N uint64         `json:"n"`
		L []uint64       `json:"l"`
		M map[string]int `json:"m"`
	}{N: 18446744073709551615, L: []uint64{1}, M: map[string]int{"k": 2}})
	require.NoError(t, err)

	m := got.(map[string]any)
	assert.Equal(t, uint64(18446744073709551615), m["n"])
	assert.Equal(t, []any{uint64(1)}, m["l"])
	assert.Equal(t, map[string]any{"k": uint64(2)}, m["m"])
}

func TestCanonicalize_RejectsNegative(t *testing.T) {
	_, err := canonicalize(map[string]int{"n": -1})
	assert.Error(t, err)
}
