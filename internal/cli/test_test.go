package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"
const harnessGolden = "../harness/testdata/golden"

func TestTestCommand_Pass(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun("test", harnessScenarios, "--golden", harnessGolden)

	assert.Contains(t, out, "✓ pro_rata_foreclosure")
	assert.Contains(t, out, "✓ rate_change_and_retry")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun("test", harnessScenarios, "--golden", harnessGolden, "--filter", "rate_*")

	assert.NotContains(t, out, "pro_rata_foreclosure")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTestCommand_UpdateThenMatch(t *testing.T) {
	env := newCLIEnv(t)
	golden := filepath.Join(env.dir, "golden")

	out := env.mustRun("test", harnessScenarios, "--golden", golden, "--update")
	assert.Contains(t, out, "✓ pro_rata_foreclosure (golden updated)")

	want, err := os.ReadFile(filepath.Join(harnessGolden, "pro_rata_foreclosure.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(golden, "pro_rata_foreclosure.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	env.mustRun("test", harnessScenarios, "--golden", golden)
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	env := newCLIEnv(t)
	golden := filepath.Join(env.dir, "golden")
	require.NoError(t, os.MkdirAll(golden, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(golden, "pro_rata_foreclosure.golden"), []byte("{}"), 0644))

	out, _, err := env.run("test", harnessScenarios, "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ pro_rata_foreclosure")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "✓ rate_change_and_retry")
}

func TestTestCommand_FailingScenarioJSON(t *testing.T) {
	env := newCLIEnv(t)
	dir := filepath.Join(env.dir, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
name: bad
description: wrong expectation
collection: {id: c, admin: a, denomination: usdc, rate: 1}
steps:
  - {op: deposit, asset: a1, actor: alice, amount: 10, at: 0, expect: {escrow: 9}}
`), 0644))

	out, _, err := env.run("test", dir, "--format", "json")
	require.Error(t, err)
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
}

func TestTestCommand_MissingDir(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.run("test", filepath.Join(env.dir, "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
