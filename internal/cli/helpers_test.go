package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/harberger/internal/testutil"
)

const testRegistry = `
collections: punks: {
	admin_authority:    "admin-key"
	denomination:       "usdc"
	rate_per_time_unit: 2
}
`

// cliEnv is a temp database plus a manual clock for default --at values.
type cliEnv struct {
	t     *testing.T
	dir   string
	db    string
	clock *testutil.ManualClock
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{
		t:     t,
		dir:   dir,
		db:    filepath.Join(dir, "test.db"),
		clock: testutil.NewManualClock(1000),
	}
}

// run executes the root command with --db set and returns stdout, stderr
// and the command error.
func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	cmd := newRootCommand(&RootOptions{Clock: func() time.Time {
		return time.Unix(int64(e.clock.Now()), 0)
	}})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// mustRun runs args and fails the test on error.
func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, stderr, err := e.run(args...)
	require.NoError(e.t, err, "stdout: %s\nstderr: %s", out, stderr)
	return out
}

// writeFile writes content under the env's temp dir.
func (e *cliEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// setup registers the test registry.
func (e *cliEnv) setup() {
	e.t.Helper()
	e.mustRun("collection", "apply", e.writeFile("registry.cue", testRegistry), "--at", "0")
}

type jsonResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, out string) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}
