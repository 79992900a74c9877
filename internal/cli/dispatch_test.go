package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/harberger/internal/engine"
	"github.com/roach88/harberger/internal/store"
)

// foreclose leaves one pending custody transfer for punks/a1.
func foreclose(env *cliEnv) {
	env.setup()
	env.mustRun("deposit", "punks", "a1", "alice", "10", "--at", "0")
	env.mustRun("settle", "punks", "a1", "--at", "6")
	env.mustRun("claim", "punks", "a1", "carol", "2", "--at", "6")
}

func TestDispatch_LogTransferer(t *testing.T) {
	env := newCLIEnv(t)
	foreclose(env)

	out, stderr, err := env.run("dispatch", "--format", "json")
	require.NoError(t, err)
	var res engine.DispatchResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, out).Data, &res))
	require.Len(t, res.Sent, 1)
	assert.Equal(t, "alice", res.Sent[0].FromCustodian)
	assert.Equal(t, "carol", res.Sent[0].ToCustodian)
	assert.Contains(t, stderr, "custody transfer")

	out = env.mustRun("dispatch")
	assert.Contains(t, out, "Delivered 0 of 0 pending custody transfer(s)")
}

// runDispatchWith runs one dispatch pass through transferer.
func runDispatchWith(env *cliEnv, transferer engine.CustodyTransferer) (string, error) {
	rootOpts := &RootOptions{Format: "text", Database: env.db}
	opts := &DispatchOptions{RootOptions: rootOpts, Transferer: transferer}
	cmd := NewDispatchCommand(rootOpts)
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(io.Discard)
	err := runDispatch(opts, cmd)
	return stdout.String(), err
}

func TestDispatch_FailureKeepsPending(t *testing.T) {
	env := newCLIEnv(t)
	foreclose(env)

	failing := engine.CustodyTransfererFunc(func(context.Context, store.CustodyTransfer) error {
		return errors.New("bridge down")
	})
	_, err := runDispatchWith(env, failing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var got []store.CustodyTransfer
	recording := engine.CustodyTransfererFunc(func(_ context.Context, tr store.CustodyTransfer) error {
		got = append(got, tr)
		return nil
	})
	out, err := runDispatchWith(env, recording)
	require.NoError(t, err)
	assert.Contains(t, out, "Delivered 1 of 1")
	require.Len(t, got, 1)
	assert.Equal(t, "carol", got[0].ToCustodian)
}

func TestWatchDispatch_StopsOnCancel(t *testing.T) {
	env := newCLIEnv(t)
	foreclose(env)

	st, err := store.Open(env.db)
	require.NoError(t, err)
	defer st.Close()

	var mu sync.Mutex
	delivered := 0
	eng := engine.New(st,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithCustodyTransferer(engine.CustodyTransfererFunc(func(context.Context, store.CustodyTransfer) error {
			mu.Lock()
			defer mu.Unlock()
			delivered++
			return nil
		})),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int)
	go func() {
		done <- watchDispatch(ctx, eng, slog.New(slog.NewTextHandler(io.Discard, nil)), 0, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case total := <-done:
		assert.Equal(t, 1, total)
	case <-time.After(time.Second):
		t.Fatal("watchDispatch did not stop")
	}
}

func TestDispatch_WatchRejectsZeroInterval(t *testing.T) {
	env := newCLIEnv(t)
	_, _, err := env.run("dispatch", "--watch", "--interval", "0s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
