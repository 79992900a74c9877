package harness

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/harberger/internal/engine"
	"github.com/roach88/harberger/internal/ledger"
	"github.com/roach88/harberger/internal/store"
	"github.com/roach88/harberger/internal/testutil"
)

// Harness is the scenario execution environment.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	ids    *testutil.SequentialIDs
	logger *slog.Logger
}

// Option configures a Harness run.
type Option func(*Harness)

// WithLogger sends engine logs to logger. Default: discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// The returned error is reserved for infrastructure failures; scenario
// failures are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		ids:    testutil.NewSequentialIDs("step"),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.engine = engine.New(st, engine.WithLogger(h.logger), engine.WithIDGenerator(h.ids))

	ctx := context.Background()
	c := scenario.Collection
	_, err = h.engine.RegisterCollection(ctx, engine.RegisterCollectionRequest{
		RequestID: "register",
		Collection: ledger.CollectionParameters{
			CollectionID:        c.ID,
			AdminAuthorityID:    c.Admin,
			DenominationAssetID: c.Denomination,
			RatePerTimeUnit:     c.Rate,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register collection: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, scenario, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	books, err := h.engine.Books(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("read final books: %w", err)
	}
	for _, b := range books {
		result.Final[b.Ledger.AssetID] = snapshotOf(b)
	}
	for _, exp := range scenario.Final {
		got, ok := result.Final[exp.Asset]
		if !ok {
			result.AddError(fmt.Sprintf("final %s: asset has no ledger", exp.Asset))
			continue
		}
		for _, msg := range checkBook("final "+exp.Asset, got, &exp) {
			result.AddError(msg)
		}
	}

	report, err := h.engine.VerifyReplay(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify replay: %w", err)
	}
	for _, d := range report.Divergences {
		result.AddError("replay: " + d)
	}

	return result, nil
}

// executeStep runs one step and records it in the trace. Step failures
// become result errors; only store failures are returned.
func (h *Harness) executeStep(ctx context.Context, s *Scenario, i int, step Step, result *Result) error {
	requestID := step.RequestID
	if requestID == "" {
		requestID = h.ids.Generate()
	}
	ev := TraceEvent{
		Step:      i + 1,
		Op:        step.Op,
		Asset:     step.Asset,
		Actor:     step.Actor,
		Amount:    step.Amount,
		At:        step.At,
		RequestID: requestID,
	}
	where := fmt.Sprintf("step %d (%s)", i+1, step.Op)

	out, err := h.dispatch(ctx, s.Collection.ID, requestID, step)
	if err != nil {
		code := ledger.CodeOf(err)
		if code == "" {
			return err
		}
		ev.Error = string(code)
		result.Trace = append(result.Trace, ev)
		if step.ExpectError != string(code) {
			result.AddError(fmt.Sprintf("%s: unexpected error %v", where, err))
		}
		return nil
	}

	canonical, err := canonicalize(out)
	if err != nil {
		return err
	}
	ev.Result = canonical
	result.Trace = append(result.Trace, ev)

	if step.ExpectError != "" {
		result.AddError(fmt.Sprintf("%s: expected error %s, got success", where, step.ExpectError))
		return nil
	}
	if step.Expect == nil {
		return nil
	}
	b, err := h.store.Book(ctx, ledger.AssetKey{CollectionID: s.Collection.ID, AssetID: step.Asset})
	if errors.Is(err, sql.ErrNoRows) {
		result.AddError(fmt.Sprintf("%s: asset %s has no ledger", where, step.Asset))
		return nil
	}
	if err != nil {
		return err
	}
	for _, msg := range checkBook(where, snapshotOf(b), step.Expect) {
		result.AddError(msg)
	}
	return nil
}

func (h *Harness) dispatch(ctx context.Context, collectionID, requestID string, step Step) (any, error) {
	switch step.Op {
	case OpDeposit:
		return h.engine.Deposit(ctx, engine.DepositRequest{
			RequestID: requestID, CollectionID: collectionID, AssetID: step.Asset,
			DepositorID: step.Actor, Amount: step.Amount, At: step.At,
		})
	case OpWithdraw:
		return h.engine.Withdraw(ctx, engine.WithdrawRequest{
			RequestID: requestID, CollectionID: collectionID, AssetID: step.Asset,
			DepositorID: step.Actor, Amount: step.Amount, At: step.At,
		})
	case OpSettle:
		return h.engine.Settle(ctx, engine.SettleRequest{
			RequestID: requestID, CollectionID: collectionID, AssetID: step.Asset, At: step.At,
		})
	case OpClaim:
		return h.engine.ClaimForeclosure(ctx, engine.ClaimRequest{
			RequestID: requestID, CollectionID: collectionID, AssetID: step.Asset,
			ClaimantID: step.Actor, Payment: step.Amount, At: step.At,
		})
	case OpSetRate:
		return h.engine.UpdateRate(ctx, engine.UpdateRateRequest{
			RequestID: requestID, CollectionID: collectionID,
			AuthorityToken: step.Actor, Rate: step.Amount, At: step.At,
		})
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// canonicalize converts an engine result into the value types
// ledger.MarshalCanonical accepts. Numbers in results are all unsigned.
func canonicalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return convertNumbers(generic)
}

func convertNumbers(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := strconv.ParseUint(string(x), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s in result", x)
		}
		return n, nil
	case map[string]any:
		for k, val := range x {
			c, err := convertNumbers(val)
			if err != nil {
				return nil, err
			}
			x[k] = c
		}
		return x, nil
	case []any:
		for i, val := range x {
			c, err := convertNumbers(val)
			if err != nil {
				return nil, err
			}
			x[i] = c
		}
		return x, nil
	}
	return v, nil
}
