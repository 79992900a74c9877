package harness

import "github.com/roach88/harberger/internal/ledger"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step      int    `json:"step"`
	Op        string `json:"op"`
	Asset     string `json:"asset,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Amount    uint64 `json:"amount"`
	At        uint64 `json:"at"`
	RequestID string `json:"request_id"`

	// Error is the ledger error code when the step failed.
	Error string `json:"error,omitempty"`

	// Result is the engine's result in canonical form when the step
	// succeeded.
	Result any `json:"result,omitempty"`
}

// BookSnapshot is the comparable view of a book.
type BookSnapshot struct {
	State          string            `json:"state"`
	Custodian      string            `json:"custodian"`
	Escrow         uint64            `json:"escrow"`
	Deficit        uint64            `json:"deficit"`
	LastSettlement uint64            `json:"last_settlement"`
	Depositors     map[string]uint64 `json:"depositors"`
}

// snapshotOf builds the snapshot of b.
func snapshotOf(b *ledger.Book) BookSnapshot {
	deps := make(map[string]uint64, len(b.Depositors))
	for _, d := range b.Depositors {
		deps[d.DepositorID] = d.AmountContributed
	}
	return BookSnapshot{
		State:          string(b.Ledger.State),
		Custodian:      b.Ledger.CustodianID,
		Escrow:         b.Ledger.EscrowBalance,
		Deficit:        b.Ledger.Deficit,
		LastSettlement: b.Ledger.LastSettlement,
		Depositors:     deps,
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final maps asset ID to the book after the last step.
	Final map[string]BookSnapshot `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  make(map[string]BookSnapshot),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
