package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/harberger/internal/ledger"
)

// TraceSnapshot captures the trace and final books of a scenario run.
// It is serialised with ledger.MarshalCanonical for byte-stable comparison.
type TraceSnapshot struct {
	ScenarioName string                  `json:"scenario_name"`
	Trace        []TraceEvent            `json:"trace"`
	Final        map[string]BookSnapshot `json:"final"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any, the shape
// ledger.MarshalCanonical handles.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"step":       event.Step,
			"op":         event.Op,
			"amount":     event.Amount,
			"at":         event.At,
			"request_id": event.RequestID,
		}
		if event.Asset != "" {
			eventMap["asset"] = event.Asset
		}
		if event.Actor != "" {
			eventMap["actor"] = event.Actor
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		if event.Result != nil {
			eventMap["result"] = event.Result
		}
		traceList[i] = eventMap
	}

	final := make(map[string]any, len(s.Final))
	for asset, b := range s.Final {
		deps := make(map[string]any, len(b.Depositors))
		for id, amount := range b.Depositors {
			deps[id] = amount
		}
		final[asset] = map[string]any{
			"state":           b.State,
			"custodian":       b.Custodian,
			"escrow":          b.Escrow,
			"deficit":         b.Deficit,
			"last_settlement": b.LastSettlement,
			"depositors":      deps,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final":         final,
	}
}

// MarshalSnapshot renders a scenario result as canonical JSON.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		Final:        result.Final,
	}
	return ledger.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can assert on Pass as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
