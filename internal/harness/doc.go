// Package harness runs conformance scenarios against the real engine.
//
// A scenario is a YAML file: one collection, an ordered list of steps
// (deposit, withdraw, settle, claim, set_rate) with optional expectations,
// and final-state assertions. Each run uses a fresh in-memory store, fixed
// request IDs and caller-supplied times, so the trace is deterministic and
// can be compared byte for byte with a golden file.
//
// After the last step the harness replays the journal with
// engine.VerifyReplay; any divergence fails the scenario.
package harness
