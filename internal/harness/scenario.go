package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step operation names.
const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpSettle   = "settle"
	OpClaim    = "claim"
	OpSetRate  = "set_rate"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Collection is registered before the first step.
	Collection CollectionSetup `yaml:"collection"`

	// Steps run in order. A failing step does not stop the scenario.
	Steps []Step `yaml:"steps"`

	// Final lists book assertions checked after the last step.
	Final []BookExpect `yaml:"final,omitempty"`
}

// CollectionSetup declares the scenario's collection.
type CollectionSetup struct {
	ID           string `yaml:"id"`
	Admin        string `yaml:"admin"`
	Denomination string `yaml:"denomination"`
	Rate         uint64 `yaml:"rate"`
}

// Step is one engine operation.
type Step struct {
	// Op is one of deposit, withdraw, settle, claim, set_rate.
	Op string `yaml:"op"`

	// Asset is required for every op except set_rate.
	Asset string `yaml:"asset,omitempty"`

	// Actor is the depositor, claimant, or authority token for set_rate.
	Actor string `yaml:"actor,omitempty"`

	// Amount is the deposit, withdrawal, payment, or new rate.
	Amount uint64 `yaml:"amount,omitempty"`

	// At is the caller-supplied time.
	At uint64 `yaml:"at"`

	// RequestID pins the request ID. Reusing one exercises idempotency.
	RequestID string `yaml:"request_id,omitempty"`

	// Expect checks the step's asset after the step succeeds.
	Expect *BookExpect `yaml:"expect,omitempty"`

	// ExpectError is the error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// BookExpect is a subset match on a book. Unset fields are not checked;
// Depositors, when set, must match exactly.
type BookExpect struct {
	Asset          string            `yaml:"asset,omitempty"`
	State          *string           `yaml:"state,omitempty"`
	Custodian      *string           `yaml:"custodian,omitempty"`
	Escrow         *uint64           `yaml:"escrow,omitempty"`
	Deficit        *uint64           `yaml:"deficit,omitempty"`
	LastSettlement *uint64           `yaml:"last_settlement,omitempty"`
	Depositors     map[string]uint64 `yaml:"depositors,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scenarios dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	c := s.Collection
	if c.ID == "" || c.Admin == "" || c.Denomination == "" {
		return fmt.Errorf("collection: id, admin and denomination are required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Op {
		case OpDeposit, OpWithdraw, OpClaim:
			if step.Asset == "" || step.Actor == "" {
				return fmt.Errorf("steps[%d]: %s requires asset and actor", i, step.Op)
			}
		case OpSettle:
			if step.Asset == "" {
				return fmt.Errorf("steps[%d]: settle requires asset", i)
			}
		case OpSetRate:
			if step.Actor == "" {
				return fmt.Errorf("steps[%d]: set_rate requires actor", i)
			}
			if step.Expect != nil {
				return fmt.Errorf("steps[%d]: set_rate has no asset to expect on", i)
			}
		case "":
			return fmt.Errorf("steps[%d]: op is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Expect != nil && step.ExpectError != "" {
			return fmt.Errorf("steps[%d]: expect and expect_error are exclusive", i)
		}
	}

	for i, f := range s.Final {
		if f.Asset == "" {
			return fmt.Errorf("final[%d]: asset is required", i)
		}
	}
	return nil
}
