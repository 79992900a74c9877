package harness

import (
	"fmt"
	"reflect"
	"sort"
)

// checkBook compares a snapshot against an expectation and returns one
// message per mismatching field.
func checkBook(where string, got BookSnapshot, exp *BookExpect) []string {
	var errs []string
	mismatch := func(field string, w, g any) {
		errs = append(errs, fmt.Sprintf("%s: %s = %v, want %v", where, field, g, w))
	}

	if exp.State != nil && *exp.State != got.State {
		mismatch("state", *exp.State, got.State)
	}
	if exp.Custodian != nil && *exp.Custodian != got.Custodian {
		mismatch("custodian", *exp.Custodian, got.Custodian)
	}
	if exp.Escrow != nil && *exp.Escrow != got.Escrow {
		mismatch("escrow", *exp.Escrow, got.Escrow)
	}
	if exp.Deficit != nil && *exp.Deficit != got.Deficit {
		mismatch("deficit", *exp.Deficit, got.Deficit)
	}
	if exp.LastSettlement != nil && *exp.LastSettlement != got.LastSettlement {
		mismatch("last_settlement", *exp.LastSettlement, got.LastSettlement)
	}
	if exp.Depositors != nil && !reflect.DeepEqual(exp.Depositors, got.Depositors) {
		mismatch("depositors", formatDepositors(exp.Depositors), formatDepositors(got.Depositors))
	}
	return errs
}

// formatDepositors renders a depositor map in key order.
func formatDepositors(m map[string]uint64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := "{"
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s:%d", k, m[k])
	}
	return s + "}"
}
