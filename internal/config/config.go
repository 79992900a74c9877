// Package config loads collection registries written in CUE.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/harberger/internal/ledger"
)

//go:embed schema.cue
var schemaCUE string

// Error is a registry validation failure with its source position when
// CUE reports one.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadCollections reads and validates a registry file.
// Collections are returned sorted by ID.
func LoadCollections(path string) ([]ledger.CollectionParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseCollections(data, path)
}

// ParseCollections validates registry source against the embedded schema.
// filename is used only in error positions.
func ParseCollections(data []byte, filename string) ([]ledger.CollectionParameters, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile registry schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	collectionsVal := unified.LookupPath(cue.ParsePath("collections"))
	if !collectionsVal.Exists() {
		return nil, &Error{Field: "collections", Message: "no collections declared", Pos: v.Pos()}
	}

	iter, err := collectionsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []ledger.CollectionParameters
	for iter.Next() {
		p, err := parseCollection(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, &Error{Field: "collections", Message: "no collections declared", Pos: collectionsVal.Pos()}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CollectionID < out[j].CollectionID
	})
	return out, nil
}

func parseCollection(id string, v cue.Value) (ledger.CollectionParameters, error) {
	p := ledger.CollectionParameters{CollectionID: id}

	admin, err := v.LookupPath(cue.ParsePath("admin_authority")).String()
	if err != nil {
		return p, formatCUEError(err)
	}
	p.AdminAuthorityID = admin

	denom, err := v.LookupPath(cue.ParsePath("denomination")).String()
	if err != nil {
		return p, formatCUEError(err)
	}
	p.DenominationAssetID = denom

	rate, err := v.LookupPath(cue.ParsePath("rate_per_time_unit")).Uint64()
	if err != nil {
		return p, formatCUEError(err)
	}
	p.RatePerTimeUnit = rate

	if err := p.Validate(); err != nil {
		return p, &Error{Field: "collections." + id, Message: err.Error(), Pos: v.Pos()}
	}
	return p, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
