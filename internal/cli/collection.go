package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/harberger/internal/config"
	"github.com/roach88/harberger/internal/engine"
	"github.com/roach88/harberger/internal/ledger"
)

// NewCollectionCommand creates the collection command group.
func NewCollectionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collection registrations",
	}
	cmd.AddCommand(newCollectionValidateCommand(rootOpts))
	cmd.AddCommand(newCollectionApplyCommand(rootOpts))
	cmd.AddCommand(newCollectionSetRateCommand(rootOpts))
	cmd.AddCommand(newCollectionListCommand(rootOpts))
	return cmd
}

// ValidationResult holds the outcome of validating a registry file.
type ValidationResult struct {
	Valid       bool                          `json:"valid"`
	Collections []ledger.CollectionParameters `json:"collections,omitempty"`
	Errors      []ValidationIssue             `json:"errors,omitempty"`
}

// ValidationIssue is one registry validation failure.
type ValidationIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func newCollectionValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <registry.cue>",
		Short: "Check a collection registry without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			collections, err := config.LoadCollections(args[0])
			if err != nil {
				return outputValidationError(out, err)
			}
			out.VerboseLog("Validated %d collection(s) in %s", len(collections), args[0])
			return out.Success(ValidationResult{Valid: true, Collections: collections}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %d collection(s) valid\n", len(collections))
				for _, c := range collections {
					fmt.Fprintf(w, "  %s\n", c.CollectionID)
				}
			})
		},
	}
}

// outputValidationError reports a registry load failure with its position.
func outputValidationError(out *OutputFormatter, err error) error {
	issue := ValidationIssue{Message: err.Error()}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		issue.Field = cfgErr.Field
		issue.Message = cfgErr.Message
		if cfgErr.Pos.IsValid() {
			issue.Line = cfgErr.Pos.Line()
		}
	}
	if out.JSON() {
		_ = out.Error(ErrCodeInvalidConfig, "validation failed", ValidationResult{Errors: []ValidationIssue{issue}})
	} else {
		fmt.Fprintf(out.Writer, "✗ %v\n", err)
	}
	return &ExitError{Code: ExitFailure, Message: ErrCodeInvalidConfig, Err: err, reported: true}
}

// ApplyAction describes what apply did with one collection.
type ApplyAction struct {
	CollectionID string `json:"collection_id"`
	Action       string `json:"action"` // registered | rate_updated | unchanged
	PreviousRate uint64 `json:"previous_rate,omitempty"`
	Rate         uint64 `json:"rate"`
}

func newCollectionApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags
	var authority string
	cmd := &cobra.Command{
		Use:   "apply <registry.cue>",
		Short: "Register collections and reconcile their rates",
		Long: `Bring the database in line with a CUE collection registry.

Collections missing from the database are registered. For registered
collections the admin authority and denomination must match the file;
a differing rate is changed through UpdateRate, which needs --authority.
Collections absent from the file are left alone.

Example:
  harberger collection apply collections.cue --authority "$ADMIN_TOKEN"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			collections, err := config.LoadCollections(args[0])
			if err != nil {
				return outputValidationError(out, err)
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			at := flags.at(rootOpts, cmd)
			actions := make([]ApplyAction, 0, len(collections))
			for _, want := range collections {
				action, err := applyCollection(commandContext(cmd), s.engine, want, authority, at)
				if err != nil {
					return s.out.Fail(err)
				}
				s.logger.Debug("collection applied", "collection", want.CollectionID, "action", action.Action)
				actions = append(actions, action)
			}
			return s.out.Success(actions, func(w io.Writer) {
				for _, a := range actions {
					switch a.Action {
					case "rate_updated":
						fmt.Fprintf(w, "%-12s %s (rate %s -> %s)\n", a.Action, a.CollectionID, s.out.Amount(a.PreviousRate), s.out.Amount(a.Rate))
					default:
						fmt.Fprintf(w, "%-12s %s\n", a.Action, a.CollectionID)
					}
				}
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&authority, "authority", "", "admin authority token, required to change a rate")
	return cmd
}

func applyCollection(ctx context.Context, eng *engine.Engine, want ledger.CollectionParameters, authority string, at uint64) (ApplyAction, error) {
	action := ApplyAction{CollectionID: want.CollectionID, Rate: want.RatePerTimeUnit}

	have, err := eng.Collection(ctx, want.CollectionID)
	if ledger.IsCode(err, ledger.ErrCodeCollectionNotFound) {
		if _, err := eng.RegisterCollection(ctx, engine.RegisterCollectionRequest{Collection: want, At: at}); err != nil {
			return ApplyAction{}, err
		}
		action.Action = "registered"
		return action, nil
	}
	if err != nil {
		return ApplyAction{}, err
	}

	switch {
	case have.AdminAuthorityID != want.AdminAuthorityID:
		return ApplyAction{}, fmt.Errorf("collection %s: admin authority cannot be changed", want.CollectionID)
	case have.DenominationAssetID != want.DenominationAssetID:
		return ApplyAction{}, fmt.Errorf("collection %s: denomination cannot be changed (%s registered, %s in file)",
			want.CollectionID, have.DenominationAssetID, want.DenominationAssetID)
	case have.RatePerTimeUnit == want.RatePerTimeUnit:
		action.Action = "unchanged"
		return action, nil
	case authority == "":
		return ApplyAction{}, fmt.Errorf("collection %s: rate differs, --authority is required", want.CollectionID)
	}

	res, err := eng.UpdateRate(ctx, engine.UpdateRateRequest{
		CollectionID:   want.CollectionID,
		AuthorityToken: authority,
		Rate:           want.RatePerTimeUnit,
		At:             at,
	})
	if err != nil {
		return ApplyAction{}, err
	}
	action.Action = "rate_updated"
	action.PreviousRate = res.PreviousRate
	return action, nil
}

func newCollectionSetRateCommand(rootOpts *RootOptions) *cobra.Command {
	var flags opFlags
	var authority string
	cmd := &cobra.Command{
		Use:   "set-rate <collection> <rate>",
		Short: "Change a collection's tax rate",
		Long: `Change the tax rate of a collection.

Every asset of the collection is settled at --at under the old rate first,
so the new rate applies only from --at onward.

Example:
  harberger collection set-rate punks 3 --authority "$ADMIN_TOKEN"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			rate, err := parseAmount(args[1], rootOpts.Decimals)
			if err != nil {
				return out.FailWith(ErrCodeInvalidArgs, ExitCommandError, err)
			}
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.engine.UpdateRate(commandContext(cmd), engine.UpdateRateRequest{
				RequestID:      flags.RequestID,
				CollectionID:   args[0],
				AuthorityToken: authority,
				Rate:           rate,
				At:             flags.at(rootOpts, cmd),
			})
			if err != nil {
				return s.out.Fail(err)
			}
			return s.out.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Rate of %s changed %s -> %s\n", res.CollectionID, s.out.Amount(res.PreviousRate), s.out.Amount(res.Rate))
				for _, as := range res.Settlements {
					fmt.Fprintf(w, "%s\n", as.AssetID)
					writeSettlement(w, s.out, as.Settlement)
				}
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&authority, "authority", "", "admin authority token (required)")
	_ = cmd.MarkFlagRequired("authority")
	return cmd
}

func newCollectionListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			collections, err := s.engine.Collections(commandContext(cmd))
			if err != nil {
				return s.out.Fail(err)
			}
			return s.out.Success(collections, func(w io.Writer) {
				if len(collections) == 0 {
					fmt.Fprintln(w, "No collections registered.")
					return
				}
				for _, c := range collections {
					writeCollection(w, s.out, c)
				}
			})
		},
	}
}

func writeCollection(w io.Writer, out *OutputFormatter, c ledger.CollectionParameters) {
	fmt.Fprintf(w, "%s  denomination=%s rate=%s admin=%s\n",
		c.CollectionID, c.DenominationAssetID, out.Amount(c.RatePerTimeUnit), c.AdminAuthorityID)
}
