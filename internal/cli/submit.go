package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/submit"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	ShopID    string
	ArticleID string
	Type      string
	Quantity  int64
	Reason    string
}

// SubmitResult is the JSON payload of the submit command.
type SubmitResult struct {
	submit.Outcome
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record one stock movement",
		Long: `Record one stock movement.

When online the movement is sent right away. When offline, when the queue
already holds older movements, or when the attempt fails, it is stored in
the local queue and delivered by a later drain. A queued movement is not an
error.

Exit codes:
  0 - Movement confirmed or queued
  1 - Movement rejected by validation (nothing stored)
  2 - Command error (queue unavailable, bad configuration)

Examples:
  stocksync submit --shop S1 --article A1 --type out --qty 3 --reason sale
  stocksync submit --shop S1 --article A2 --type in --qty 10 --mode offline`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ShopID, "shop", "", "shop id")
	cmd.Flags().StringVar(&opts.ArticleID, "article", "", "article id")
	cmd.Flags().StringVar(&opts.Type, "type", "", "movement type (in|out|adjust)")
	cmd.Flags().Int64Var(&opts.Quantity, "qty", 0, "quantity, greater than 0")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "free-form reason")

	return cmd
}

func runSubmit(opts *SubmitOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	a, exitErr := opts.openApp(ctx, cmd.ErrOrStderr())
	if exitErr != nil {
		return out.Fail(ErrCodeConfig, nil, exitErr)
	}
	defer a.Close()

	m := movement.Movement{
		ShopID:    opts.ShopID,
		ArticleID: opts.ArticleID,
		Kind:      movement.Kind(opts.Type),
		Quantity:  opts.Quantity,
		Reason:    opts.Reason,
	}

	outcome, err := a.Submit(ctx, m)
	if err != nil {
		var ve *movement.ValidationError
		if errors.As(err, &ve) {
			return out.Fail(ErrCodeInvalid, ve.Fields, WrapExitError(ExitFailure, "movement rejected", err))
		}
		return out.Fail(ErrCodeStore, nil, WrapExitError(ExitCommandError, "failed to store movement", err))
	}

	return out.Success(SubmitResult{Outcome: outcome}, func(w io.Writer) {
		printOutcome(w, outcome)
	})
}

func printOutcome(w io.Writer, o submit.Outcome) {
	m := o.Movement
	switch o.Status {
	case submit.Confirmed:
		fmt.Fprintf(w, "Confirmed: %s\n", m)
		if o.Response == nil {
			return
		}
		if sm, err := o.Response.StockMovement(); err == nil {
			fmt.Fprintf(w, "  Stock: %d -> %d\n", sm.OldValue, sm.NewValue)
		}
	case submit.Queued:
		fmt.Fprintf(w, "Queued #%d (%s): %s\n", o.LocalID, o.QueueReason, m)
		if o.Cause != nil {
			fmt.Fprintf(w, "  Cause: %v\n", o.Cause)
		}
	}
}
