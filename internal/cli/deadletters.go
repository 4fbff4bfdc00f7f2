package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/store"
)

// RequeueResult is the JSON payload of deadletters requeue.
type RequeueResult struct {
	DeadLetterID int64 `json:"dead_letter_id"`
	LocalID      int64 `json:"local_id"`
}

// NewDeadLettersCommand creates the deadletters command group.
func NewDeadLettersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "Inspect and requeue dead-lettered movements",
		Long: `Movements the stock service rejected sync.max_rejections times are moved
out of the queue so later movements can be delivered. They are kept here
until an operator requeues them.`,
	}
	cmd.AddCommand(newDeadLettersListCommand(rootOpts))
	cmd.AddCommand(newDeadLettersRequeueCommand(rootOpts))
	return cmd
}

func newDeadLettersListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List dead-lettered movements",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			a, exitErr := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if exitErr != nil {
				return out.Fail(ErrCodeConfig, nil, exitErr)
			}
			defer a.Close()

			letters, err := a.Store.ListDeadLetters(cmd.Context())
			if err != nil {
				return out.Fail(ErrCodeStore, nil, WrapExitError(ExitCommandError, "failed to read dead letters", err))
			}
			if letters == nil {
				letters = []movement.DeadLetter{}
			}
			return out.Success(letters, func(w io.Writer) { printDeadLetters(w, letters) })
		},
	}
}

func newDeadLettersRequeueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Move a dead letter back to the end of the queue",
		Long: `Move a dead letter back to the end of the queue.

The movement gets a new local id, so it is replayed after every movement
already queued.

Example:
  stocksync deadletters requeue 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := opts.formatter(cmd)
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return out.Fail(ErrCodeGeneric, nil, WrapExitError(ExitCommandError, "invalid dead letter id", err))
			}

			a, exitErr := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
			if exitErr != nil {
				return out.Fail(ErrCodeConfig, nil, exitErr)
			}
			defer a.Close()

			localID, err := a.Store.Requeue(cmd.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				return out.Fail(ErrCodeNotFound, nil, WrapExitError(ExitFailure, "no such dead letter", err))
			}
			if err != nil {
				return out.Fail(ErrCodeStore, nil, WrapExitError(ExitCommandError, "failed to requeue", err))
			}

			result := RequeueResult{DeadLetterID: id, LocalID: localID}
			return out.Success(result, func(w io.Writer) {
				fmt.Fprintf(w, "Dead letter %d requeued as #%d\n", id, localID)
			})
		},
	}
}

func printDeadLetters(w io.Writer, letters []movement.DeadLetter) {
	if len(letters) == 0 {
		fmt.Fprintln(w, "No dead letters.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLOCAL\tSHOP\tARTICLE\tTYPE\tQTY\tDEAD AT\tCAUSE")
	for _, d := range letters {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			d.ID, d.LocalID, d.ShopID, d.ArticleID, d.Kind, d.Quantity,
			d.DeadAt.Format(time.RFC3339), d.Cause)
	}
	_ = tw.Flush()
}
