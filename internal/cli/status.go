package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/stocksync/internal/movement"
	"github.com/roach88/stocksync/internal/status"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and queue depth",
		Long: `Show whether the device is online and how many movements wait in the queue.

Examples:
  stocksync status
  stocksync status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	a, exitErr := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
	if exitErr != nil {
		return out.Fail(ErrCodeConfig, nil, exitErr)
	}
	defer a.Close()

	snap := a.Reporter.Refresh(cmd.Context())
	return out.Success(snap, func(w io.Writer) { printSnapshot(w, snap) })
}

func printSnapshot(w io.Writer, s status.Snapshot) {
	online := "offline"
	if s.Online {
		online = "online"
	}
	fmt.Fprintf(w, "Connectivity: %s\n", online)
	fmt.Fprintf(w, "Pending:      %d\n", s.Pending)
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List queued movements in replay order",
		Long: `List the queued movements in the order they will be replayed.

Examples:
  stocksync pending
  stocksync pending --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(rootOpts, cmd)
		},
	}
}

func runPending(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	a, exitErr := opts.openApp(cmd.Context(), cmd.ErrOrStderr())
	if exitErr != nil {
		return out.Fail(ErrCodeConfig, nil, exitErr)
	}
	defer a.Close()

	records, err := a.Store.ListPending(cmd.Context())
	if err != nil {
		return out.Fail(ErrCodeStore, nil, WrapExitError(ExitCommandError, "failed to read queue", err))
	}

	return out.Success(records, func(w io.Writer) { printRecords(w, records) })
}

func printRecords(w io.Writer, records []movement.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "Queue is empty.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSHOP\tARTICLE\tTYPE\tQTY\tREASON\tCAPTURED\tATTEMPTS")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%d\n",
			r.LocalID, r.ShopID, r.ArticleID, r.Kind, r.Quantity, r.Reason,
			r.CapturedAt.Format(time.RFC3339), r.Attempts)
	}
	_ = tw.Flush()
}
