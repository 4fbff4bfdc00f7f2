package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stocksync/internal/engine"
)

// DrainResult is the JSON payload of the drain command.
type DrainResult struct {
	engine.Report
	Error string `json:"error,omitempty"`
}

// NewDrainCommand creates the drain command.
func NewDrainCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Replay queued movements once",
		Long: `Replay the queued movements once, oldest first.

Each movement is sent with the offline marker in its reason and removed only
after the stock service confirmed it. The pass stops at the first failure
so later movements never overtake an earlier one.

Exit codes:
  0 - Queue drained, or nothing to do while offline
  1 - Drain stopped on a failed movement
  2 - Command error (queue unavailable, bad configuration)

Examples:
  stocksync drain --remote https://stock.example.com
  stocksync drain --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrain(rootOpts, cmd)
		},
	}
	return cmd
}

func runDrain(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	out := opts.formatter(cmd)

	a, exitErr := opts.openApp(ctx, cmd.ErrOrStderr())
	if exitErr != nil {
		return out.Fail(ErrCodeConfig, nil, exitErr)
	}
	defer a.Close()

	report, err := a.Drain(ctx)
	if err != nil {
		return out.Fail(ErrCodeStore, nil, WrapExitError(ExitCommandError, "drain failed", err))
	}

	result := DrainResult{Report: report}
	if report.Err != nil {
		result.Error = report.Err.Error()
	}
	if err := out.Success(result, func(w io.Writer) { printReport(w, report) }); err != nil {
		return err
	}

	if report.Err != nil {
		return WrapExitError(ExitFailure, "drain aborted", report.Err)
	}
	return nil
}

func printReport(w io.Writer, r engine.Report) {
	switch {
	case r.Skipped:
		fmt.Fprintln(w, "Offline: nothing was sent.")
		return
	case r.Busy:
		fmt.Fprintln(w, "Another drain is running.")
		return
	}

	fmt.Fprintf(w, "Drain pass %d: %s\n", r.Pass, r.State)
	fmt.Fprintf(w, "  Confirmed:     %d/%d\n", r.Confirmed, r.Snapshot)
	if r.DeadLettered > 0 {
		fmt.Fprintf(w, "  Dead-lettered: %d\n", r.DeadLettered)
	}
	fmt.Fprintf(w, "  Remaining:     %d\n", r.Remaining)
	if r.Err != nil {
		fmt.Fprintf(w, "  Stopped:       %v\n", r.Err)
	}
}
