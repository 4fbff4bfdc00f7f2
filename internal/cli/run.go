package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Addr string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync agent",
		Long: `Run the sync agent until interrupted.

The agent watches connectivity, drains the queue on startup, whenever the
device comes back online and on the periodic timer, refreshes the status
snapshot, and serves GET /status, GET /pending, POST /drain and GET /metrics
on the local HTTP address.

Example:
  stocksync run --db ./stocksync.db --remote https://stock.example.com
  stocksync run --config /etc/stocksync.yaml --addr 127.0.0.1:9000 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "local HTTP address (overrides http.addr)")

	return cmd
}

func runAgent(opts *RunOptions, cmd *cobra.Command) error {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	a, exitErr := opts.openApp(ctx, cmd.ErrOrStderr())
	if exitErr != nil {
		return exitErr
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("error closing queue")
		}
	}()
	if opts.Addr != "" {
		a.Config.HTTP.Addr = opts.Addr
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			a.Logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	a.Logger.Info().
		Str("db", a.Config.Store.Path).
		Str("device_id", a.DeviceID).
		Str("addr", a.Config.HTTP.Addr).
		Msg("sync agent starting")
	fmt.Fprintln(cmd.OutOrStdout(), "Sync agent started. Press Ctrl-C to stop.")

	if err := a.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "sync agent error", err)
	}

	a.Logger.Info().Msg("sync agent stopped")
	return nil
}
