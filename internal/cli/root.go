package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/stocksync/internal/app"
	"github.com/roach88/stocksync/internal/config"
	"github.com/roach88/stocksync/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigPath string
	Database   string
	RemoteURL  string
	Mode       string

	// AppOptions are passed to app.New (for testing).
	AppOptions []app.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stocksync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stocksync",
		Short: "Offline-first stock movement submission",
		Long: `stocksync records stock movements for a shop and delivers them to the
stock service. Movements captured while the network is down are kept in a
local queue and replayed in their original order once connectivity returns.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	flags.StringVar(&opts.Database, "db", "", "path to SQLite queue (overrides store.path)")
	flags.StringVar(&opts.RemoteURL, "remote", "", "stock service base URL (overrides remote.base_url)")
	flags.StringVar(&opts.Mode, "mode", "", "connectivity mode: auto, online or offline")

	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewPendingCommand(opts))
	cmd.AddCommand(NewDeadLettersCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// loadConfig resolves the configuration and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if o.Database != "" {
		cfg.Store.Path = o.Database
	}
	if o.RemoteURL != "" {
		cfg.Remote.BaseURL = o.RemoteURL
	}
	if o.Mode != "" {
		cfg.Connectivity.Mode = o.Mode
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, config.Validate(cfg)
}

// openApp builds the application for a command. Logs go to logOut.
func (o *RootOptions) openApp(ctx context.Context, logOut io.Writer) (*app.App, *ExitError) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	logger, err := logging.New(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level}, logOut)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	a, err := app.New(ctx, cfg, logger, o.AppOptions...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	return a, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
