package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/config"
	"github.com/roach88/lifeplan/internal/ident"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string
	Driver     string

	// IDs and Clock override id generation and the wall clock (for testing).
	// If nil, UUIDv7 ids and the system clock are used.
	IDs   ident.Generator
	Clock ident.Clock

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the lifeplan CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lifeplan",
		Short: "lifeplan - household financial plans",
		Long: `Manage household financial plans stored in a local SQLite database:
plans and their versions, scenario rates, monthly actuals, life events
and housing assumptions.

Settings come from lifeplan.yaml (or --config), LIFEPLAN_* environment
variables and the global flags, in increasing precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ./lifeplan.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides database.path)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database/sql driver: sqlite3 (cgo) or sqlite (pure Go)")

	// Add subcommands
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewMonthlyCommand(opts))
	cmd.AddCommand(NewEventCommand(opts))
	cmd.AddCommand(NewHousingCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

// resolve loads the configuration and lets explicitly set flags override it.
func (opts *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	if changed(cmd, "format") {
		cfg.Output.Format = opts.Format
	}
	if changed(cmd, "db") {
		cfg.Database.Path = opts.Database
	}
	if changed(cmd, "driver") {
		cfg.Database.Driver = opts.Driver
	}

	// Validate format flag
	if !isValidFormat(cfg.Output.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", cfg.Output.Format, ValidFormats)
	}
	opts.Format = cfg.Output.Format
	opts.cfg = cfg
	return nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
