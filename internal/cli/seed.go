package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/fixture"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load plans, monthly records and events from a YAML fixture",
		Long: `Validate a YAML fixture and create every plan in it with the plan wizard,
then its scenario overrides, monthly records and life events. The whole
file is stored in one transaction; any error leaves the database as it
was.`,
		Example:       `  lifeplan seed --db demo.db testdata/household.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				f, err := fixture.Load(args[0])
				if err != nil {
					return nil, err
				}
				a.out.VerboseLog("Fixture: %s (%d plans)", args[0], len(f.Plans))
				sum, err := fixture.NewSeeder(a.repos, a.planner, a.logger).Seed(ctx, f)
				return seedView(sum), err
			})
		},
	}
}
