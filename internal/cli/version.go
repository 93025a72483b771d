package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/repository"
)

// NewVersionCommand creates the version command group.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Manage plan versions and their scenario rates",
	}
	cmd.AddCommand(newVersionListCommand(rootOpts))
	cmd.AddCommand(newVersionNewCommand(rootOpts))
	cmd.AddCommand(newVersionUseCommand(rootOpts))
	cmd.AddCommand(newVersionDeleteCommand(rootOpts))
	cmd.AddCommand(newVersionScenariosCommand(rootOpts))
	return cmd
}

func newVersionListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <plan-id>",
		Short:         "List a plan's versions, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				versions, err := a.repos.Versions.ListByPlan(ctx, args[0])
				return versionTable(versions), err
			})
		},
	}
}

func newVersionNewCommand(opts *RootOptions) *cobra.Command {
	var in repository.NewVersion
	cmd := &cobra.Command{
		Use:   "new <plan-id>",
		Short: "Create a version from the current one and make it current",
		Long: `Clone the current version of a plan, with its scenario rates, housing
assumptions and life events, into a new version that becomes current.`,
		Example:       `  lifeplan version new 0190... --title "after raise" --note "salary +5%"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				v, err := a.repos.Versions.CreateFromCurrent(ctx, args[0], in)
				return versionView(v), err
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "version title (default v<n>)")
	cmd.Flags().StringVar(&in.ChangeNote, "note", "", "what changed")
	return cmd
}

func newVersionUseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "use <plan-id> <version-id>",
		Short:         "Make a version the plan's current one",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				v, err := a.repos.Versions.SetCurrent(ctx, args[0], args[1])
				return versionView(v), err
			})
		},
	}
}

func newVersionDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <version-id>",
		Short:         "Delete a version that is not current",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				if err := a.repos.Versions.Delete(ctx, args[0]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Deleted version %s", args[0]), nil
			})
		},
	}
}

func newVersionScenariosCommand(opts *RootOptions) *cobra.Command {
	var scenario, wage, inflation, ret string
	cmd := &cobra.Command{
		Use:   "scenarios <version-id>",
		Short: "Show or change a version's scenario rates",
		Long: `Show the conservative, base and optimistic rates of a version. With
--scenario, first overwrite that scenario with --wage, --inflation and
--return, given as fractions (0.015 is 1.5%).`,
		Example: `  lifeplan version scenarios 0190...
  lifeplan version scenarios 0190... --scenario base --wage 0.02 --inflation 0.01 --return 0.04`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rates map[domain.ScenarioKey]domain.ScenarioRates
			if scenario != "" {
				r, err := parseRates(wage, inflation, ret)
				if err != nil {
					return err
				}
				rates = map[domain.ScenarioKey]domain.ScenarioRates{domain.ScenarioKey(scenario): r}
			}
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				if rates != nil {
					set, err := a.repos.Versions.UpsertScenarioSet(ctx, args[0], rates)
					return scenarioTable(set), err
				}
				set, err := a.repos.Versions.GetScenarioSet(ctx, args[0])
				return scenarioTable(set), err
			})
		},
	}
	cmd.Flags().StringVar(&scenario, "scenario", "", "scenario to overwrite (conservative|base|optimistic)")
	cmd.Flags().StringVar(&wage, "wage", "0", "annual wage growth rate")
	cmd.Flags().StringVar(&inflation, "inflation", "0", "annual inflation rate")
	cmd.Flags().StringVar(&ret, "return", "0", "annual investment return rate")
	return cmd
}

func parseRates(wage, inflation, ret string) (domain.ScenarioRates, error) {
	var r domain.ScenarioRates
	for _, f := range []struct {
		name string
		in   string
		dst  *decimal.Decimal
	}{
		{"wage", wage, &r.WageGrowthRate},
		{"inflation", inflation, &r.InflationRate},
		{"return", ret, &r.InvestmentReturnRate},
	} {
		d, err := decimal.NewFromString(f.in)
		if err != nil {
			return r, fmt.Errorf("invalid --%s %q: %w", f.name, f.in, err)
		}
		*f.dst = d
	}
	return r, nil
}
