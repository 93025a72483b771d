package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/repository"
	"github.com/roach88/lifeplan/internal/usecase"
)

// NewPlanCommand creates the plan command group.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create, list and manage plans",
	}
	cmd.AddCommand(newPlanListCommand(rootOpts))
	cmd.AddCommand(newPlanCreateCommand(rootOpts))
	cmd.AddCommand(newPlanShowCommand(rootOpts))
	cmd.AddCommand(newPlanUpdateCommand(rootOpts))
	cmd.AddCommand(newPlanArchiveCommand(rootOpts, true))
	cmd.AddCommand(newPlanArchiveCommand(rootOpts, false))
	cmd.AddCommand(newPlanDeleteCommand(rootOpts))
	return cmd
}

func newPlanListCommand(opts *RootOptions) *cobra.Command {
	var (
		filter repository.PlanFilter
		status string
		sort   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plans, most recently changed first",
		Example: `  lifeplan plan list
  lifeplan plan list --status archived --sort createdAt
  lifeplan plan list --query tanaka`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = domain.PlanStatus(status)
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				plans, err := a.repos.Plans.List(ctx, filter, repository.PlanSort(sort))
				return planTable(plans), err
			})
		},
	}
	cmd.Flags().StringVar(&filter.UserID, "user", "", "only plans of this user")
	cmd.Flags().StringVar(&status, "status", "", "only plans in this status (active|archived)")
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "case-insensitive substring of the plan name")
	cmd.Flags().StringVar(&sort, "sort", string(repository.SortByUpdatedAt), "sort key (updatedAt|createdAt)")
	return cmd
}

func newPlanCreateCommand(opts *RootOptions) *cobra.Command {
	var (
		in      usecase.WizardInput
		housing string
		preset  string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a plan with its initial version and defaults",
		Long: `Create a plan, its initial version, the three scenario rate sets and the
four housing assumption rows in one transaction. The selected housing type
defaults to the first seeded type.`,
		Example: `  lifeplan plan create "Tanaka household" --housing condo
  lifeplan plan create "Solo" --preset conservative --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			in.HousingType = domain.HousingType(housing)
			in.Preset = domain.HousingPreset(preset)
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				res, err := a.planner.CreatePlanWizard(ctx, in)
				return wizardView(res), err
			})
		},
	}
	cmd.Flags().StringVar(&in.UserID, "user", "", "owning user id")
	cmd.Flags().StringVar(&in.HouseholdType, "household", "", "household type label")
	cmd.Flags().StringVar(&housing, "housing", "", "housing type to select (high_performance|detached|condo|rent)")
	cmd.Flags().StringVar(&preset, "preset", string(domain.PresetBase), "housing preset (conservative|base|optimistic)")
	return cmd
}

func newPlanShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <plan-id>",
		Short:         "Show a plan and its current version",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				p, err := a.repos.Plans.Get(ctx, args[0])
				if err != nil {
					return nil, err
				}
				view := planView{Plan: p}
				current, err := a.repos.Versions.GetCurrent(ctx, p.ID)
				switch {
				case err == nil:
					view.Current = &current
				case !repository.IsNotFound(err):
					return nil, err
				}
				return view, nil
			})
		},
	}
}

func newPlanUpdateCommand(opts *RootOptions) *cobra.Command {
	var name, household string
	cmd := &cobra.Command{
		Use:           "update <plan-id>",
		Short:         "Change a plan's name or household type",
		Example:       `  lifeplan plan update 0190... --name "Tanaka family"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch repository.PlanPatch
			if changed(cmd, "name") {
				patch.Name = &name
			}
			if changed(cmd, "household") {
				patch.HouseholdType = &household
			}
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				p, err := a.repos.Plans.Update(ctx, args[0], patch)
				return planView{Plan: p}, err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new plan name")
	cmd.Flags().StringVar(&household, "household", "", "new household type")
	return cmd
}

// newPlanArchiveCommand builds "archive" or, with archive false, "restore".
func newPlanArchiveCommand(opts *RootOptions, archive bool) *cobra.Command {
	use, short := "restore <plan-id>", "Return an archived plan to active"
	if archive {
		use, short = "archive <plan-id>", "Archive a plan"
	}
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				change := a.repos.Plans.Restore
				if archive {
					change = a.repos.Plans.Archive
				}
				p, err := change(ctx, args[0])
				return planView{Plan: p}, err
			})
		},
	}
}

func newPlanDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan with its versions, records and events",
		Long: `Delete a plan and everything it owns: versions, scenario rates, housing
assumptions, life events, monthly records and their items. Deleting a
missing plan succeeds.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				if err := a.repos.Plans.Delete(ctx, args[0]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Deleted plan %s", args[0]), nil
			})
		},
	}
}
