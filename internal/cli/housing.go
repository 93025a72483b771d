package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/domain"
)

// NewHousingCommand creates the housing command group.
func NewHousingCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "housing",
		Short: "Compare and select a version's housing assumptions",
	}
	cmd.AddCommand(newHousingListCommand(rootOpts))
	cmd.AddCommand(newHousingSelectCommand(rootOpts))
	cmd.AddCommand(newHousingPresetCommand(rootOpts))
	return cmd
}

func newHousingListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <version-id>",
		Short:         "List a version's housing assumptions; * marks the selection",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				rows, err := a.repos.Housing.ListByVersion(ctx, args[0])
				return housingTable(rows), err
			})
		},
	}
}

func newHousingSelectCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "select <version-id> <type>",
		Short:         "Select one housing type, clearing the others",
		Example:       `  lifeplan housing select 0190... rent`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				h, err := a.repos.Housing.SetSelected(ctx, args[0], domain.HousingType(args[1]))
				return housingView{h}, err
			})
		},
	}
}

func newHousingPresetCommand(opts *RootOptions) *cobra.Command {
	var preset string
	cmd := &cobra.Command{
		Use:   "preset <version-id> <type>",
		Short: "Seed a housing type from a preset if it has no row yet",
		Long: `Create the housing row of a type from the preset's defaults. An existing
row is returned unchanged.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				h, err := a.repos.Housing.ApplyPreset(ctx, args[0], domain.HousingType(args[1]), domain.HousingPreset(preset))
				return housingView{h}, err
			})
		},
	}
	cmd.Flags().StringVar(&preset, "preset", string(domain.PresetBase), "conservative|base|optimistic")
	return cmd
}
