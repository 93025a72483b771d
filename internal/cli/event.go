package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/repository"
)

// NewEventCommand creates the event command group.
func NewEventCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Manage a version's life events",
	}
	cmd.AddCommand(newEventListCommand(rootOpts))
	cmd.AddCommand(newEventAddCommand(rootOpts))
	cmd.AddCommand(newEventDupCommand(rootOpts))
	cmd.AddCommand(newEventDeleteCommand(rootOpts))
	return cmd
}

func newEventListCommand(opts *RootOptions) *cobra.Command {
	var f repository.EventFilter
	var from, to, scope, cadence, dir string
	cmd := &cobra.Command{
		Use:   "list <version-id>",
		Short: "List a version's life events by start month",
		Example: `  lifeplan event list 0190... --scope upcoming
  lifeplan event list 0190... --from 2026-01 --to 2030-12 --direction expense`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.FromYm = domain.YearMonth(from)
			f.ToYm = domain.YearMonth(to)
			f.Scope = repository.EventScope(scope)
			f.Cadence = domain.Cadence(cadence)
			f.Direction = domain.FlowDirection(dir)
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				events, err := a.repos.Events.ListByVersion(ctx, args[0], f)
				return eventTable(events), err
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first start month, inclusive (yyyy-mm)")
	cmd.Flags().StringVar(&to, "to", "", "last start month, inclusive (yyyy-mm)")
	cmd.Flags().StringVar(&scope, "scope", string(repository.ScopeAll), "all|upcoming|past, relative to this month")
	cmd.Flags().StringVar(&f.EventType, "type", "", "only this event type")
	cmd.Flags().StringVar(&cadence, "cadence", "", "only this cadence (once|monthly)")
	cmd.Flags().StringVar(&dir, "direction", "", "only this direction (expense|income)")
	return cmd
}

func newEventAddCommand(opts *RootOptions) *cobra.Command {
	var in repository.NewEvent
	var start, cadence, dir string
	cmd := &cobra.Command{
		Use:   "add <version-id>",
		Short: "Add a life event to a version",
		Example: `  lifeplan event add 0190... --type car --title "New car" --start 2027-04 --amount 3000000
  lifeplan event add 0190... --type childcare --start 2026-04 --cadence monthly --months 36 --amount 30000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.StartYm = domain.YearMonth(start)
			in.Cadence = domain.Cadence(cadence)
			in.Direction = domain.FlowDirection(dir)
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				e, err := a.repos.Events.Create(ctx, args[0], in)
				return eventView(e), err
			})
		},
	}
	cmd.Flags().StringVar(&in.EventType, "type", "", "event type, e.g. car or education (required)")
	cmd.Flags().StringVar(&in.Title, "title", "", "event title")
	cmd.Flags().StringVar(&start, "start", "", "start month yyyy-mm (required)")
	cmd.Flags().StringVar(&cadence, "cadence", string(domain.CadenceOnce), "once|monthly")
	cmd.Flags().IntVar(&in.DurationMonths, "months", 0, "duration of a monthly event")
	cmd.Flags().Int64Var(&in.AmountYen, "amount", 0, "amount in yen per occurrence")
	cmd.Flags().StringVar(&dir, "direction", string(domain.FlowExpense), "expense|income")
	cmd.Flags().StringVar(&in.Note, "note", "", "free-form note")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func newEventDupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dup <event-id>",
		Short:         "Duplicate a life event within its version",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				e, err := a.repos.Events.Duplicate(ctx, args[0])
				return eventView(e), err
			})
		},
	}
}

func newEventDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <event-id>",
		Short:         "Delete a life event",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				if err := a.repos.Events.Delete(ctx, args[0]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Deleted event %s", args[0]), nil
			})
		},
	}
}
