package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/export"
	"github.com/roach88/lifeplan/internal/repository"
)

// NewMonthlyCommand creates the monthly command group.
func NewMonthlyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Record monthly actuals and their line items",
	}
	cmd.AddCommand(newMonthlyListCommand(rootOpts))
	cmd.AddCommand(newMonthlySetCommand(rootOpts))
	cmd.AddCommand(newMonthlyCopyCommand(rootOpts))
	cmd.AddCommand(newMonthlyDeleteCommand(rootOpts))
	cmd.AddCommand(newMonthlyItemsCommand(rootOpts))
	cmd.AddCommand(newMonthlyExportCommand(rootOpts))
	return cmd
}

func newMonthlyListCommand(opts *RootOptions) *cobra.Command {
	var (
		year  int
		order string
	)
	cmd := &cobra.Command{
		Use:           "list <plan-id>",
		Short:         "List a plan's monthly records",
		Example:       `  lifeplan monthly list 0190... --year 2025 --order asc`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := repository.MonthlyQuery{Year: year, Order: repository.SortOrder(order)}
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				records, err := a.repos.Monthly.ListByPlan(ctx, args[0], q)
				return monthlyTable(records), err
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only this calendar year (0 for all)")
	cmd.Flags().StringVar(&order, "order", string(repository.Descending), "sort by month (asc|desc)")
	return cmd
}

func newMonthlySetCommand(opts *RootOptions) *cobra.Command {
	var (
		income, expense, assets, liabilities int64
		finalized                            bool
		note                                 string
	)
	cmd := &cobra.Command{
		Use:   "set <plan-id> <yyyy-mm>",
		Short: "Create or update the record of a month",
		Long: `Create the month's record, or update it if it exists. Only the flags
given are written; on create the others are zero.`,
		Example:       `  lifeplan monthly set 0190... 2025-04 --income 520000 --expense 410000 --final`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch repository.MonthlyPatch
			if changed(cmd, "income") {
				patch.IncomeTotalYen = &income
			}
			if changed(cmd, "expense") {
				patch.ExpenseTotalYen = &expense
			}
			if changed(cmd, "assets") {
				patch.AssetsBalanceYen = &assets
			}
			if changed(cmd, "liabilities") {
				patch.LiabilitiesBalanceYen = &liabilities
			}
			if changed(cmd, "final") {
				patch.IsFinalized = &finalized
			}
			if changed(cmd, "note") {
				patch.Note = &note
			}
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				rec, err := a.repos.Monthly.UpsertByYm(ctx, args[0], domain.YearMonth(args[1]), patch)
				return monthlyView(rec), err
			})
		},
	}
	cmd.Flags().Int64Var(&income, "income", 0, "total income in yen")
	cmd.Flags().Int64Var(&expense, "expense", 0, "total expense in yen")
	cmd.Flags().Int64Var(&assets, "assets", 0, "assets balance in yen")
	cmd.Flags().Int64Var(&liabilities, "liabilities", 0, "liabilities balance in yen")
	cmd.Flags().BoolVar(&finalized, "final", false, "mark the month finalized")
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	return cmd
}

func newMonthlyCopyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "copy <plan-id> <yyyy-mm>",
		Short:         "Start a month from the previous month's figures",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				rec, err := a.repos.Monthly.CopyFromPreviousMonth(ctx, args[0], domain.YearMonth(args[1]))
				return monthlyView(rec), err
			})
		},
	}
}

func newMonthlyDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <plan-id> <yyyy-mm>",
		Short:         "Delete a month's record and its items",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				if err := a.repos.Monthly.DeleteByYm(ctx, args[0], domain.YearMonth(args[1])); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Deleted %s of plan %s", args[1], args[0]), nil
			})
		},
	}
}

func newMonthlyItemsCommand(opts *RootOptions) *cobra.Command {
	var specs []string
	cmd := &cobra.Command{
		Use:   "items <plan-id> <yyyy-mm>",
		Short: "Show or replace a month's line items",
		Long: `Show the line items of a month's record. With --item, replace them all;
each --item is kind:category:amount[:note].`,
		Example:       `  lifeplan monthly items 0190... 2025-04 --item income:salary:520000 --item "expense:rent:120000:incl. parking"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseItems(specs)
			if err != nil {
				return err
			}
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				rec, err := a.repos.Monthly.GetByYm(ctx, args[0], domain.YearMonth(args[1]))
				if err != nil {
					return nil, err
				}
				if changed(cmd, "item") {
					out, err := a.repos.Monthly.ReplaceItems(ctx, rec.ID, items)
					return itemTable(out), err
				}
				out, err := a.repos.Monthly.ListItems(ctx, rec.ID)
				return itemTable(out), err
			})
		},
	}
	cmd.Flags().StringArrayVar(&specs, "item", nil, "line item kind:category:amount[:note] (repeatable)")
	return cmd
}

func parseItems(specs []string) ([]repository.NewItem, error) {
	items := make([]repository.NewItem, 0, len(specs))
	for _, s := range specs {
		parts := strings.SplitN(s, ":", 4)
		if len(parts) < 3 {
			return nil, fmt.Errorf("invalid --item %q: want kind:category:amount[:note]", s)
		}
		amount, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --item %q: amount: %w", s, err)
		}
		it := repository.NewItem{Kind: domain.ItemKind(parts[0]), Category: parts[1], AmountYen: amount}
		if len(parts) == 4 {
			it.Note = parts[3]
		}
		items = append(items, it)
	}
	return items, nil
}

func newMonthlyExportCommand(opts *RootOptions) *cobra.Command {
	var (
		out  string
		year int
	)
	cmd := &cobra.Command{
		Use:           "export <plan-id>",
		Short:         "Write a plan's monthly records to an xlsx workbook",
		Example:       `  lifeplan monthly export 0190... --year 2025 --out 2025.xlsx`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) (any, error) {
				f, err := export.MonthlyWorkbook(ctx, a.repos.Monthly, args[0], year)
				if err != nil {
					return nil, err
				}
				defer f.Close()
				if err := f.SaveAs(out); err != nil {
					return nil, fmt.Errorf("write %s: %w", out, err)
				}
				a.out.VerboseLog("Sheets: %v", f.GetSheetList())
				return fmt.Sprintf("Wrote %s", out), nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output .xlsx path (required)")
	cmd.Flags().IntVar(&year, "year", 0, "only this calendar year (0 for all)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

