// Package export writes a plan's monthly records to an xlsx workbook.
package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/repository"
)

// Sheet names.
const (
	RecordsSheet = "monthly"
	ItemsSheet   = "items"
)

var (
	recordHeaders = []string{"ym", "income", "expense", "balance", "assets", "liabilities", "net worth", "finalized", "note"}
	itemHeaders   = []string{"ym", "kind", "category", "amount", "note"}

	colWidths = []struct {
		sheet, col string
		width      float64
	}{
		{RecordsSheet, "A", 10},
		{RecordsSheet, "I", 30},
		{ItemsSheet, "C", 15},
		{ItemsSheet, "E", 30},
	}
)

// MonthlyWorkbook builds a workbook of the plan's records in the given
// year (0 for all years), ascending by month, with their items on a
// second sheet.
func MonthlyWorkbook(ctx context.Context, monthly repository.MonthlyRepository, planID string, year int) (*excelize.File, error) {
	records, err := monthly.ListByPlan(ctx, planID, repository.MonthlyQuery{Year: year, Order: repository.Ascending})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	// NewFile starts with "Sheet1"; rename it rather than leave it empty.
	if err := f.SetSheetName("Sheet1", RecordsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, RecordsSheet, 1, toAny(recordHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, ItemsSheet, 1, toAny(itemHeaders)); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, r := range records {
		if err := writeRow(f, RecordsSheet, i+2, recordRow(r)); err != nil {
			return nil, err
		}
		items, err := monthly.ListItems(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			row := []any{string(r.Ym), string(it.Kind), it.Category, it.AmountYen, it.Note}
			if err := writeRow(f, ItemsSheet, itemRow, row); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	for _, w := range colWidths {
		if err := f.SetColWidth(w.sheet, w.col, w.col, w.width); err != nil {
			return nil, fmt.Errorf("set %s!%s width: %w", w.sheet, w.col, err)
		}
	}
	return f, nil
}

// WriteMonthly writes the workbook built by MonthlyWorkbook to w.
func WriteMonthly(ctx context.Context, w io.Writer, monthly repository.MonthlyRepository, planID string, year int) error {
	f, err := MonthlyWorkbook(ctx, monthly, planID, year)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func recordRow(r domain.MonthlyRecord) []any {
	return []any{
		string(r.Ym),
		r.IncomeTotalYen,
		r.ExpenseTotalYen,
		r.BalanceYen(),
		r.AssetsBalanceYen,
		r.LiabilitiesBalanceYen,
		r.NetWorthYen(),
		r.IsFinalized,
		r.Note,
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
