package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/fixture"
	"github.com/roach88/lifeplan/internal/usecase"
)

// yen formats an amount of yen for display, e.g. ¥1,234,000.
func yen(v int64) string {
	return money.New(v, money.JPY).Display()
}

func yenPtr(v *int64) string {
	if v == nil {
		return "-"
	}
	return yen(*v)
}

// percent formats a fractional rate, e.g. 0.015 as 1.50%.
func percent(d decimal.Decimal) string {
	return d.Shift(2).StringFixed(2) + "%"
}

func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

type planTable []domain.Plan

func (t planTable) RenderText(w io.Writer) error {
	if len(t) == 0 {
		_, err := fmt.Fprintln(w, "No plans")
		return err
	}
	rows := make([][]string, len(t))
	for i, p := range t {
		rows[i] = []string{p.ID, p.Name, string(p.Status), orDash(p.UserID), p.UpdatedAt.String()}
	}
	return table(w, []string{"ID", "NAME", "STATUS", "USER", "UPDATED"}, rows)
}

type planView struct {
	Plan    domain.Plan         `json:"plan"`
	Current *domain.PlanVersion `json:"currentVersion,omitempty"`
}

func (v planView) RenderText(w io.Writer) error {
	p := v.Plan
	fmt.Fprintf(w, "Plan %s\n", p.ID)
	fmt.Fprintf(w, "  Name:      %s\n", p.Name)
	fmt.Fprintf(w, "  Status:    %s\n", p.Status)
	fmt.Fprintf(w, "  User:      %s\n", orDash(p.UserID))
	fmt.Fprintf(w, "  Household: %s\n", orDash(p.HouseholdType))
	fmt.Fprintf(w, "  Updated:   %s\n", p.UpdatedAt)
	if v.Current != nil {
		fmt.Fprintf(w, "  Current:   v%d %s (%s)\n", v.Current.VersionNo, v.Current.Title, v.Current.ID)
	}
	return nil
}

type wizardView usecase.WizardResult

func (v wizardView) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Created plan %s (%s)\n", v.Plan.ID, v.Plan.Name)
	fmt.Fprintf(w, "  Version:   v%d %s\n", v.Version.VersionNo, v.Version.ID)
	for _, h := range v.Housing {
		if h.IsSelected {
			fmt.Fprintf(w, "  Housing:   %s\n", h.HousingType)
		}
	}
	fmt.Fprintf(w, "  Scenarios: %d\n", len(v.Scenarios))
	return nil
}

type versionTable []domain.PlanVersion

func (t versionTable) RenderText(w io.Writer) error {
	rows := make([][]string, len(t))
	for i, v := range t {
		mark := ""
		if v.IsCurrent {
			mark = "*"
		}
		rows[i] = []string{mark, fmt.Sprintf("v%d", v.VersionNo), v.ID, orDash(v.Title), orDash(v.ChangeNote), yenPtr(v.ProjectedAssetsYen)}
	}
	return table(w, []string{"", "NO", "ID", "TITLE", "NOTE", "PROJECTED"}, rows)
}

type versionView domain.PlanVersion

func (v versionView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Version v%d %s of plan %s (current: %t)\n", v.VersionNo, v.ID, v.PlanID, v.IsCurrent)
	return err
}

type scenarioTable domain.ScenarioSet

func (t scenarioTable) RenderText(w io.Writer) error {
	var rows [][]string
	for _, k := range domain.ScenarioKeys {
		s, ok := t[k]
		if !ok {
			continue
		}
		rows = append(rows, []string{string(k), percent(s.WageGrowthRate), percent(s.InflationRate), percent(s.InvestmentReturnRate)})
	}
	return table(w, []string{"SCENARIO", "WAGE", "INFLATION", "RETURN"}, rows)
}

type monthlyTable []domain.MonthlyRecord

func (t monthlyTable) RenderText(w io.Writer) error {
	if len(t) == 0 {
		_, err := fmt.Fprintln(w, "No monthly records")
		return err
	}
	rows := make([][]string, len(t))
	for i, r := range t {
		final := ""
		if r.IsFinalized {
			final = "yes"
		}
		rows[i] = []string{string(r.Ym), yen(r.IncomeTotalYen), yen(r.ExpenseTotalYen), yen(r.BalanceYen()), yen(r.NetWorthYen()), final}
	}
	return table(w, []string{"YM", "INCOME", "EXPENSE", "BALANCE", "NET WORTH", "FINAL"}, rows)
}

type monthlyView domain.MonthlyRecord

func (v monthlyView) RenderText(w io.Writer) error {
	return monthlyTable{domain.MonthlyRecord(v)}.RenderText(w)
}

type itemTable []domain.MonthlyItem

func (t itemTable) RenderText(w io.Writer) error {
	if len(t) == 0 {
		_, err := fmt.Fprintln(w, "No items")
		return err
	}
	rows := make([][]string, len(t))
	for i, it := range t {
		rows[i] = []string{string(it.Kind), it.Category, yen(it.AmountYen), orDash(it.Note)}
	}
	return table(w, []string{"KIND", "CATEGORY", "AMOUNT", "NOTE"}, rows)
}

type eventTable []domain.LifeEvent

func (t eventTable) RenderText(w io.Writer) error {
	if len(t) == 0 {
		_, err := fmt.Fprintln(w, "No events")
		return err
	}
	rows := make([][]string, len(t))
	for i, e := range t {
		rows[i] = []string{
			e.ID, string(e.StartYm), e.EventType, orDash(e.Title), string(e.Cadence),
			fmt.Sprint(e.EffectiveDurationMonths()), string(e.Direction), yen(e.AmountYen),
		}
	}
	return table(w, []string{"ID", "START", "TYPE", "TITLE", "CADENCE", "MONTHS", "DIRECTION", "AMOUNT"}, rows)
}

type eventView domain.LifeEvent

func (v eventView) RenderText(w io.Writer) error {
	return eventTable{domain.LifeEvent(v)}.RenderText(w)
}

type housingTable []domain.HousingAssumptions

func (t housingTable) RenderText(w io.Writer) error {
	if len(t) == 0 {
		_, err := fmt.Fprintln(w, "No housing assumptions")
		return err
	}
	rows := make([][]string, len(t))
	for i, h := range t {
		mark := ""
		if h.IsSelected {
			mark = "*"
		}
		rows[i] = []string{
			mark, string(h.HousingType), yen(h.PurchasePriceYen), yen(h.DownPaymentYen),
			percent(h.LoanRate), fmt.Sprint(h.LoanTermYears), yen(h.MaintenanceYenPerYear),
		}
	}
	return table(w, []string{"", "TYPE", "PRICE", "DOWN", "RATE", "YEARS", "UPKEEP/YR"}, rows)
}

// housingView embeds the row so its JSON encoding keeps the typed detail.
type housingView struct{ domain.HousingAssumptions }

func (v housingView) RenderText(w io.Writer) error {
	return housingTable{v.HousingAssumptions}.RenderText(w)
}

type seedView fixture.Summary

func (v seedView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Seeded %d plans, %d monthly records, %d items, %d events\n",
		len(v.PlanIDs), v.Months, v.Items, v.Events)
	return err
}
