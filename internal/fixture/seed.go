package fixture

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/repository"
	"github.com/roach88/lifeplan/internal/schema"
	"github.com/roach88/lifeplan/internal/usecase"
)

// Summary counts what a seed run created.
type Summary struct {
	PlanIDs []string `json:"planIds"`
	Months  int      `json:"months"`
	Items   int      `json:"items"`
	Events  int      `json:"events"`
}

// Seeder writes fixtures through the repositories.
type Seeder struct {
	repos   *repository.Repositories
	planner *usecase.Planner
	logger  *slog.Logger
}

func NewSeeder(repos *repository.Repositories, planner *usecase.Planner, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{repos: repos, planner: planner, logger: logger}
}

// Seed creates every plan of f with the plan wizard, then its scenario
// overrides, monthly records and events. The whole fixture commits in one
// transaction or not at all.
func (s *Seeder) Seed(ctx context.Context, f *File) (Summary, error) {
	var sum Summary
	err := s.repos.Store().WithTx(ctx, schema.All(), kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		opts := []repository.Option{repository.WithTx(tx)}
		for i, p := range f.Plans {
			if err := s.seedPlan(ctx, p, &sum, opts); err != nil {
				return fmt.Errorf("plans[%d] %q: %w", i, p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	s.logger.Info("fixture seeded", "plans", len(sum.PlanIDs), "months", sum.Months, "events", sum.Events)
	return sum, nil
}

func (s *Seeder) seedPlan(ctx context.Context, p Plan, sum *Summary, opts []repository.Option) error {
	created, err := s.planner.CreatePlanWizard(ctx, usecase.WizardInput{
		UserID:        p.UserID,
		Name:          p.Name,
		HouseholdType: p.HouseholdType,
		HousingType:   p.HousingType,
		Preset:        p.Preset,
	}, opts...)
	if err != nil {
		return err
	}
	planID, versionID := created.Plan.ID, created.Version.ID
	sum.PlanIDs = append(sum.PlanIDs, planID)

	if len(p.Scenarios) > 0 {
		rates := make(map[domain.ScenarioKey]domain.ScenarioRates, len(p.Scenarios))
		for k, r := range p.Scenarios {
			rates[k] = domain.ScenarioRates{
				WageGrowthRate:       r.WageGrowthRate,
				InflationRate:        r.InflationRate,
				InvestmentReturnRate: r.InvestmentReturnRate,
			}
		}
		if _, err := s.repos.Versions.UpsertScenarioSet(ctx, versionID, rates, opts...); err != nil {
			return err
		}
	}

	for _, m := range p.Monthly {
		rec, err := s.repos.Monthly.UpsertByYm(ctx, planID, m.Ym, repository.MonthlyPatch{
			IncomeTotalYen:        m.IncomeTotalYen,
			ExpenseTotalYen:       m.ExpenseTotalYen,
			AssetsBalanceYen:      m.AssetsBalanceYen,
			LiabilitiesBalanceYen: m.LiabilitiesBalanceYen,
			IsFinalized:           m.IsFinalized,
			Note:                  m.Note,
		}, opts...)
		if err != nil {
			return err
		}
		sum.Months++
		if len(m.Items) == 0 {
			continue
		}
		items := make([]repository.NewItem, len(m.Items))
		for i, it := range m.Items {
			items[i] = repository.NewItem{Kind: it.Kind, Category: it.Category, AmountYen: it.AmountYen, Note: it.Note}
		}
		if _, err := s.repos.Monthly.ReplaceItems(ctx, rec.ID, items, opts...); err != nil {
			return err
		}
		sum.Items += len(items)
	}

	for _, e := range p.Events {
		if _, err := s.repos.Events.Create(ctx, versionID, repository.NewEvent{
			EventType:      e.EventType,
			Title:          e.Title,
			StartYm:        e.StartYm,
			Cadence:        e.Cadence,
			DurationMonths: e.DurationMonths,
			AmountYen:      e.AmountYen,
			Direction:      e.Direction,
			Note:           e.Note,
		}, opts...); err != nil {
			return err
		}
		sum.Events++
	}
	return nil
}
