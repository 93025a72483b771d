// Package usecase composes the entity repositories into multi-entity
// operations that commit or roll back as one.
package usecase

import (
	"context"
	"log/slog"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/repository"
	"github.com/roach88/lifeplan/internal/schema"
)

// Initial version metadata written by the wizard.
const (
	InitialVersionTitle      = "v1"
	InitialVersionChangeNote = "初期作成"
)

var (
	// wizardScope covers every collection the wizard writes.
	wizardScope = []schema.Collection{
		schema.Plans,
		schema.PlanVersions,
		schema.ScenarioAssumptions,
		schema.HousingAssumptions,
	}
	defaultsScope = []schema.Collection{
		schema.PlanVersions,
		schema.ScenarioAssumptions,
		schema.HousingAssumptions,
	}
)

// Planner runs the cross-entity use cases.
type Planner struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// New creates a Planner. A nil logger uses slog.Default().
func New(repos *repository.Repositories, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{repos: repos, logger: logger}
}

// WizardInput is what the plan creation wizard collects.
type WizardInput struct {
	UserID        string
	Name          string
	HouseholdType string
	// HousingType is the housing option to select. Empty keeps the first
	// seeded type selected.
	HousingType domain.HousingType
	// Preset seeds the housing rows. Empty means domain.PresetBase.
	Preset domain.HousingPreset
}

// Defaults is what InitializePlanVersionDefaults leaves on a version.
type Defaults struct {
	Scenarios domain.ScenarioSet
	// Housing is in canonical type order.
	Housing []domain.HousingAssumptions
}

// WizardResult is everything CreatePlanWizard created.
type WizardResult struct {
	Plan    domain.Plan
	Version domain.PlanVersion
	Defaults
}

// CreatePlanWizard creates a plan with its initial version and seeds the
// version's scenario and housing defaults. Either all of it is stored or
// none of it is.
func (p *Planner) CreatePlanWizard(ctx context.Context, in WizardInput, opts ...repository.Option) (WizardResult, error) {
	var out WizardResult
	err := p.inTx(ctx, opts, wizardScope, func(opts []repository.Option) error {
		plan, err := p.repos.Plans.Create(ctx, repository.NewPlan{
			UserID:        in.UserID,
			Name:          in.Name,
			HouseholdType: in.HouseholdType,
		}, opts...)
		if err != nil {
			return err
		}
		version, err := p.repos.Versions.CreateInitial(ctx, plan.ID, repository.NewVersion{
			Title:      InitialVersionTitle,
			ChangeNote: InitialVersionChangeNote,
		}, opts...)
		if err != nil {
			return err
		}
		defaults, err := p.InitializePlanVersionDefaults(ctx, version.ID, in.HousingType, in.Preset, opts...)
		if err != nil {
			return err
		}
		// CreateInitial moved the plan's current pointer.
		if plan, err = p.repos.Plans.Get(ctx, plan.ID, opts...); err != nil {
			return err
		}
		out = WizardResult{Plan: plan, Version: version, Defaults: defaults}
		return nil
	})
	if err != nil {
		return WizardResult{}, err
	}
	p.logger.Info("plan created", "plan_id", out.Plan.ID, "version_id", out.Version.ID)
	return out, nil
}

// InitializePlanVersionDefaults seeds the three scenarios, applies preset to
// every housing type in canonical order and then selects the chosen type.
// Rows that already exist are kept. An empty selected keeps whichever row
// the presets left selected.
func (p *Planner) InitializePlanVersionDefaults(ctx context.Context, versionID string, selected domain.HousingType, preset domain.HousingPreset, opts ...repository.Option) (Defaults, error) {
	if preset == "" {
		preset = domain.PresetBase
	}
	var out Defaults
	err := p.inTx(ctx, opts, defaultsScope, func(opts []repository.Option) error {
		scenarios, err := p.repos.Versions.EnsureScenarioSet(ctx, versionID, opts...)
		if err != nil {
			return err
		}
		for _, t := range domain.HousingTypes {
			if _, err := p.repos.Housing.ApplyPreset(ctx, versionID, t, preset, opts...); err != nil {
				return err
			}
		}
		if selected != "" {
			if _, err := p.repos.Housing.SetSelected(ctx, versionID, selected, opts...); err != nil {
				return err
			}
		}
		housing, err := p.repos.Housing.ListByVersion(ctx, versionID, opts...)
		if err != nil {
			return err
		}
		out = Defaults{Scenarios: scenarios, Housing: housing}
		return nil
	})
	if err != nil {
		return Defaults{}, err
	}
	p.logger.Debug("version defaults initialized", "version_id", versionID, "preset", preset, "selected", selected)
	return out, nil
}

// inTx runs fn in the caller's transaction when opts carries one, and in a
// new read-write transaction over scope otherwise.
func (p *Planner) inTx(ctx context.Context, opts []repository.Option, scope []schema.Collection, fn func([]repository.Option) error) error {
	if repository.TxFrom(opts...) != nil {
		return fn(opts)
	}
	return p.repos.Store().WithTx(ctx, scope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		return fn([]repository.Option{repository.WithTx(tx)})
	})
}
