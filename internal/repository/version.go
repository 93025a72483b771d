package repository

import (
	"context"
	"fmt"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
)

// NewVersion is the input of CreateInitial and CreateFromCurrent.
// An empty Title defaults to "v<versionNo>".
type NewVersion struct {
	Title      string `json:"title" validate:"max=100"`
	ChangeNote string `json:"changeNote" validate:"max=500"`
}

// VersionPatch holds the version metadata to change; nil fields are kept.
type VersionPatch struct {
	Title              *string `json:"title" validate:"omitnil,max=100"`
	ChangeNote         *string `json:"changeNote" validate:"omitnil,max=500"`
	ProjectedAssetsYen *int64  `json:"projectedAssetsYen"`
	MinimumAssetsYen   *int64  `json:"minimumAssetsYen"`
	MonthlyBalanceYen  *int64  `json:"monthlyBalanceYen"`
}

var (
	versionScope       = []schema.Collection{schema.Plans, schema.PlanVersions}
	versionTreeScope   = []schema.Collection{schema.Plans, schema.PlanVersions, schema.ScenarioAssumptions, schema.LifeEvents, schema.HousingAssumptions}
	scenarioWriteScope = []schema.Collection{schema.PlanVersions, schema.ScenarioAssumptions}
)

type versionRepo struct{ *base }

// loadVersion reads a version that must exist.
func loadVersion(tx *kvstore.Tx, op, id string) (domain.PlanVersion, error) {
	v, found, err := getDoc[domain.PlanVersion](tx, schema.PlanVersions, id)
	if err != nil {
		return domain.PlanVersion{}, err
	}
	if !found {
		return domain.PlanVersion{}, notFound(op, entityVersion, map[string]any{"versionId": id})
	}
	return v, nil
}

func versionsOf(tx *kvstore.Tx, planID string, dir kvstore.Direction) ([]domain.PlanVersion, error) {
	return listByIndex[domain.PlanVersion](tx, schema.PlanVersions, "planId_versionNo",
		kvstore.Query{Range: kvstore.Only(planID), Direction: dir})
}

// currentVersion resolves the plan's current version through its pointer,
// falling back to the isCurrent flag when the pointer is absent or dangling.
func currentVersion(tx *kvstore.Tx, op, planID string) (domain.PlanVersion, error) {
	plan, err := loadPlan(tx, op, planID)
	if err != nil {
		return domain.PlanVersion{}, err
	}
	if plan.CurrentVersionID != "" {
		v, found, err := getDoc[domain.PlanVersion](tx, schema.PlanVersions, plan.CurrentVersionID)
		if err != nil {
			return domain.PlanVersion{}, err
		}
		if found && v.PlanID == planID {
			return v, nil
		}
	}
	versions, err := versionsOf(tx, planID, kvstore.Prev)
	if err != nil {
		return domain.PlanVersion{}, err
	}
	for _, v := range versions {
		if v.IsCurrent {
			return v, nil
		}
	}
	return domain.PlanVersion{}, notFound(op, entityVersion, map[string]any{"planId": planID, "current": true})
}

func (r *versionRepo) Get(ctx context.Context, id string, opts ...Option) (domain.PlanVersion, error) {
	var out domain.PlanVersion
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.PlanVersions}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = loadVersion(tx, "version.get", id)
		return err
	})
	return out, storageErr("version.get", entityVersion, err)
}

// ListByPlan returns the plan's versions, newest first.
func (r *versionRepo) ListByPlan(ctx context.Context, planID string, opts ...Option) ([]domain.PlanVersion, error) {
	var out []domain.PlanVersion
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.PlanVersions}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = versionsOf(tx, planID, kvstore.Prev)
		return err
	})
	if err != nil {
		return nil, storageErr("version.listByPlan", entityVersion, err)
	}
	return out, nil
}

func (r *versionRepo) GetCurrent(ctx context.Context, planID string, opts ...Option) (domain.PlanVersion, error) {
	var out domain.PlanVersion
	err := r.withOptionalTx(ctx, opts, versionScope, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = currentVersion(tx, "version.getCurrent", planID)
		return err
	})
	return out, storageErr("version.getCurrent", entityVersion, err)
}

// CreateInitial creates version 1 of a plan that has no versions yet and
// points the plan at it.
func (r *versionRepo) CreateInitial(ctx context.Context, planID string, in NewVersion, opts ...Option) (domain.PlanVersion, error) {
	const op = "version.createInitial"
	if err := domain.Validate(in); err != nil {
		return domain.PlanVersion{}, invalidInput(op, entityVersion, err)
	}
	var out domain.PlanVersion
	err := r.withOptionalTx(ctx, opts, versionScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		plan, err := loadPlan(tx, op, planID)
		if err != nil {
			return err
		}
		existing, err := versionsOf(tx, planID, kvstore.Next)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return newError(CodeInvariant, op, entityVersion, "plan already has versions",
				map[string]any{"planId": planID, "versions": len(existing)})
		}

		now := r.now()
		v := domain.PlanVersion{
			ID:         r.ids.Generate(),
			PlanID:     planID,
			VersionNo:  1,
			Title:      titleOr(in.Title, 1),
			ChangeNote: in.ChangeNote,
			IsCurrent:  true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := tx.Put(schema.PlanVersions, v); err != nil {
			return err
		}
		plan.CurrentVersionID = v.ID
		plan.UpdatedAt = now
		if _, err := tx.Put(schema.Plans, plan); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return domain.PlanVersion{}, storageErr(op, entityVersion, err)
	}
	r.logger.Debug("initial version created", "plan_id", planID, "version_id", out.ID)
	return out, nil
}

// CreateFromCurrent clones the current version forward as versionNo+1 (not
// current), copying its scenarios, events and housing rows under fresh ids.
func (r *versionRepo) CreateFromCurrent(ctx context.Context, planID string, in NewVersion, opts ...Option) (domain.PlanVersion, error) {
	const op = "version.createFromCurrent"
	if err := domain.Validate(in); err != nil {
		return domain.PlanVersion{}, invalidInput(op, entityVersion, err)
	}
	var out domain.PlanVersion
	err := r.withOptionalTx(ctx, opts, versionTreeScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		src, err := currentVersion(tx, op, planID)
		if err != nil {
			return err
		}
		next := src.VersionNo + 1
		_, taken, err := tx.GetByIndex(schema.PlanVersions, "planId_versionNo", kvstore.Key{planID, next})
		if err != nil {
			return err
		}
		if taken {
			return newError(CodeConflict, op, entityVersion, "version number already exists",
				map[string]any{"planId": planID, "versionNo": next})
		}

		now := r.now()
		target := domain.PlanVersion{
			ID:                 r.ids.Generate(),
			PlanID:             planID,
			VersionNo:          next,
			Title:              titleOr(in.Title, next),
			ChangeNote:         in.ChangeNote,
			IsCurrent:          false,
			ProjectedAssetsYen: clonePtr(src.ProjectedAssetsYen),
			MinimumAssetsYen:   clonePtr(src.MinimumAssetsYen),
			MonthlyBalanceYen:  clonePtr(src.MonthlyBalanceYen),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if _, err := tx.Put(schema.PlanVersions, target); err != nil {
			return err
		}
		if err := r.cloneOwned(tx, src.ID, target.ID, now); err != nil {
			return err
		}
		out = target
		return nil
	})
	if err != nil {
		return domain.PlanVersion{}, storageErr(op, entityVersion, err)
	}
	r.logger.Debug("version cloned", "plan_id", planID, "version_id", out.ID, "version_no", out.VersionNo)
	return out, nil
}

// cloneOwned copies every scenario, event and housing row of src to dst.
func (r *versionRepo) cloneOwned(tx *kvstore.Tx, src, dst string, now domain.Timestamp) error {
	owned := kvstore.Query{Range: kvstore.Only(src)}

	scenarios, err := listByIndex[domain.ScenarioAssumptions](tx, schema.ScenarioAssumptions, "planVersionId", owned)
	if err != nil {
		return err
	}
	for _, s := range scenarios {
		s.ID, s.PlanVersionID, s.CreatedAt, s.UpdatedAt = r.ids.Generate(), dst, now, now
		if _, err := tx.Put(schema.ScenarioAssumptions, s); err != nil {
			return err
		}
	}

	events, err := listByIndex[domain.LifeEvent](tx, schema.LifeEvents, "planVersionId", owned)
	if err != nil {
		return err
	}
	for _, e := range events {
		e.ID, e.PlanVersionID, e.CreatedAt, e.UpdatedAt = r.ids.Generate(), dst, now, now
		if _, err := tx.Put(schema.LifeEvents, e); err != nil {
			return err
		}
	}

	housing, err := listByIndex[domain.HousingAssumptions](tx, schema.HousingAssumptions, "planVersionId", owned)
	if err != nil {
		return err
	}
	for _, h := range housing {
		h = h.Clone()
		h.ID, h.PlanVersionID, h.CreatedAt, h.UpdatedAt = r.ids.Generate(), dst, now, now
		if _, err := tx.Put(schema.HousingAssumptions, h); err != nil {
			return err
		}
	}
	return nil
}

// SetCurrent makes versionID the plan's only current version.
func (r *versionRepo) SetCurrent(ctx context.Context, planID, versionID string, opts ...Option) (domain.PlanVersion, error) {
	const op = "version.setCurrent"
	var out domain.PlanVersion
	err := r.withOptionalTx(ctx, opts, versionScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		plan, err := loadPlan(tx, op, planID)
		if err != nil {
			return err
		}
		target, err := loadVersion(tx, op, versionID)
		if err != nil {
			return err
		}
		if target.PlanID != planID {
			return notFound(op, entityVersion, map[string]any{"planId": planID, "versionId": versionID})
		}

		now := r.now()
		siblings, err := versionsOf(tx, planID, kvstore.Next)
		if err != nil {
			return err
		}
		for _, v := range siblings {
			if v.ID == target.ID || !v.IsCurrent {
				continue
			}
			v.IsCurrent = false
			v.UpdatedAt = now
			if _, err := tx.Put(schema.PlanVersions, v); err != nil {
				return err
			}
		}
		if !target.IsCurrent {
			target.IsCurrent = true
			target.UpdatedAt = now
			if _, err := tx.Put(schema.PlanVersions, target); err != nil {
				return err
			}
		}
		if plan.CurrentVersionID != target.ID {
			plan.CurrentVersionID = target.ID
			plan.UpdatedAt = now
			if _, err := tx.Put(schema.Plans, plan); err != nil {
				return err
			}
		}
		out = target
		return nil
	})
	if err != nil {
		return domain.PlanVersion{}, storageErr(op, entityVersion, err)
	}
	return out, nil
}

func (r *versionRepo) UpdateMeta(ctx context.Context, versionID string, patch VersionPatch, opts ...Option) (domain.PlanVersion, error) {
	const op = "version.updateMeta"
	if err := domain.Validate(patch); err != nil {
		return domain.PlanVersion{}, invalidInput(op, entityVersion, err)
	}
	var out domain.PlanVersion
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.PlanVersions}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		v, err := loadVersion(tx, op, versionID)
		if err != nil {
			return err
		}
		if patch.Title != nil {
			v.Title = *patch.Title
		}
		if patch.ChangeNote != nil {
			v.ChangeNote = *patch.ChangeNote
		}
		if patch.ProjectedAssetsYen != nil {
			v.ProjectedAssetsYen = clonePtr(patch.ProjectedAssetsYen)
		}
		if patch.MinimumAssetsYen != nil {
			v.MinimumAssetsYen = clonePtr(patch.MinimumAssetsYen)
		}
		if patch.MonthlyBalanceYen != nil {
			v.MonthlyBalanceYen = clonePtr(patch.MonthlyBalanceYen)
		}
		v.UpdatedAt = r.now()
		if _, err := tx.Put(schema.PlanVersions, v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return domain.PlanVersion{}, storageErr(op, entityVersion, err)
	}
	return out, nil
}

// Delete removes a non-current version with its scenarios, events and
// housing rows.
func (r *versionRepo) Delete(ctx context.Context, versionID string, opts ...Option) error {
	const op = "version.delete"
	err := r.withOptionalTx(ctx, opts, versionTreeScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		v, err := loadVersion(tx, op, versionID)
		if err != nil {
			return err
		}
		plan, found, err := getDoc[domain.Plan](tx, schema.Plans, v.PlanID)
		if err != nil {
			return err
		}
		if v.IsCurrent || (found && plan.CurrentVersionID == v.ID) {
			return newError(CodeInvariant, op, entityVersion, "cannot delete the current version",
				map[string]any{"planId": v.PlanID, "versionId": v.ID})
		}
		return deleteVersionTree(tx, v.ID)
	})
	if err != nil {
		return storageErr(op, entityVersion, err)
	}
	r.logger.Debug("version deleted", "version_id", versionID)
	return nil
}

func scenarioSet(tx *kvstore.Tx, versionID string) (domain.ScenarioSet, error) {
	rows, err := listByIndex[domain.ScenarioAssumptions](tx, schema.ScenarioAssumptions, "planVersionId",
		kvstore.Query{Range: kvstore.Only(versionID)})
	if err != nil {
		return nil, err
	}
	set := make(domain.ScenarioSet, len(rows))
	for _, s := range rows {
		set[s.ScenarioKey] = s
	}
	return set, nil
}

func (r *versionRepo) GetScenarioSet(ctx context.Context, versionID string, opts ...Option) (domain.ScenarioSet, error) {
	var out domain.ScenarioSet
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.ScenarioAssumptions}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = scenarioSet(tx, versionID)
		return err
	})
	if err != nil {
		return nil, storageErr("version.getScenarioSet", entityScenario, err)
	}
	return out, nil
}

// UpsertScenarioSet writes the given scenarios of a version, updating rows
// in place and inserting missing ones. Keys absent from rates are untouched.
func (r *versionRepo) UpsertScenarioSet(ctx context.Context, versionID string, rates map[domain.ScenarioKey]domain.ScenarioRates, opts ...Option) (domain.ScenarioSet, error) {
	const op = "version.upsertScenarioSet"
	for k := range rates {
		if !k.Valid() {
			return nil, newError(CodeInvalidArgument, op, entityScenario, "unknown scenario key",
				map[string]any{"scenarioKey": string(k)})
		}
	}
	var out domain.ScenarioSet
	err := r.withOptionalTx(ctx, opts, scenarioWriteScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		if _, err := loadVersion(tx, op, versionID); err != nil {
			return err
		}
		now := r.now()
		for _, key := range domain.ScenarioKeys {
			rate, ok := rates[key]
			if !ok {
				continue
			}
			if err := r.putScenario(tx, versionID, key, rate, now, true); err != nil {
				return err
			}
		}
		var err error
		out, err = scenarioSet(tx, versionID)
		return err
	})
	if err != nil {
		return nil, storageErr(op, entityScenario, err)
	}
	return out, nil
}

// EnsureScenarioSet seeds every missing scenario of a version with its
// default rates. Existing rows are never overwritten.
func (r *versionRepo) EnsureScenarioSet(ctx context.Context, versionID string, opts ...Option) (domain.ScenarioSet, error) {
	const op = "version.ensureScenarioSet"
	var out domain.ScenarioSet
	err := r.withOptionalTx(ctx, opts, scenarioWriteScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		if _, err := loadVersion(tx, op, versionID); err != nil {
			return err
		}
		now := r.now()
		for _, key := range domain.ScenarioKeys {
			rate, _ := domain.DefaultScenarioRates(key)
			if err := r.putScenario(tx, versionID, key, rate, now, false); err != nil {
				return err
			}
		}
		var err error
		out, err = scenarioSet(tx, versionID)
		return err
	})
	if err != nil {
		return nil, storageErr(op, entityScenario, err)
	}
	return out, nil
}

// putScenario inserts the (version, key) row, or updates it when overwrite
// is set.
func (r *versionRepo) putScenario(tx *kvstore.Tx, versionID string, key domain.ScenarioKey, rates domain.ScenarioRates, now domain.Timestamp, overwrite bool) error {
	row, found, err := getByIndex[domain.ScenarioAssumptions](tx, schema.ScenarioAssumptions,
		"planVersionId_scenarioKey", versionID, string(key))
	if err != nil {
		return err
	}
	switch {
	case found && !overwrite:
		return nil
	case found:
		row.ScenarioRates = rates
		row.UpdatedAt = now
	default:
		row = domain.ScenarioAssumptions{
			ID:            r.ids.Generate(),
			PlanVersionID: versionID,
			ScenarioKey:   key,
			ScenarioRates: rates,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
	}
	_, err = tx.Put(schema.ScenarioAssumptions, row)
	return err
}

func titleOr(title string, versionNo int) string {
	if title != "" {
		return title
	}
	return fmt.Sprintf("v%d", versionNo)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
