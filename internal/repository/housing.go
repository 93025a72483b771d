package repository

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
)

var housingWriteScope = []schema.Collection{schema.PlanVersions, schema.HousingAssumptions}

type housingRepo struct{ *base }

// housingOf lists a version's housing rows in canonical type order.
func housingOf(tx *kvstore.Tx, versionID string) ([]domain.HousingAssumptions, error) {
	rows, err := listByIndex[domain.HousingAssumptions](tx, schema.HousingAssumptions, "planVersionId",
		kvstore.Query{Range: kvstore.Only(versionID)})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(rows, func(a, b domain.HousingAssumptions) int {
		return cmp.Compare(a.HousingType.Order(), b.HousingType.Order())
	})
	return rows, nil
}

func housingByType(tx *kvstore.Tx, versionID string, t domain.HousingType) (domain.HousingAssumptions, bool, error) {
	return getByIndex[domain.HousingAssumptions](tx, schema.HousingAssumptions, "planVersionId_housingType", versionID, string(t))
}

// clearSelection deselects every row of the version except keepType.
func (r *housingRepo) clearSelection(tx *kvstore.Tx, versionID string, keepType domain.HousingType, now domain.Timestamp) error {
	rows, err := housingOf(tx, versionID)
	if err != nil {
		return err
	}
	for _, h := range rows {
		if h.HousingType == keepType || !h.IsSelected {
			continue
		}
		h.IsSelected = false
		h.UpdatedAt = now
		if _, err := tx.Put(schema.HousingAssumptions, h); err != nil {
			return err
		}
	}
	return nil
}

func (r *housingRepo) ListByVersion(ctx context.Context, versionID string, opts ...Option) ([]domain.HousingAssumptions, error) {
	var out []domain.HousingAssumptions
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.HousingAssumptions}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = housingOf(tx, versionID)
		return err
	})
	if err != nil {
		return nil, storageErr("housing.listByVersion", entityHousing, err)
	}
	return out, nil
}

func (r *housingRepo) GetByType(ctx context.Context, versionID string, t domain.HousingType, opts ...Option) (domain.HousingAssumptions, error) {
	const op = "housing.getByType"
	var out domain.HousingAssumptions
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.HousingAssumptions}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		h, found, err := housingByType(tx, versionID, t)
		if err != nil {
			return err
		}
		if !found {
			return notFound(op, entityHousing, map[string]any{"versionId": versionID, "housingType": string(t)})
		}
		out = h
		return nil
	})
	return out, storageErr(op, entityHousing, err)
}

// Upsert writes h keyed by (PlanVersionID, HousingType), keeping the id and
// createdAt of an existing row. Selecting h deselects its siblings first.
func (r *housingRepo) Upsert(ctx context.Context, h domain.HousingAssumptions, opts ...Option) (domain.HousingAssumptions, error) {
	const op = "housing.upsert"
	if err := checkHousing(op, h); err != nil {
		return domain.HousingAssumptions{}, err
	}
	h = h.Clone()
	var out domain.HousingAssumptions
	err := r.withOptionalTx(ctx, opts, housingWriteScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		if _, err := loadVersion(tx, op, h.PlanVersionID); err != nil {
			return err
		}
		now := r.now()
		if h.IsSelected {
			if err := r.clearSelection(tx, h.PlanVersionID, h.HousingType, now); err != nil {
				return err
			}
		}
		existing, found, err := housingByType(tx, h.PlanVersionID, h.HousingType)
		if err != nil {
			return err
		}
		if found {
			h.ID, h.CreatedAt = existing.ID, existing.CreatedAt
		} else {
			h.ID, h.CreatedAt = r.ids.Generate(), now
		}
		h.UpdatedAt = now
		if _, err := tx.Put(schema.HousingAssumptions, h); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return domain.HousingAssumptions{}, storageErr(op, entityHousing, err)
	}
	return out, nil
}

func checkHousing(op string, h domain.HousingAssumptions) error {
	if h.PlanVersionID == "" {
		return newError(CodeInvalidArgument, op, entityHousing, "planVersionId is required", nil)
	}
	if !h.HousingType.Valid() {
		return newError(CodeInvalidArgument, op, entityHousing, "unknown housing type",
			map[string]any{"housingType": string(h.HousingType)})
	}
	if h.TypeSpecific != nil && h.TypeSpecific.HousingType() != h.HousingType {
		return newError(CodeInvalidArgument, op, entityHousing, "type-specific payload does not match housing type",
			map[string]any{"housingType": string(h.HousingType), "payload": string(h.TypeSpecific.HousingType())})
	}
	return nil
}

// SetSelected makes the (version, type) row the version's only selection.
func (r *housingRepo) SetSelected(ctx context.Context, versionID string, t domain.HousingType, opts ...Option) (domain.HousingAssumptions, error) {
	const op = "housing.setSelected"
	var out domain.HousingAssumptions
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.HousingAssumptions}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		target, found, err := housingByType(tx, versionID, t)
		if err != nil {
			return err
		}
		if !found {
			return notFound(op, entityHousing, map[string]any{"versionId": versionID, "housingType": string(t)})
		}
		now := r.now()
		if err := r.clearSelection(tx, versionID, t, now); err != nil {
			return err
		}
		if !target.IsSelected {
			target.IsSelected = true
			target.UpdatedAt = now
			if _, err := tx.Put(schema.HousingAssumptions, target); err != nil {
				return err
			}
		}
		out = target
		return nil
	})
	if err != nil {
		return domain.HousingAssumptions{}, storageErr(op, entityHousing, err)
	}
	return out, nil
}

// ApplyPreset seeds the (version, type) row from a preset unless one exists,
// in which case the existing row is returned untouched. The first housing
// row of a version is seeded selected.
func (r *housingRepo) ApplyPreset(ctx context.Context, versionID string, t domain.HousingType, preset domain.HousingPreset, opts ...Option) (domain.HousingAssumptions, error) {
	const op = "housing.applyPreset"
	defaults, err := domain.PresetDefaults(preset, t)
	if err != nil {
		meta := map[string]any{"preset": string(preset), "housingType": string(t)}
		if errors.Is(err, domain.ErrUnknownPreset) {
			return domain.HousingAssumptions{}, newError(CodeInvalidArgument, op, entityHousing, "unsupported housing preset", meta)
		}
		return domain.HousingAssumptions{}, newError(CodeInvalidArgument, op, entityHousing, "unknown housing type", meta)
	}

	var out domain.HousingAssumptions
	err = r.withOptionalTx(ctx, opts, housingWriteScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		if _, err := loadVersion(tx, op, versionID); err != nil {
			return err
		}
		existing, found, err := housingByType(tx, versionID, t)
		if err != nil {
			return err
		}
		if found {
			out = existing
			return nil
		}
		siblings, err := housingOf(tx, versionID)
		if err != nil {
			return err
		}
		now := r.now()
		h := domain.HousingAssumptions{
			ID:            r.ids.Generate(),
			PlanVersionID: versionID,
			HousingType:   t,
			IsSelected:    len(siblings) == 0,
			HousingCosts:  defaults.HousingCosts,
			TypeSpecific:  defaults.TypeSpecific,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err := tx.Put(schema.HousingAssumptions, h); err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return domain.HousingAssumptions{}, storageErr(op, entityHousing, err)
	}
	return out, nil
}
