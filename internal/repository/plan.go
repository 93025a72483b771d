package repository

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
)

// PlanFilter narrows Plans.List. Empty fields do not filter.
type PlanFilter struct {
	UserID string
	Status domain.PlanStatus
	// Query is a case-insensitive substring of the plan name.
	Query string
}

// PlanSort orders Plans.List, newest first.
type PlanSort string

const (
	SortByUpdatedAt PlanSort = "updatedAt"
	SortByCreatedAt PlanSort = "createdAt"
)

// NewPlan is the input of Plans.Create.
type NewPlan struct {
	UserID        string `json:"userId"`
	Name          string `json:"name" validate:"required,max=200"`
	HouseholdType string `json:"householdType" validate:"max=50"`
}

// PlanPatch holds the plan fields to change; nil fields are kept.
type PlanPatch struct {
	Name          *string `json:"name" validate:"omitnil,min=1,max=200"`
	HouseholdType *string `json:"householdType" validate:"omitnil,max=50"`
}

// allCollections is the scope of a plan cascade.
var allCollections = schema.All()

type planRepo struct{ *base }

func (r *planRepo) Get(ctx context.Context, id string, opts ...Option) (domain.Plan, error) {
	var out domain.Plan
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.Plans}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		p, err := loadPlan(tx, "plan.get", id)
		out = p
		return err
	})
	return out, storageErr("plan.get", entityPlan, err)
}

// loadPlan reads a plan that must exist.
func loadPlan(tx *kvstore.Tx, op, id string) (domain.Plan, error) {
	p, found, err := getDoc[domain.Plan](tx, schema.Plans, id)
	if err != nil {
		return domain.Plan{}, storageErr(op, entityPlan, err)
	}
	if !found {
		return domain.Plan{}, notFound(op, entityPlan, map[string]any{"planId": id})
	}
	return p, nil
}

func (r *planRepo) List(ctx context.Context, filter PlanFilter, sort PlanSort, opts ...Option) ([]domain.Plan, error) {
	var plans []domain.Plan
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.Plans}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		plans, err = kvstore.DecodeAll[domain.Plan](planCursor(tx, filter))
		return err
	})
	if err != nil {
		return nil, storageErr("plan.list", entityPlan, err)
	}

	if q := foldQuery(filter.Query); q != "" {
		plans = slices.DeleteFunc(plans, func(p domain.Plan) bool {
			return !strings.Contains(foldQuery(p.Name), q)
		})
	}

	key := func(p domain.Plan) string { return p.UpdatedAt.String() }
	if sort == SortByCreatedAt {
		key = func(p domain.Plan) string { return p.CreatedAt.String() }
	}
	slices.SortStableFunc(plans, func(a, b domain.Plan) int {
		if c := cmp.Compare(key(b), key(a)); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return plans, nil
}

// planCursor picks the most selective index for the filter.
func planCursor(tx *kvstore.Tx, f PlanFilter) kvstore.Cursor {
	switch {
	case f.UserID != "" && f.Status != "":
		return tx.ScanIndex(schema.Plans, "userId_status", kvstore.Query{Range: kvstore.Only(f.UserID, string(f.Status))})
	case f.UserID != "":
		return tx.ScanIndex(schema.Plans, "userId_updatedAt", kvstore.Query{Range: kvstore.Only(f.UserID), Direction: kvstore.Prev})
	case f.Status != "":
		return tx.ScanIndex(schema.Plans, "status", kvstore.Query{Range: kvstore.Only(string(f.Status))})
	default:
		return tx.Scan(schema.Plans, kvstore.Query{})
	}
}

// foldQuery normalises text for case-insensitive matching: NFKC (so
// full-width and half-width forms compare equal) then Unicode case folding.
func foldQuery(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFKC.String(s))
}

func (r *planRepo) Create(ctx context.Context, in NewPlan, opts ...Option) (domain.Plan, error) {
	if err := domain.Validate(in); err != nil {
		return domain.Plan{}, invalidInput("plan.create", entityPlan, err)
	}
	now := r.now()
	p := domain.Plan{
		ID:            r.ids.Generate(),
		UserID:        in.UserID,
		Name:          in.Name,
		HouseholdType: in.HouseholdType,
		Status:        domain.PlanActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.Plans}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		_, err := tx.Put(schema.Plans, p)
		return err
	})
	if err != nil {
		return domain.Plan{}, storageErr("plan.create", entityPlan, err)
	}
	r.logger.Debug("plan created", "plan_id", p.ID)
	return p, nil
}

func (r *planRepo) Update(ctx context.Context, id string, patch PlanPatch, opts ...Option) (domain.Plan, error) {
	if err := domain.Validate(patch); err != nil {
		return domain.Plan{}, invalidInput("plan.update", entityPlan, err)
	}
	return r.modify(ctx, "plan.update", id, opts, func(p *domain.Plan, _ domain.Timestamp) {
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.HouseholdType != nil {
			p.HouseholdType = *patch.HouseholdType
		}
	})
}

func (r *planRepo) Archive(ctx context.Context, id string, opts ...Option) (domain.Plan, error) {
	return r.modify(ctx, "plan.archive", id, opts, func(p *domain.Plan, now domain.Timestamp) {
		p.Status = domain.PlanArchived
		p.ArchivedAt = now.Ptr()
	})
}

func (r *planRepo) Restore(ctx context.Context, id string, opts ...Option) (domain.Plan, error) {
	return r.modify(ctx, "plan.restore", id, opts, func(p *domain.Plan, _ domain.Timestamp) {
		p.Status = domain.PlanActive
		p.ArchivedAt = nil
	})
}

// modify loads a plan that must exist, applies change, bumps updatedAt and
// writes it back in one transaction.
func (r *planRepo) modify(ctx context.Context, op, id string, opts []Option, change func(*domain.Plan, domain.Timestamp)) (domain.Plan, error) {
	var out domain.Plan
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.Plans}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		p, err := loadPlan(tx, op, id)
		if err != nil {
			return err
		}
		now := r.now()
		change(&p, now)
		p.UpdatedAt = now
		if _, err := tx.Put(schema.Plans, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return domain.Plan{}, storageErr(op, entityPlan, err)
	}
	return out, nil
}

// Delete removes the plan and everything it owns: versions with their
// scenarios, events and housing rows, and monthly records with their items.
// Deleting an absent plan is a no-op.
func (r *planRepo) Delete(ctx context.Context, id string, opts ...Option) error {
	var versions, records int
	err := r.withOptionalTx(ctx, opts, allCollections, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		versionIDs, err := indexKeys(tx, schema.PlanVersions, "planId", id)
		if err != nil {
			return err
		}
		for _, vid := range versionIDs {
			if err := deleteVersionTree(tx, vid); err != nil {
				return err
			}
		}

		recordIDs, err := indexKeys(tx, schema.MonthlyRecords, "planId", id)
		if err != nil {
			return err
		}
		for _, rid := range recordIDs {
			if err := deleteRecordTree(tx, rid); err != nil {
				return err
			}
		}

		versions, records = len(versionIDs), len(recordIDs)
		return tx.Delete(schema.Plans, id)
	})
	if err != nil {
		return storageErr("plan.delete", entityPlan, err)
	}
	r.logger.Debug("plan deleted", "plan_id", id, "versions", versions, "monthly_records", records)
	return nil
}

// deleteVersionTree removes a version's scenarios, events and housing rows,
// then the version itself.
func deleteVersionTree(tx *kvstore.Tx, versionID string) error {
	for _, coll := range []schema.Collection{schema.ScenarioAssumptions, schema.LifeEvents, schema.HousingAssumptions} {
		keys, err := indexKeys(tx, coll, "planVersionId", versionID)
		if err != nil {
			return err
		}
		if err := deleteAll(tx, coll, keys); err != nil {
			return err
		}
	}
	return tx.Delete(schema.PlanVersions, versionID)
}

// deleteRecordTree removes a monthly record's items, then the record.
func deleteRecordTree(tx *kvstore.Tx, recordID string) error {
	keys, err := indexKeys(tx, schema.MonthlyItems, "monthlyRecordId", recordID)
	if err != nil {
		return err
	}
	if err := deleteAll(tx, schema.MonthlyItems, keys); err != nil {
		return err
	}
	return tx.Delete(schema.MonthlyRecords, recordID)
}
