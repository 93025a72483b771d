package repository

import (
	"context"
	"fmt"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
)

// SortOrder orders monthly records by ym.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// MonthlyQuery narrows Monthly.ListByPlan. Year 0 lists every year.
type MonthlyQuery struct {
	Year  int
	Order SortOrder
}

// MonthlyPatch holds the record fields UpsertByYm changes; nil fields are
// kept (or zero on insert).
type MonthlyPatch struct {
	IncomeTotalYen        *int64  `json:"incomeTotalYen" validate:"omitnil,min=0"`
	ExpenseTotalYen       *int64  `json:"expenseTotalYen" validate:"omitnil,min=0"`
	AssetsBalanceYen      *int64  `json:"assetsBalanceYen"`
	LiabilitiesBalanceYen *int64  `json:"liabilitiesBalanceYen" validate:"omitnil,min=0"`
	IsFinalized           *bool   `json:"isFinalized"`
	Note                  *string `json:"note" validate:"omitnil,max=1000"`
}

// NewItem is one line of ReplaceItems.
type NewItem struct {
	Kind      domain.ItemKind `json:"kind" validate:"oneof=income expense"`
	Category  string          `json:"category" validate:"required,max=100"`
	AmountYen int64           `json:"amountYen" validate:"min=0"`
	Note      string          `json:"note" validate:"max=500"`
}

var (
	recordScope = []schema.Collection{schema.MonthlyRecords}
	recordTree  = []schema.Collection{schema.MonthlyRecords, schema.MonthlyItems}
)

type monthlyRepo struct{ *base }

func parseYm(op string, ym domain.YearMonth) error {
	if _, err := domain.ParseYearMonth(string(ym)); err != nil {
		return newError(CodeInvalidArgument, op, entityMonthly, "malformed year-month",
			map[string]any{"ym": string(ym)})
	}
	return nil
}

func recordByYm(tx *kvstore.Tx, planID string, ym domain.YearMonth) (domain.MonthlyRecord, bool, error) {
	return getByIndex[domain.MonthlyRecord](tx, schema.MonthlyRecords, "planId_ym", planID, string(ym))
}

func (r *monthlyRepo) GetByYm(ctx context.Context, planID string, ym domain.YearMonth, opts ...Option) (domain.MonthlyRecord, error) {
	const op = "monthly.getByYm"
	if err := parseYm(op, ym); err != nil {
		return domain.MonthlyRecord{}, err
	}
	var out domain.MonthlyRecord
	err := r.withOptionalTx(ctx, opts, recordScope, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		rec, found, err := recordByYm(tx, planID, ym)
		if err != nil {
			return err
		}
		if !found {
			return notFound(op, entityMonthly, map[string]any{"planId": planID, "ym": string(ym)})
		}
		out = rec
		return nil
	})
	return out, storageErr(op, entityMonthly, err)
}

// ListByPlan lists a plan's records ordered by ym, ascending unless
// Descending is requested.
func (r *monthlyRepo) ListByPlan(ctx context.Context, planID string, q MonthlyQuery, opts ...Option) ([]domain.MonthlyRecord, error) {
	query := kvstore.Query{Range: kvstore.Only(planID)}
	if q.Year != 0 {
		query.Range = kvstore.Bound(
			kvstore.Key{planID, string(domain.NewYearMonth(q.Year, 1))},
			kvstore.Key{planID, string(domain.NewYearMonth(q.Year, 12))},
			false, false)
	}
	if q.Order == Descending {
		query.Direction = kvstore.Prev
	}
	var out []domain.MonthlyRecord
	err := r.withOptionalTx(ctx, opts, recordScope, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = listByIndex[domain.MonthlyRecord](tx, schema.MonthlyRecords, "planId_ym", query)
		return err
	})
	if err != nil {
		return nil, storageErr("monthly.listByPlan", entityMonthly, err)
	}
	if q.Year != 0 {
		filtered := out[:0]
		for _, rec := range out {
			if rec.Ym.Valid() && rec.Ym.Year() == q.Year {
				filtered = append(filtered, rec)
			}
		}
		out = filtered
	}
	return out, nil
}

// Upsert writes rec keyed by (PlanID, Ym). An existing record for that month
// is updated in place (keeping its id and createdAt); supplying a different
// explicit id for it, or an id already held by another month, is a conflict.
func (r *monthlyRepo) Upsert(ctx context.Context, rec domain.MonthlyRecord, opts ...Option) (domain.MonthlyRecord, error) {
	const op = "monthly.upsert"
	if err := parseYm(op, rec.Ym); err != nil {
		return domain.MonthlyRecord{}, err
	}
	if rec.PlanID == "" {
		return domain.MonthlyRecord{}, newError(CodeInvalidArgument, op, entityMonthly, "planId is required", nil)
	}
	var out domain.MonthlyRecord
	err := r.withOptionalTx(ctx, opts, recordScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		existing, found, err := recordByYm(tx, rec.PlanID, rec.Ym)
		if err != nil {
			return err
		}
		now := r.now()
		switch {
		case found && rec.ID != "" && rec.ID != existing.ID:
			return newError(CodeConflict, op, entityMonthly, "month already recorded under another id",
				map[string]any{"planId": rec.PlanID, "ym": string(rec.Ym), "id": rec.ID, "existingId": existing.ID})
		case found:
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
		case rec.ID != "":
			other, taken, err := getDoc[domain.MonthlyRecord](tx, schema.MonthlyRecords, rec.ID)
			if err != nil {
				return err
			}
			if taken {
				return newError(CodeConflict, op, entityMonthly, "id already used by another month",
					map[string]any{"id": rec.ID, "existingYm": string(other.Ym), "existingPlanId": other.PlanID})
			}
			rec.CreatedAt = now
		default:
			rec.ID = r.ids.Generate()
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := tx.Put(schema.MonthlyRecords, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return domain.MonthlyRecord{}, storageErr(op, entityMonthly, err)
	}
	return out, nil
}

// UpsertByYm patches the (planID, ym) record, creating it when absent.
func (r *monthlyRepo) UpsertByYm(ctx context.Context, planID string, ym domain.YearMonth, patch MonthlyPatch, opts ...Option) (domain.MonthlyRecord, error) {
	const op = "monthly.upsertByYm"
	if err := parseYm(op, ym); err != nil {
		return domain.MonthlyRecord{}, err
	}
	if err := domain.Validate(patch); err != nil {
		return domain.MonthlyRecord{}, invalidInput(op, entityMonthly, err)
	}
	var out domain.MonthlyRecord
	err := r.withOptionalTx(ctx, opts, recordScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		rec, found, err := recordByYm(tx, planID, ym)
		if err != nil {
			return err
		}
		now := r.now()
		if !found {
			rec = domain.MonthlyRecord{ID: r.ids.Generate(), PlanID: planID, Ym: ym, CreatedAt: now}
		}
		patch.apply(&rec)
		rec.UpdatedAt = now
		if _, err := tx.Put(schema.MonthlyRecords, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return domain.MonthlyRecord{}, storageErr(op, entityMonthly, err)
	}
	return out, nil
}

func (p MonthlyPatch) apply(rec *domain.MonthlyRecord) {
	if p.IncomeTotalYen != nil {
		rec.IncomeTotalYen = *p.IncomeTotalYen
	}
	if p.ExpenseTotalYen != nil {
		rec.ExpenseTotalYen = *p.ExpenseTotalYen
	}
	if p.AssetsBalanceYen != nil {
		rec.AssetsBalanceYen = *p.AssetsBalanceYen
	}
	if p.LiabilitiesBalanceYen != nil {
		rec.LiabilitiesBalanceYen = *p.LiabilitiesBalanceYen
	}
	if p.IsFinalized != nil {
		rec.IsFinalized = *p.IsFinalized
	}
	if p.Note != nil {
		rec.Note = *p.Note
	}
}

// CopyFromPreviousMonth creates the ym record as a copy of the preceding
// month's fields under a new id. Line items stay with the source record.
func (r *monthlyRepo) CopyFromPreviousMonth(ctx context.Context, planID string, ym domain.YearMonth, opts ...Option) (domain.MonthlyRecord, error) {
	const op = "monthly.copyFromPreviousMonth"
	if err := parseYm(op, ym); err != nil {
		return domain.MonthlyRecord{}, err
	}
	var out domain.MonthlyRecord
	err := r.withOptionalTx(ctx, opts, recordScope, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		_, exists, err := recordByYm(tx, planID, ym)
		if err != nil {
			return err
		}
		if exists {
			return newError(CodeConflict, op, entityMonthly, "target month already recorded",
				map[string]any{"planId": planID, "ym": string(ym)})
		}
		prev := ym.Prev()
		src, found, err := recordByYm(tx, planID, prev)
		if err != nil {
			return err
		}
		if !found {
			return notFound(op, entityMonthly, map[string]any{"planId": planID, "ym": string(prev)})
		}

		now := r.now()
		rec := domain.MonthlyRecord{
			ID:                    r.ids.Generate(),
			PlanID:                planID,
			Ym:                    ym,
			IncomeTotalYen:        src.IncomeTotalYen,
			ExpenseTotalYen:       src.ExpenseTotalYen,
			AssetsBalanceYen:      src.AssetsBalanceYen,
			LiabilitiesBalanceYen: src.LiabilitiesBalanceYen,
			IsFinalized:           src.IsFinalized,
			Note:                  src.Note,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		if _, err := tx.Put(schema.MonthlyRecords, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return domain.MonthlyRecord{}, storageErr(op, entityMonthly, err)
	}
	return out, nil
}

// DeleteByYm removes the (planID, ym) record and its items. Absent records
// are a no-op.
func (r *monthlyRepo) DeleteByYm(ctx context.Context, planID string, ym domain.YearMonth, opts ...Option) error {
	const op = "monthly.deleteByYm"
	if err := parseYm(op, ym); err != nil {
		return err
	}
	err := r.withOptionalTx(ctx, opts, recordTree, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		rec, found, err := recordByYm(tx, planID, ym)
		if err != nil || !found {
			return err
		}
		return deleteRecordTree(tx, rec.ID)
	})
	return storageErr(op, entityMonthly, err)
}

func itemsOf(tx *kvstore.Tx, recordID string) ([]domain.MonthlyItem, error) {
	return listByIndex[domain.MonthlyItem](tx, schema.MonthlyItems, "monthlyRecordId",
		kvstore.Query{Range: kvstore.Only(recordID)})
}

func (r *monthlyRepo) ListItems(ctx context.Context, recordID string, opts ...Option) ([]domain.MonthlyItem, error) {
	var out []domain.MonthlyItem
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.MonthlyItems}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		var err error
		out, err = itemsOf(tx, recordID)
		return err
	})
	if err != nil {
		return nil, storageErr("monthly.listItems", entityItem, err)
	}
	return out, nil
}

// ReplaceItems deletes every item of the record and inserts items in their
// place, in order.
func (r *monthlyRepo) ReplaceItems(ctx context.Context, recordID string, items []NewItem, opts ...Option) ([]domain.MonthlyItem, error) {
	const op = "monthly.replaceItems"
	for i, it := range items {
		if err := domain.Validate(it); err != nil {
			e := invalidInput(op, entityItem, err)
			if e.Meta == nil {
				e.Meta = map[string]any{}
			}
			e.Meta["index"] = i
			return nil, e
		}
	}
	out := make([]domain.MonthlyItem, 0, len(items))
	err := r.withOptionalTx(ctx, opts, recordTree, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		_, found, err := tx.Get(schema.MonthlyRecords, recordID)
		if err != nil {
			return err
		}
		if !found {
			return notFound(op, entityMonthly, map[string]any{"monthlyRecordId": recordID})
		}
		keys, err := indexKeys(tx, schema.MonthlyItems, "monthlyRecordId", recordID)
		if err != nil {
			return err
		}
		if err := deleteAll(tx, schema.MonthlyItems, keys); err != nil {
			return err
		}
		now := r.now()
		for _, it := range items {
			item := domain.MonthlyItem{
				ID:              r.ids.Generate(),
				MonthlyRecordID: recordID,
				Kind:            it.Kind,
				Category:        it.Category,
				AmountYen:       it.AmountYen,
				Note:            it.Note,
				CreatedAt:       now,
			}
			if _, err := tx.Put(schema.MonthlyItems, item); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr(op, entityItem, err)
	}
	return out, nil
}

func (r *monthlyRepo) DeleteItemsByRecord(ctx context.Context, recordID string, opts ...Option) error {
	err := r.withOptionalTx(ctx, opts, []schema.Collection{schema.MonthlyItems}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		keys, err := indexKeys(tx, schema.MonthlyItems, "monthlyRecordId", recordID)
		if err != nil {
			return err
		}
		return deleteAll(tx, schema.MonthlyItems, keys)
	})
	return storageErr("monthly.deleteItemsByRecord", entityItem, err)
}
