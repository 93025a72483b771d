// Package repository implements the five lifeplan entity repositories on top
// of the kvstore document store.
//
// Every method takes an optional WithTx(tx) option. With it, the call joins
// the caller's transaction, which must declare every collection the method
// touches; without it, the method opens its own transaction. Multi-step
// invariants (cascade deletes, single current version, single selected
// housing, natural-key upserts) always run inside one transaction.
package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/ident"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
)

// Entity names used in errors.
const (
	entityPlan     = "Plan"
	entityVersion  = "PlanVersion"
	entityScenario = "ScenarioAssumptions"
	entityMonthly  = "MonthlyRecord"
	entityItem     = "MonthlyItem"
	entityEvent    = "LifeEvent"
	entityHousing  = "HousingAssumptions"
)

// PlanRepository manages plans and their cascade delete.
type PlanRepository interface {
	Get(ctx context.Context, id string, opts ...Option) (domain.Plan, error)
	List(ctx context.Context, filter PlanFilter, sort PlanSort, opts ...Option) ([]domain.Plan, error)
	Create(ctx context.Context, in NewPlan, opts ...Option) (domain.Plan, error)
	Update(ctx context.Context, id string, patch PlanPatch, opts ...Option) (domain.Plan, error)
	Archive(ctx context.Context, id string, opts ...Option) (domain.Plan, error)
	Restore(ctx context.Context, id string, opts ...Option) (domain.Plan, error)
	Delete(ctx context.Context, id string, opts ...Option) error
}

// VersionRepository manages plan versions and their scenario sets.
type VersionRepository interface {
	Get(ctx context.Context, id string, opts ...Option) (domain.PlanVersion, error)
	ListByPlan(ctx context.Context, planID string, opts ...Option) ([]domain.PlanVersion, error)
	GetCurrent(ctx context.Context, planID string, opts ...Option) (domain.PlanVersion, error)
	CreateInitial(ctx context.Context, planID string, in NewVersion, opts ...Option) (domain.PlanVersion, error)
	CreateFromCurrent(ctx context.Context, planID string, in NewVersion, opts ...Option) (domain.PlanVersion, error)
	SetCurrent(ctx context.Context, planID, versionID string, opts ...Option) (domain.PlanVersion, error)
	UpdateMeta(ctx context.Context, versionID string, patch VersionPatch, opts ...Option) (domain.PlanVersion, error)
	Delete(ctx context.Context, versionID string, opts ...Option) error
	GetScenarioSet(ctx context.Context, versionID string, opts ...Option) (domain.ScenarioSet, error)
	UpsertScenarioSet(ctx context.Context, versionID string, rates map[domain.ScenarioKey]domain.ScenarioRates, opts ...Option) (domain.ScenarioSet, error)
	EnsureScenarioSet(ctx context.Context, versionID string, opts ...Option) (domain.ScenarioSet, error)
}

// MonthlyRepository manages monthly records and their line items.
type MonthlyRepository interface {
	GetByYm(ctx context.Context, planID string, ym domain.YearMonth, opts ...Option) (domain.MonthlyRecord, error)
	ListByPlan(ctx context.Context, planID string, q MonthlyQuery, opts ...Option) ([]domain.MonthlyRecord, error)
	Upsert(ctx context.Context, rec domain.MonthlyRecord, opts ...Option) (domain.MonthlyRecord, error)
	UpsertByYm(ctx context.Context, planID string, ym domain.YearMonth, patch MonthlyPatch, opts ...Option) (domain.MonthlyRecord, error)
	CopyFromPreviousMonth(ctx context.Context, planID string, ym domain.YearMonth, opts ...Option) (domain.MonthlyRecord, error)
	DeleteByYm(ctx context.Context, planID string, ym domain.YearMonth, opts ...Option) error
	ListItems(ctx context.Context, recordID string, opts ...Option) ([]domain.MonthlyItem, error)
	ReplaceItems(ctx context.Context, recordID string, items []NewItem, opts ...Option) ([]domain.MonthlyItem, error)
	DeleteItemsByRecord(ctx context.Context, recordID string, opts ...Option) error
}

// EventRepository manages life events.
type EventRepository interface {
	Get(ctx context.Context, id string, opts ...Option) (domain.LifeEvent, error)
	ListByVersion(ctx context.Context, versionID string, filter EventFilter, opts ...Option) ([]domain.LifeEvent, error)
	Create(ctx context.Context, versionID string, in NewEvent, opts ...Option) (domain.LifeEvent, error)
	Update(ctx context.Context, id string, patch EventPatch, opts ...Option) (domain.LifeEvent, error)
	Delete(ctx context.Context, id string, opts ...Option) error
	Duplicate(ctx context.Context, id string, opts ...Option) (domain.LifeEvent, error)
}

// HousingRepository manages housing assumptions and the single selection.
type HousingRepository interface {
	ListByVersion(ctx context.Context, versionID string, opts ...Option) ([]domain.HousingAssumptions, error)
	GetByType(ctx context.Context, versionID string, t domain.HousingType, opts ...Option) (domain.HousingAssumptions, error)
	Upsert(ctx context.Context, h domain.HousingAssumptions, opts ...Option) (domain.HousingAssumptions, error)
	SetSelected(ctx context.Context, versionID string, t domain.HousingType, opts ...Option) (domain.HousingAssumptions, error)
	ApplyPreset(ctx context.Context, versionID string, t domain.HousingType, preset domain.HousingPreset, opts ...Option) (domain.HousingAssumptions, error)
}

// Repositories bundles the five repositories over one store.
type Repositories struct {
	Plans    PlanRepository
	Versions VersionRepository
	Monthly  MonthlyRepository
	Events   EventRepository
	Housing  HousingRepository

	store *kvstore.Store
}

// Deps are the collaborators of the repositories. Zero fields get
// production defaults: UUIDv7 ids, the system clock and slog.Default().
type Deps struct {
	IDs    ident.Generator
	Clock  ident.Clock
	Logger *slog.Logger
}

// New creates the repositories.
func New(store *kvstore.Store, deps Deps) *Repositories {
	if deps.IDs == nil {
		deps.IDs = ident.UUIDv7Generator{}
	}
	if deps.Clock == nil {
		deps.Clock = ident.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	b := &base{store: store, ids: deps.IDs, clock: deps.Clock, logger: deps.Logger}
	return &Repositories{
		Plans:    &planRepo{b},
		Versions: &versionRepo{b},
		Monthly:  &monthlyRepo{b},
		Events:   &eventRepo{b},
		Housing:  &housingRepo{b},
		store:    store,
	}
}

// Store returns the store the repositories write to.
func (r *Repositories) Store() *kvstore.Store {
	return r.store
}

// Option configures a single repository call.
type Option func(*callOptions)

type callOptions struct {
	tx *kvstore.Tx
}

// WithTx makes the call participate in the caller's transaction.
func WithTx(tx *kvstore.Tx) Option {
	return func(o *callOptions) { o.tx = tx }
}

// TxFrom returns the caller transaction carried by opts, or nil.
func TxFrom(opts ...Option) *kvstore.Tx {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.tx
}

type base struct {
	store  *kvstore.Store
	ids    ident.Generator
	clock  ident.Clock
	logger *slog.Logger
}

func (b *base) now() domain.Timestamp {
	return domain.NewTimestamp(b.clock.Now())
}

// withOptionalTx runs fn in the caller's transaction when one was supplied,
// otherwise in a new transaction over collections.
func (b *base) withOptionalTx(ctx context.Context, opts []Option, collections []schema.Collection, mode kvstore.Mode, fn func(*kvstore.Tx) error) error {
	tx := TxFrom(opts...)
	if tx == nil {
		return b.store.WithTx(ctx, collections, mode, fn)
	}
	if !tx.Covers(collections...) {
		return fmt.Errorf("caller transaction does not cover %v: %w", collections, kvstore.ErrOutOfScope)
	}
	if mode == kvstore.ReadWrite && tx.Mode() == kvstore.ReadOnly {
		return kvstore.ErrReadOnly
	}
	return fn(tx)
}

// getDoc reads and decodes one document; found is false when absent.
func getDoc[T any](tx *kvstore.Tx, coll schema.Collection, key string) (T, bool, error) {
	var v T
	rec, found, err := tx.Get(coll, key)
	if err != nil || !found {
		return v, found, err
	}
	if err := rec.Decode(&v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// getByIndex decodes the first document matching key on index.
func getByIndex[T any](tx *kvstore.Tx, coll schema.Collection, index string, key ...any) (T, bool, error) {
	var v T
	rec, found, err := tx.GetByIndex(coll, index, kvstore.Key(key))
	if err != nil || !found {
		return v, found, err
	}
	if err := rec.Decode(&v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// listByIndex decodes every document matching q on index.
func listByIndex[T any](tx *kvstore.Tx, coll schema.Collection, index string, q kvstore.Query) ([]T, error) {
	return kvstore.DecodeAll[T](tx.ScanIndex(coll, index, q))
}

// indexKeys collects the primary keys of every document whose index key
// equals key. Keys are materialised before the caller issues writes.
func indexKeys(tx *kvstore.Tx, coll schema.Collection, index string, key ...any) ([]string, error) {
	recs, err := tx.ListByIndex(coll, index, kvstore.Query{Range: kvstore.Only(key...)})
	if err != nil {
		return nil, err
	}
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out, nil
}

func deleteAll(tx *kvstore.Tx, coll schema.Collection, keys []string) error {
	for _, k := range keys {
		if err := tx.Delete(coll, k); err != nil {
			return err
		}
	}
	return nil
}
