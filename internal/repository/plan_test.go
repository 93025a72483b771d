package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/kvstore"
	"github.com/roach88/lifeplan/internal/schema"
)

func TestPlans_CreateAndGet(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	p, err := f.repos.Plans.Create(ctx, NewPlan{UserID: "u1", Name: "Family", HouseholdType: "couple"})
	require.NoError(t, err)
	assert.Equal(t, "id-0001", p.ID)
	assert.Equal(t, domain.PlanActive, p.Status)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Nil(t, p.ArchivedAt)

	got, err := f.repos.Plans.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPlans_CreateValidates(t *testing.T) {
	f := setupRepos(t)
	_, err := f.repos.Plans.Create(context.Background(), NewPlan{})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeInvalidArgument))
	assert.Zero(t, count(t, f.store, schema.Plans))
}

func TestPlans_GetMissing(t *testing.T) {
	f := setupRepos(t)
	_, err := f.repos.Plans.Get(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestPlans_UpdateBumpsUpdatedAt(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, err := f.repos.Plans.Create(ctx, NewPlan{Name: "Old"})
	require.NoError(t, err)

	got, err := f.repos.Plans.Update(ctx, p.ID, PlanPatch{Name: ptr("New")})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, p.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(p.UpdatedAt.Time))

	_, err = f.repos.Plans.Update(ctx, p.ID, PlanPatch{Name: ptr("")})
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = f.repos.Plans.Update(ctx, "nope", PlanPatch{Name: ptr("x")})
	assert.True(t, IsNotFound(err))
}

func TestPlans_ArchiveRestore(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, err := f.repos.Plans.Create(ctx, NewPlan{Name: "P"})
	require.NoError(t, err)

	archived, err := f.repos.Plans.Archive(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)
	assert.Equal(t, archived.UpdatedAt, *archived.ArchivedAt)

	restored, err := f.repos.Plans.Restore(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanActive, restored.Status)
	assert.Nil(t, restored.ArchivedAt)

	stored, err := f.repos.Plans.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, restored, stored)
}

func TestPlans_List(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	a, err := f.repos.Plans.Create(ctx, NewPlan{UserID: "u1", Name: "Home purchase"})
	require.NoError(t, err)
	b, err := f.repos.Plans.Create(ctx, NewPlan{UserID: "u1", Name: "Retirement"})
	require.NoError(t, err)
	c, err := f.repos.Plans.Create(ctx, NewPlan{UserID: "u2", Name: "HOME office"})
	require.NoError(t, err)
	_, err = f.repos.Plans.Archive(ctx, b.ID)
	require.NoError(t, err)
	// Touch a so it becomes the most recently updated plan.
	_, err = f.repos.Plans.Update(ctx, a.ID, PlanPatch{HouseholdType: ptr("single")})
	require.NoError(t, err)

	ids := func(ps []domain.Plan) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter PlanFilter
		sort   PlanSort
		want   []string
	}{
		{"all by updatedAt", PlanFilter{}, SortByUpdatedAt, []string{a.ID, b.ID, c.ID}},
		{"all by createdAt", PlanFilter{}, SortByCreatedAt, []string{c.ID, b.ID, a.ID}},
		{"user", PlanFilter{UserID: "u1"}, SortByUpdatedAt, []string{a.ID, b.ID}},
		{"status", PlanFilter{Status: domain.PlanActive}, SortByUpdatedAt, []string{a.ID, c.ID}},
		{"user and status", PlanFilter{UserID: "u1", Status: domain.PlanArchived}, SortByUpdatedAt, []string{b.ID}},
		{"query folds case", PlanFilter{Query: "home"}, SortByCreatedAt, []string{c.ID, a.ID}},
		{"query folds width", PlanFilter{Query: "ＨＯＭＥ"}, SortByCreatedAt, []string{c.ID, a.ID}},
		{"no match", PlanFilter{UserID: "u3"}, SortByUpdatedAt, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.repos.Plans.List(ctx, tt.filter, tt.sort)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestPlans_DeleteCascades(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	doomed, v1 := seedPlan(t, f, "Doomed")
	_, err := f.repos.Versions.EnsureScenarioSet(ctx, v1.ID)
	require.NoError(t, err)
	_, err = f.repos.Events.Create(ctx, v1.ID, NewEvent{EventType: "car", StartYm: "2026-01", Cadence: domain.CadenceOnce, AmountYen: 3_000_000, Direction: domain.FlowExpense})
	require.NoError(t, err)
	_, err = f.repos.Housing.ApplyPreset(ctx, v1.ID, domain.HousingRent, domain.PresetBase)
	require.NoError(t, err)
	v2, err := f.repos.Versions.CreateFromCurrent(ctx, doomed.ID, NewVersion{})
	require.NoError(t, err)
	rec, err := f.repos.Monthly.UpsertByYm(ctx, doomed.ID, "2025-04", MonthlyPatch{IncomeTotalYen: ptr[int64](400_000)})
	require.NoError(t, err)
	_, err = f.repos.Monthly.ReplaceItems(ctx, rec.ID, []NewItem{{Kind: domain.ItemIncome, Category: "salary", AmountYen: 400_000}})
	require.NoError(t, err)

	kept, keptVersion := seedPlan(t, f, "Kept")
	_, err = f.repos.Versions.EnsureScenarioSet(ctx, keptVersion.ID)
	require.NoError(t, err)
	keptRec, err := f.repos.Monthly.UpsertByYm(ctx, kept.ID, "2025-04", MonthlyPatch{})
	require.NoError(t, err)
	_, err = f.repos.Monthly.ReplaceItems(ctx, keptRec.ID, []NewItem{{Kind: domain.ItemExpense, Category: "rent", AmountYen: 100_000}})
	require.NoError(t, err)

	require.NoError(t, f.repos.Plans.Delete(ctx, doomed.ID))

	_, err = f.repos.Plans.Get(ctx, doomed.ID)
	assert.True(t, IsNotFound(err))
	for _, vid := range []string{v1.ID, v2.ID} {
		_, err = f.repos.Versions.Get(ctx, vid)
		assert.True(t, IsNotFound(err), vid)
	}

	assert.Equal(t, 1, count(t, f.store, schema.Plans))
	assert.Equal(t, 1, count(t, f.store, schema.PlanVersions))
	assert.Equal(t, 3, count(t, f.store, schema.ScenarioAssumptions))
	assert.Equal(t, 0, count(t, f.store, schema.LifeEvents))
	assert.Equal(t, 0, count(t, f.store, schema.HousingAssumptions))
	assert.Equal(t, 1, count(t, f.store, schema.MonthlyRecords))
	assert.Equal(t, 1, count(t, f.store, schema.MonthlyItems))

	// Deleting again is a no-op.
	assert.NoError(t, f.repos.Plans.Delete(ctx, doomed.ID))
}

func TestPlans_WithTxJoinsCallerTransaction(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	var created domain.Plan
	err := f.store.WithTx(ctx, []schema.Collection{schema.Plans}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		var err error
		created, err = f.repos.Plans.Create(ctx, NewPlan{Name: "in tx"}, WithTx(tx))
		if err != nil {
			return err
		}
		got, err := f.repos.Plans.Get(ctx, created.ID, WithTx(tx))
		require.NoError(t, err)
		assert.Equal(t, created, got)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = f.repos.Plans.Get(ctx, created.ID)
	assert.True(t, IsNotFound(err), "rolled back with the caller transaction")
}

func TestPlans_WithTxScopeChecked(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, _ := seedPlan(t, f, "P")

	err := f.store.WithTx(ctx, []schema.Collection{schema.Plans}, kvstore.ReadWrite, func(tx *kvstore.Tx) error {
		return f.repos.Plans.Delete(ctx, p.ID, WithTx(tx))
	})
	assert.ErrorIs(t, err, kvstore.ErrOutOfScope)

	err = f.store.WithTx(ctx, []schema.Collection{schema.Plans}, kvstore.ReadOnly, func(tx *kvstore.Tx) error {
		_, err := f.repos.Plans.Archive(ctx, p.ID, WithTx(tx))
		return err
	})
	assert.ErrorIs(t, err, kvstore.ErrReadOnly)

	got, err := f.repos.Plans.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanActive, got.Status)
}
