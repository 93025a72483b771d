package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lifeplan/internal/domain"
	"github.com/roach88/lifeplan/internal/schema"
)

func TestVersions_CreateInitial(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()

	p, err := f.repos.Plans.Create(ctx, NewPlan{Name: "P"})
	require.NoError(t, err)
	v, err := f.repos.Versions.CreateInitial(ctx, p.ID, NewVersion{ChangeNote: "first"})
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNo)
	assert.Equal(t, "v1", v.Title)
	assert.Equal(t, "first", v.ChangeNote)
	assert.True(t, v.IsCurrent)

	plan, err := f.repos.Plans.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, plan.CurrentVersionID)

	_, err = f.repos.Versions.CreateInitial(ctx, p.ID, NewVersion{})
	assert.True(t, IsCode(err, CodeInvariant))

	_, err = f.repos.Versions.CreateInitial(ctx, "missing", NewVersion{})
	assert.True(t, IsNotFound(err))
}

func TestVersions_CreateFromCurrentClonesOwnedRows(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, v1 := seedPlan(t, f, "P")

	_, err := f.repos.Versions.EnsureScenarioSet(ctx, v1.ID)
	require.NoError(t, err)
	ev, err := f.repos.Events.Create(ctx, v1.ID, NewEvent{EventType: "education", StartYm: "2030-04", Cadence: domain.CadenceMonthly, DurationMonths: 48, AmountYen: 50_000, Direction: domain.FlowExpense})
	require.NoError(t, err)
	srcHousing, err := f.repos.Housing.ApplyPreset(ctx, v1.ID, domain.HousingHighPerformance, domain.PresetBase)
	require.NoError(t, err)
	projected := int64(80_000_000)
	_, err = f.repos.Versions.UpdateMeta(ctx, v1.ID, VersionPatch{ProjectedAssetsYen: &projected})
	require.NoError(t, err)

	v2, err := f.repos.Versions.CreateFromCurrent(ctx, p.ID, NewVersion{ChangeNote: "what if"})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNo)
	assert.Equal(t, "v2", v2.Title)
	assert.False(t, v2.IsCurrent)
	require.NotNil(t, v2.ProjectedAssetsYen)
	assert.Equal(t, projected, *v2.ProjectedAssetsYen)

	current, err := f.repos.Versions.GetCurrent(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, current.ID, "cloning does not move the current pointer")

	set, err := f.repos.Versions.GetScenarioSet(ctx, v2.ID)
	require.NoError(t, err)
	require.Len(t, set, 3)
	for _, k := range domain.ScenarioKeys {
		want, _ := domain.DefaultScenarioRates(k)
		assert.True(t, want.Equal(set[k].ScenarioRates), k)
		assert.Equal(t, v2.ID, set[k].PlanVersionID)
	}

	events, err := f.repos.Events.ListByVersion(ctx, v2.ID, EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEqual(t, ev.ID, events[0].ID)
	assert.Equal(t, ev.EventType, events[0].EventType)
	assert.Equal(t, 48, events[0].DurationMonths)

	housing, err := f.repos.Housing.ListByVersion(ctx, v2.ID)
	require.NoError(t, err)
	require.Len(t, housing, 1)
	assert.NotEqual(t, srcHousing.ID, housing[0].ID)
	assert.True(t, housing[0].IsSelected)
	assert.Equal(t, srcHousing.TypeSpecific, housing[0].TypeSpecific)

	versions, err := f.repos.Versions.ListByPlan(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, []int{2, 1}, []int{versions[0].VersionNo, versions[1].VersionNo})
}

func TestVersions_CreateFromCurrentConflict(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, v1 := seedPlan(t, f, "P")

	_, err := f.repos.Versions.CreateFromCurrent(ctx, p.ID, NewVersion{})
	require.NoError(t, err)
	// v1 is still current, so the next number (2) is taken.
	_, err = f.repos.Versions.CreateFromCurrent(ctx, p.ID, NewVersion{})
	assert.True(t, IsCode(err, CodeConflict))

	_, err = f.repos.Versions.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, f.store, schema.PlanVersions))
}

func TestVersions_SetCurrentKeepsSingleCurrent(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, v1 := seedPlan(t, f, "P")
	v2, err := f.repos.Versions.CreateFromCurrent(ctx, p.ID, NewVersion{Title: "two"})
	require.NoError(t, err)
	assert.Equal(t, "two", v2.Title)

	got, err := f.repos.Versions.SetCurrent(ctx, p.ID, v2.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCurrent)

	versions, err := f.repos.Versions.ListByPlan(ctx, p.ID)
	require.NoError(t, err)
	currents := 0
	for _, v := range versions {
		if v.IsCurrent {
			currents++
			assert.Equal(t, v2.ID, v.ID)
		}
	}
	assert.Equal(t, 1, currents)

	plan, err := f.repos.Plans.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, plan.CurrentVersionID)

	// Setting it again changes nothing.
	again, err := f.repos.Versions.SetCurrent(ctx, p.ID, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	other, _ := seedPlan(t, f, "Other")
	_, err = f.repos.Versions.SetCurrent(ctx, other.ID, v1.ID)
	assert.True(t, IsNotFound(err), "version of another plan")
}

func TestVersions_GetCurrentFallsBackToFlag(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, v1 := seedPlan(t, f, "P")

	p.CurrentVersionID = ""
	_, err := f.store.Put(ctx, schema.Plans, p)
	require.NoError(t, err)

	got, err := f.repos.Versions.GetCurrent(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, got.ID)

	bare, err := f.repos.Plans.Create(ctx, NewPlan{Name: "no versions"})
	require.NoError(t, err)
	_, err = f.repos.Versions.GetCurrent(ctx, bare.ID)
	assert.True(t, IsNotFound(err))
}

func TestVersions_Delete(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	p, v1 := seedPlan(t, f, "P")
	_, err := f.repos.Versions.EnsureScenarioSet(ctx, v1.ID)
	require.NoError(t, err)
	_, err = f.repos.Housing.ApplyPreset(ctx, v1.ID, domain.HousingCondo, domain.PresetBase)
	require.NoError(t, err)
	_, err = f.repos.Events.Create(ctx, v1.ID, NewEvent{EventType: "car", StartYm: "2027-04", Cadence: domain.CadenceOnce, AmountYen: 3_000_000, Direction: domain.FlowExpense})
	require.NoError(t, err)
	v2, err := f.repos.Versions.CreateFromCurrent(ctx, p.ID, NewVersion{})
	require.NoError(t, err)

	sizes := func(versionID string) [3]int {
		t.Helper()
		set, err := f.repos.Versions.GetScenarioSet(ctx, versionID)
		require.NoError(t, err)
		housing, err := f.repos.Housing.ListByVersion(ctx, versionID)
		require.NoError(t, err)
		events, err := f.repos.Events.ListByVersion(ctx, versionID, EventFilter{})
		require.NoError(t, err)
		return [3]int{len(set), len(housing), len(events)}
	}
	before := sizes(v1.ID)
	assert.Equal(t, [3]int{3, 1, 1}, before)

	err = f.repos.Versions.Delete(ctx, v1.ID)
	assert.True(t, IsCode(err, CodeInvariant))
	kept, err := f.repos.Versions.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.True(t, kept.IsCurrent)
	assert.Equal(t, before, sizes(v1.ID), "rejected delete leaves the version tree intact")

	require.NoError(t, f.repos.Versions.Delete(ctx, v2.ID))
	_, err = f.repos.Versions.Get(ctx, v2.ID)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 3, count(t, f.store, schema.ScenarioAssumptions), "only v1's scenarios remain")

	err = f.repos.Versions.Delete(ctx, v2.ID)
	assert.True(t, IsNotFound(err))
}

func TestVersions_UpdateMeta(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v1 := seedPlan(t, f, "P")

	got, err := f.repos.Versions.UpdateMeta(ctx, v1.ID, VersionPatch{Title: ptr("baseline"), MonthlyBalanceYen: ptr[int64](-20_000)})
	require.NoError(t, err)
	assert.Equal(t, "baseline", got.Title)
	require.NotNil(t, got.MonthlyBalanceYen)
	assert.Equal(t, int64(-20_000), *got.MonthlyBalanceYen)
	assert.Nil(t, got.MinimumAssetsYen)
	assert.Equal(t, v1.VersionNo, got.VersionNo)

	_, err = f.repos.Versions.UpdateMeta(ctx, "missing", VersionPatch{})
	assert.True(t, IsNotFound(err))
}

func TestVersions_ScenarioSet(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v1 := seedPlan(t, f, "P")

	empty, err := f.repos.Versions.GetScenarioSet(ctx, v1.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	custom := domain.ScenarioRates{
		WageGrowthRate:       decimal.RequireFromString("0.015"),
		InflationRate:        decimal.RequireFromString("0.025"),
		InvestmentReturnRate: decimal.RequireFromString("0.04"),
	}
	set, err := f.repos.Versions.UpsertScenarioSet(ctx, v1.ID, map[domain.ScenarioKey]domain.ScenarioRates{domain.ScenarioBase: custom})
	require.NoError(t, err)
	require.Len(t, set, 1)
	baseID := set[domain.ScenarioBase].ID

	// Seeding fills the gaps without touching the custom row.
	set, err = f.repos.Versions.EnsureScenarioSet(ctx, v1.ID)
	require.NoError(t, err)
	require.Len(t, set, 3)
	assert.True(t, custom.Equal(set[domain.ScenarioBase].ScenarioRates))
	assert.Equal(t, baseID, set[domain.ScenarioBase].ID)

	again, err := f.repos.Versions.EnsureScenarioSet(ctx, v1.ID)
	require.NoError(t, err)
	assert.Len(t, again, 3)
	assert.Equal(t, 3, count(t, f.store, schema.ScenarioAssumptions))

	updated, err := f.repos.Versions.UpsertScenarioSet(ctx, v1.ID, map[domain.ScenarioKey]domain.ScenarioRates{
		domain.ScenarioOptimistic: custom,
	})
	require.NoError(t, err)
	assert.True(t, custom.Equal(updated[domain.ScenarioOptimistic].ScenarioRates))
	assert.Equal(t, set[domain.ScenarioOptimistic].ID, updated[domain.ScenarioOptimistic].ID)

	_, err = f.repos.Versions.UpsertScenarioSet(ctx, v1.ID, map[domain.ScenarioKey]domain.ScenarioRates{"wild": custom})
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = f.repos.Versions.EnsureScenarioSet(ctx, "missing")
	assert.True(t, IsNotFound(err))
}
