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

func selectedTypes(rows []domain.HousingAssumptions) []domain.HousingType {
	var out []domain.HousingType
	for _, h := range rows {
		if h.IsSelected {
			out = append(out, h.HousingType)
		}
	}
	return out
}

func TestHousing_ApplyPresetSeedsOnce(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v := seedPlan(t, f, "P")

	condo, err := f.repos.Housing.ApplyPreset(ctx, v.ID, domain.HousingCondo, domain.PresetBase)
	require.NoError(t, err)
	assert.True(t, condo.IsSelected, "first row of a version is selected")
	assert.Equal(t, int64(50_000_000), condo.PurchasePriceYen)
	detail, ok := condo.TypeSpecific.(*domain.CondoDetail)
	require.True(t, ok)
	assert.Equal(t, int64(15_000), detail.ManagementFeeYenPerMonth)

	rent, err := f.repos.Housing.ApplyPreset(ctx, v.ID, domain.HousingRent, domain.PresetOptimistic)
	require.NoError(t, err)
	assert.False(t, rent.IsSelected)

	// Re-applying returns the stored row untouched.
	_, err = f.repos.Housing.Upsert(ctx, domain.HousingAssumptions{
		PlanVersionID: v.ID,
		HousingType:   domain.HousingRent,
		TypeSpecific:  &domain.RentDetail{RentYenPerMonth: 95_000},
	})
	require.NoError(t, err)
	again, err := f.repos.Housing.ApplyPreset(ctx, v.ID, domain.HousingRent, domain.PresetBase)
	require.NoError(t, err)
	assert.Equal(t, rent.ID, again.ID)
	assert.Equal(t, int64(95_000), again.TypeSpecific.(*domain.RentDetail).RentYenPerMonth)

	assert.Equal(t, 2, count(t, f.store, schema.HousingAssumptions))
}

func TestHousing_ApplyPresetRejects(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v := seedPlan(t, f, "P")

	_, err := f.repos.Housing.ApplyPreset(ctx, v.ID, domain.HousingCondo, "luxury")
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = f.repos.Housing.ApplyPreset(ctx, v.ID, "castle", domain.PresetBase)
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = f.repos.Housing.ApplyPreset(ctx, "missing", domain.HousingCondo, domain.PresetBase)
	assert.True(t, IsNotFound(err))

	assert.Zero(t, count(t, f.store, schema.HousingAssumptions))
}

func TestHousing_ApplyPresetDoesNotShareDefaults(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v := seedPlan(t, f, "P")

	hp, err := f.repos.Housing.ApplyPreset(ctx, v.ID, domain.HousingHighPerformance, domain.PresetBase)
	require.NoError(t, err)
	hp.TypeSpecific.(*domain.HighPerformanceDetail).RepairSchedule[0].AmountYen = 1

	fresh, err := domain.PresetDefaults(domain.PresetBase, domain.HousingHighPerformance)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500_000), fresh.TypeSpecific.(*domain.HighPerformanceDetail).RepairSchedule[0].AmountYen)
}

func TestHousing_SingleSelection(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v := seedPlan(t, f, "P")
	for _, ht := range domain.HousingTypes {
		_, err := f.repos.Housing.ApplyPreset(ctx, v.ID, ht, domain.PresetBase)
		require.NoError(t, err)
	}

	rows, err := f.repos.Housing.ListByVersion(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, h := range rows {
		assert.Equal(t, domain.HousingTypes[i], h.HousingType, "canonical order")
	}
	assert.Equal(t, []domain.HousingType{domain.HousingHighPerformance}, selectedTypes(rows))

	got, err := f.repos.Housing.SetSelected(ctx, v.ID, domain.HousingRent)
	require.NoError(t, err)
	assert.True(t, got.IsSelected)
	rows, err = f.repos.Housing.ListByVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.HousingType{domain.HousingRent}, selectedTypes(rows))

	// Upserting a selected row moves the selection too.
	detached, err := f.repos.Housing.GetByType(ctx, v.ID, domain.HousingDetached)
	require.NoError(t, err)
	detached.IsSelected = true
	detached.LoanRate = decimal.RequireFromString("0.012")
	_, err = f.repos.Housing.Upsert(ctx, detached)
	require.NoError(t, err)
	rows, err = f.repos.Housing.ListByVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.HousingType{domain.HousingDetached}, selectedTypes(rows))

	_, err = f.repos.Housing.SetSelected(ctx, v.ID, "castle")
	assert.True(t, IsNotFound(err))

	other, _ := seedPlan(t, f, "Other")
	_, err = f.repos.Housing.SetSelected(ctx, other.CurrentVersionID, domain.HousingCondo)
	assert.True(t, IsNotFound(err))
}

func TestHousing_UpsertKeepsIdentity(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v := seedPlan(t, f, "P")

	first, err := f.repos.Housing.Upsert(ctx, domain.HousingAssumptions{
		ID:            "ignored",
		PlanVersionID: v.ID,
		HousingType:   domain.HousingDetached,
		HousingCosts:  domain.HousingCosts{PurchasePriceYen: 40_000_000, LoanRate: decimal.RequireFromString("0.009")},
		TypeSpecific:  &domain.DetachedDetail{LandAreaSqm: 100},
	})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", first.ID)

	second, err := f.repos.Housing.Upsert(ctx, domain.HousingAssumptions{
		PlanVersionID: v.ID,
		HousingType:   domain.HousingDetached,
		HousingCosts:  domain.HousingCosts{PurchasePriceYen: 42_000_000},
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := f.repos.Housing.GetByType(ctx, v.ID, domain.HousingDetached)
	require.NoError(t, err)
	assert.Equal(t, int64(42_000_000), got.PurchasePriceYen)
	assert.Nil(t, got.TypeSpecific)
	assert.Equal(t, 1, count(t, f.store, schema.HousingAssumptions))
}

func TestHousing_UpsertRejects(t *testing.T) {
	f := setupRepos(t)
	ctx := context.Background()
	_, v := seedPlan(t, f, "P")

	_, err := f.repos.Housing.Upsert(ctx, domain.HousingAssumptions{
		PlanVersionID: v.ID,
		HousingType:   domain.HousingCondo,
		TypeSpecific:  &domain.RentDetail{RentYenPerMonth: 1},
	})
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = f.repos.Housing.Upsert(ctx, domain.HousingAssumptions{PlanVersionID: v.ID, HousingType: "castle"})
	assert.True(t, IsCode(err, CodeInvalidArgument))

	_, err = f.repos.Housing.Upsert(ctx, domain.HousingAssumptions{PlanVersionID: "missing", HousingType: domain.HousingRent})
	assert.True(t, IsNotFound(err))

	_, err = f.repos.Housing.GetByType(ctx, v.ID, domain.HousingRent)
	assert.True(t, IsNotFound(err))
}
