package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHousingAssumptions_JSONByDiscriminator(t *testing.T) {
	details := []HousingDetail{
		&HighPerformanceDetail{InsulationGrade: 7, RepairSchedule: []RepairItem{{YearOffset: 12, AmountYen: 900_000}}},
		&DetachedDetail{LandAreaSqm: 99},
		&CondoDetail{ManagementFeeYenPerMonth: 20_000},
		&RentDetail{RentYenPerMonth: 95_000, DepositMonths: 2},
	}
	for _, d := range details {
		h := HousingAssumptions{
			ID:            "h1",
			PlanVersionID: "v1",
			HousingType:   d.HousingType(),
			IsSelected:    true,
			HousingCosts:  HousingCosts{PurchasePriceYen: 1, LoanRate: decimal.RequireFromString("0.015")},
			TypeSpecific:  d,
		}
		data, err := json.Marshal(h)
		require.NoError(t, err)

		var fields map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &fields))
		assert.Contains(t, fields, "typeSpecific")
		assert.Contains(t, fields, "purchasePriceYen", "costs are flattened")
		assert.JSONEq(t, `"0.015"`, string(fields["loanRate"]))

		var got HousingAssumptions
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, d, got.TypeSpecific, string(d.HousingType()))
		assert.True(t, h.LoanRate.Equal(got.LoanRate))
		assert.Equal(t, h.HousingType, got.HousingType)
	}
}

func TestHousingAssumptions_RejectsMismatchedPayload(t *testing.T) {
	h := HousingAssumptions{ID: "h1", HousingType: HousingRent, TypeSpecific: &CondoDetail{}}
	_, err := json.Marshal(h)
	assert.Error(t, err)

	var got HousingAssumptions
	err = json.Unmarshal([]byte(`{"id":"h1","housingType":"castle","typeSpecific":{}}`), &got)
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"h2","housingType":"rent"}`), &got))
	assert.Nil(t, got.TypeSpecific)
}

func TestHousingAssumptions_CloneIsDeep(t *testing.T) {
	h := HousingAssumptions{
		HousingType:  HousingDetached,
		TypeSpecific: &DetachedDetail{RepairSchedule: []RepairItem{{YearOffset: 10, AmountYen: 1}}},
	}
	c := h.Clone()
	c.TypeSpecific.(*DetachedDetail).RepairSchedule[0].AmountYen = 999

	assert.Equal(t, int64(1), h.TypeSpecific.(*DetachedDetail).RepairSchedule[0].AmountYen)
}

func TestHousingType_Order(t *testing.T) {
	for i, ht := range HousingTypes {
		assert.Equal(t, i, ht.Order())
		assert.True(t, ht.Valid())
	}
	assert.False(t, HousingType("castle").Valid())
	assert.Equal(t, len(HousingTypes), HousingType("castle").Order())
}
