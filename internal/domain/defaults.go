package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var scenarioDefaults = map[ScenarioKey]ScenarioRates{
	ScenarioConservative: {WageGrowthRate: pct("0.03"), InflationRate: pct("0.03"), InvestmentReturnRate: pct("0.03")},
	ScenarioBase:         {WageGrowthRate: pct("0.02"), InflationRate: pct("0.02"), InvestmentReturnRate: pct("0.02")},
	ScenarioOptimistic:   {WageGrowthRate: pct("0.01"), InflationRate: pct("0.01"), InvestmentReturnRate: pct("0.01")},
}

// DefaultScenarioRates returns the seed rates of scenario k.
func DefaultScenarioRates(k ScenarioKey) (ScenarioRates, bool) {
	r, ok := scenarioDefaults[k]
	return r, ok
}

// HousingPreset names a set of housing defaults.
type HousingPreset string

const (
	PresetConservative HousingPreset = "conservative"
	PresetBase         HousingPreset = "base"
	PresetOptimistic   HousingPreset = "optimistic"
)

// ErrUnknownPreset is returned for a preset outside the defaults table.
var ErrUnknownPreset = errors.New("unsupported housing preset")

// HousingDefaults is the field set a preset seeds for one housing type.
type HousingDefaults struct {
	HousingCosts
	TypeSpecific HousingDetail
}

var baseHousingDefaults = map[HousingType]HousingDefaults{
	HousingHighPerformance: {
		HousingCosts: HousingCosts{
			PurchasePriceYen:      55_000_000,
			DownPaymentYen:        5_500_000,
			LoanRate:              pct("0.008"),
			LoanTermYears:         35,
			PropertyTaxYenPerYear: 150_000,
			MaintenanceYenPerYear: 100_000,
		},
		TypeSpecific: &HighPerformanceDetail{
			InsulationGrade:         6,
			SolarCapacityKW:         5,
			EnergySavingYenPerMonth: 8_000,
			RepairSchedule: []RepairItem{
				{YearOffset: 15, AmountYen: 1_500_000, Label: "外壁・屋根"},
				{YearOffset: 25, AmountYen: 2_000_000, Label: "設備更新"},
			},
		},
	},
	HousingDetached: {
		HousingCosts: HousingCosts{
			PurchasePriceYen:      45_000_000,
			DownPaymentYen:        4_500_000,
			LoanRate:              pct("0.008"),
			LoanTermYears:         35,
			PropertyTaxYenPerYear: 120_000,
			MaintenanceYenPerYear: 150_000,
		},
		TypeSpecific: &DetachedDetail{
			LandAreaSqm: 120,
			RepairSchedule: []RepairItem{
				{YearOffset: 10, AmountYen: 1_500_000, Label: "外壁塗装"},
				{YearOffset: 20, AmountYen: 2_500_000, Label: "屋根・水回り"},
			},
		},
	},
	HousingCondo: {
		HousingCosts: HousingCosts{
			PurchasePriceYen:      50_000_000,
			DownPaymentYen:        5_000_000,
			LoanRate:              pct("0.008"),
			LoanTermYears:         35,
			PropertyTaxYenPerYear: 130_000,
		},
		TypeSpecific: &CondoDetail{
			ManagementFeeYenPerMonth: 15_000,
			RepairReserveYenPerMonth: 12_000,
			ParkingYenPerMonth:       10_000,
		},
	},
	HousingRent: {
		HousingCosts: HousingCosts{LoanRate: decimal.Zero},
		TypeSpecific: &RentDetail{
			RentYenPerMonth:      120_000,
			DepositMonths:        1,
			RenewalFeeMonths:     1,
			RenewalIntervalYears: 2,
		},
	},
}

// Every preset currently seeds the base field set.
var housingPresets = map[HousingPreset]map[HousingType]HousingDefaults{
	PresetConservative: baseHousingDefaults,
	PresetBase:         baseHousingDefaults,
	PresetOptimistic:   baseHousingDefaults,
}

// PresetDefaults returns a deep copy of the field set preset p seeds for
// housing type t.
func PresetDefaults(p HousingPreset, t HousingType) (HousingDefaults, error) {
	table, ok := housingPresets[p]
	if !ok {
		return HousingDefaults{}, fmt.Errorf("%w: %q", ErrUnknownPreset, p)
	}
	d, ok := table[t]
	if !ok {
		return HousingDefaults{}, fmt.Errorf("unknown housing type %q", t)
	}
	d.TypeSpecific = CloneDetail(d.TypeSpecific)
	return d, nil
}
