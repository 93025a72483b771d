package domain

import (
	"github.com/shopspring/decimal"
)

// PlanStatus is the lifecycle state of a plan.
type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanArchived PlanStatus = "archived"
)

// Plan is a household's top-level financial plan.
// Status is archived exactly when ArchivedAt is set.
type Plan struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId,omitempty"`
	Name             string     `json:"name"`
	HouseholdType    string     `json:"householdType,omitempty"`
	Status           PlanStatus `json:"status"`
	CreatedAt        Timestamp  `json:"createdAt"`
	UpdatedAt        Timestamp  `json:"updatedAt"`
	ArchivedAt       *Timestamp `json:"archivedAt,omitempty"`
	CurrentVersionID string     `json:"currentVersionId,omitempty"`
}

// PlanVersion is one revision of a plan's assumptions. Exactly one version
// of a plan is current once any exists.
type PlanVersion struct {
	ID                 string    `json:"id"`
	PlanID             string    `json:"planId"`
	VersionNo          int       `json:"versionNo"`
	Title              string    `json:"title,omitempty"`
	ChangeNote         string    `json:"changeNote,omitempty"`
	IsCurrent          bool      `json:"isCurrent"`
	ProjectedAssetsYen *int64    `json:"projectedAssetsYen,omitempty"`
	MinimumAssetsYen   *int64    `json:"minimumAssetsYen,omitempty"`
	MonthlyBalanceYen  *int64    `json:"monthlyBalanceYen,omitempty"`
	CreatedAt          Timestamp `json:"createdAt"`
	UpdatedAt          Timestamp `json:"updatedAt"`
}

// ScenarioKey names one of the three economic scenarios of a version.
type ScenarioKey string

const (
	ScenarioConservative ScenarioKey = "conservative"
	ScenarioBase         ScenarioKey = "base"
	ScenarioOptimistic   ScenarioKey = "optimistic"
)

// ScenarioKeys lists the scenarios in canonical order.
var ScenarioKeys = []ScenarioKey{ScenarioConservative, ScenarioBase, ScenarioOptimistic}

// Valid reports whether k is a known scenario.
func (k ScenarioKey) Valid() bool {
	switch k {
	case ScenarioConservative, ScenarioBase, ScenarioOptimistic:
		return true
	}
	return false
}

// ScenarioRates are the annual rates of one scenario as fractions.
type ScenarioRates struct {
	WageGrowthRate       decimal.Decimal `json:"wageGrowthRate"`
	InflationRate        decimal.Decimal `json:"inflationRate"`
	InvestmentReturnRate decimal.Decimal `json:"investmentReturnRate"`
}

// Equal compares rates numerically.
func (r ScenarioRates) Equal(o ScenarioRates) bool {
	return r.WageGrowthRate.Equal(o.WageGrowthRate) &&
		r.InflationRate.Equal(o.InflationRate) &&
		r.InvestmentReturnRate.Equal(o.InvestmentReturnRate)
}

// ScenarioAssumptions stores one scenario of one version. At most one row
// exists per (PlanVersionID, ScenarioKey).
type ScenarioAssumptions struct {
	ID            string      `json:"id"`
	PlanVersionID string      `json:"planVersionId"`
	ScenarioKey   ScenarioKey `json:"scenarioKey"`
	ScenarioRates
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// ScenarioSet maps scenario keys to the stored rows of a version.
type ScenarioSet map[ScenarioKey]ScenarioAssumptions
