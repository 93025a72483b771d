package domain

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// HousingType is one of the four fixed housing options.
type HousingType string

const (
	HousingHighPerformance HousingType = "high_performance"
	HousingDetached        HousingType = "detached"
	HousingCondo           HousingType = "condo"
	HousingRent            HousingType = "rent"
)

// HousingTypes lists the housing types in canonical order.
var HousingTypes = []HousingType{HousingHighPerformance, HousingDetached, HousingCondo, HousingRent}

// Valid reports whether t is a known housing type.
func (t HousingType) Valid() bool {
	return slices.Contains(HousingTypes, t)
}

// Order is t's position in HousingTypes, or len(HousingTypes) if unknown.
func (t HousingType) Order() int {
	if i := slices.Index(HousingTypes, t); i >= 0 {
		return i
	}
	return len(HousingTypes)
}

// HousingCosts are the purchase, loan and running-cost fields shared by
// every housing type. Rent leaves the purchase and loan fields zero.
type HousingCosts struct {
	PurchasePriceYen      int64           `json:"purchasePriceYen"`
	DownPaymentYen        int64           `json:"downPaymentYen"`
	LoanRate              decimal.Decimal `json:"loanRate"`
	LoanTermYears         int             `json:"loanTermYears"`
	PropertyTaxYenPerYear int64           `json:"propertyTaxYenPerYear"`
	MaintenanceYenPerYear int64           `json:"maintenanceYenPerYear"`
}

// HousingDetail is the type-specific payload of a HousingAssumptions row.
// The set of implementations is closed: one per HousingType.
type HousingDetail interface {
	HousingType() HousingType
	cloneDetail() HousingDetail
}

// RepairItem is one scheduled major repair.
type RepairItem struct {
	YearOffset int    `json:"yearOffset"`
	AmountYen  int64  `json:"amountYen"`
	Label      string `json:"label,omitempty"`
}

func cloneRepairs(in []RepairItem) []RepairItem {
	if in == nil {
		return nil
	}
	return slices.Clone(in)
}

// HighPerformanceDetail describes an energy-efficient new build.
type HighPerformanceDetail struct {
	InsulationGrade         int          `json:"insulationGrade"`
	SolarCapacityKW         int          `json:"solarCapacityKw"`
	EnergySavingYenPerMonth int64        `json:"energySavingYenPerMonth"`
	RepairSchedule          []RepairItem `json:"repairSchedule,omitempty"`
}

func (*HighPerformanceDetail) HousingType() HousingType { return HousingHighPerformance }

func (d *HighPerformanceDetail) cloneDetail() HousingDetail {
	c := *d
	c.RepairSchedule = cloneRepairs(d.RepairSchedule)
	return &c
}

// DetachedDetail describes a conventional detached house.
type DetachedDetail struct {
	LandAreaSqm    int          `json:"landAreaSqm"`
	RepairSchedule []RepairItem `json:"repairSchedule,omitempty"`
}

func (*DetachedDetail) HousingType() HousingType { return HousingDetached }

func (d *DetachedDetail) cloneDetail() HousingDetail {
	c := *d
	c.RepairSchedule = cloneRepairs(d.RepairSchedule)
	return &c
}

// CondoDetail carries the monthly fees of a condominium.
type CondoDetail struct {
	ManagementFeeYenPerMonth int64 `json:"managementFeeYenPerMonth"`
	RepairReserveYenPerMonth int64 `json:"repairReserveYenPerMonth"`
	ParkingYenPerMonth       int64 `json:"parkingYenPerMonth"`
}

func (*CondoDetail) HousingType() HousingType { return HousingCondo }

func (d *CondoDetail) cloneDetail() HousingDetail {
	c := *d
	return &c
}

// RentDetail carries the terms of a rental.
type RentDetail struct {
	RentYenPerMonth      int64 `json:"rentYenPerMonth"`
	DepositMonths        int   `json:"depositMonths"`
	RenewalFeeMonths     int   `json:"renewalFeeMonths"`
	RenewalIntervalYears int   `json:"renewalIntervalYears"`
}

func (*RentDetail) HousingType() HousingType { return HousingRent }

func (d *RentDetail) cloneDetail() HousingDetail {
	c := *d
	return &c
}

// CloneDetail deep-copies d. A nil detail stays nil.
func CloneDetail(d HousingDetail) HousingDetail {
	if d == nil {
		return nil
	}
	return d.cloneDetail()
}

// DecodeHousingDetail decodes the payload for housing type t.
// A null or absent payload decodes to nil.
func DecodeHousingDetail(t HousingType, raw json.RawMessage) (HousingDetail, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var d HousingDetail
	switch t {
	case HousingHighPerformance:
		d = &HighPerformanceDetail{}
	case HousingDetached:
		d = &DetachedDetail{}
	case HousingCondo:
		d = &CondoDetail{}
	case HousingRent:
		d = &RentDetail{}
	default:
		return nil, fmt.Errorf("unknown housing type %q", t)
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s detail: %w", t, err)
	}
	return d, nil
}

// HousingAssumptions are the cost assumptions of one housing type for one
// plan version. At most one row per version has IsSelected set.
type HousingAssumptions struct {
	ID            string      `json:"id"`
	PlanVersionID string      `json:"planVersionId"`
	HousingType   HousingType `json:"housingType"`
	IsSelected    bool        `json:"isSelected"`
	HousingCosts
	TypeSpecific HousingDetail `json:"-"`
	CreatedAt    Timestamp     `json:"createdAt"`
	UpdatedAt    Timestamp     `json:"updatedAt"`
}

type housingAlias HousingAssumptions

type housingDoc struct {
	housingAlias
	TypeSpecific json.RawMessage `json:"typeSpecific,omitempty"`
}

// MarshalJSON writes TypeSpecific under "typeSpecific". The payload must
// match HousingType.
func (h HousingAssumptions) MarshalJSON() ([]byte, error) {
	doc := housingDoc{housingAlias: housingAlias(h)}
	if h.TypeSpecific != nil {
		if got := h.TypeSpecific.HousingType(); got != h.HousingType {
			return nil, fmt.Errorf("housing %s: type-specific payload is for %s", h.HousingType, got)
		}
		raw, err := json.Marshal(h.TypeSpecific)
		if err != nil {
			return nil, err
		}
		doc.TypeSpecific = raw
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes "typeSpecific" by the housingType discriminator.
func (h *HousingAssumptions) UnmarshalJSON(data []byte) error {
	var doc housingDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	detail, err := DecodeHousingDetail(doc.HousingType, doc.TypeSpecific)
	if err != nil {
		return err
	}
	*h = HousingAssumptions(doc.housingAlias)
	h.TypeSpecific = detail
	return nil
}

// Clone deep-copies h, including the type-specific payload.
func (h HousingAssumptions) Clone() HousingAssumptions {
	h.TypeSpecific = CloneDetail(h.TypeSpecific)
	return h
}
