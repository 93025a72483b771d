package domain

// Cadence is how often a life event recurs.
type Cadence string

const (
	CadenceOnce    Cadence = "once"
	CadenceMonthly Cadence = "monthly"
)

// FlowDirection tells whether an amount is spent or received.
type FlowDirection string

const (
	FlowExpense FlowDirection = "expense"
	FlowIncome  FlowDirection = "income"
)

// LifeEvent is a one-off or recurring future cash flow of a plan version.
type LifeEvent struct {
	ID             string        `json:"id"`
	PlanVersionID  string        `json:"planVersionId"`
	EventType      string        `json:"eventType"`
	Title          string        `json:"title,omitempty"`
	StartYm        YearMonth     `json:"startYm"`
	Cadence        Cadence       `json:"cadence"`
	DurationMonths int           `json:"durationMonths,omitempty"`
	AmountYen      int64         `json:"amountYen"`
	Direction      FlowDirection `json:"direction"`
	Note           string        `json:"note,omitempty"`
	CreatedAt      Timestamp     `json:"createdAt"`
	UpdatedAt      Timestamp     `json:"updatedAt"`
}

// EffectiveDurationMonths is 1 for one-off events whatever is stored, and
// the stored duration otherwise (0 when unspecified).
func (e LifeEvent) EffectiveDurationMonths() int {
	if e.Cadence == CadenceOnce {
		return 1
	}
	return e.DurationMonths
}
