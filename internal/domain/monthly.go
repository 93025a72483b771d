package domain

// MonthlyRecord holds one calendar month's actuals of a plan. Exactly one
// record exists per (PlanID, Ym).
type MonthlyRecord struct {
	ID                    string    `json:"id"`
	PlanID                string    `json:"planId"`
	Ym                    YearMonth `json:"ym"`
	IncomeTotalYen        int64     `json:"incomeTotalYen"`
	ExpenseTotalYen       int64     `json:"expenseTotalYen"`
	AssetsBalanceYen      int64     `json:"assetsBalanceYen"`
	LiabilitiesBalanceYen int64     `json:"liabilitiesBalanceYen"`
	IsFinalized           bool      `json:"isFinalized"`
	Note                  string    `json:"note,omitempty"`
	CreatedAt             Timestamp `json:"createdAt"`
	UpdatedAt             Timestamp `json:"updatedAt"`
}

// NetWorthYen is assets minus liabilities.
func (r MonthlyRecord) NetWorthYen() int64 {
	return r.AssetsBalanceYen - r.LiabilitiesBalanceYen
}

// BalanceYen is income minus expense.
func (r MonthlyRecord) BalanceYen() int64 {
	return r.IncomeTotalYen - r.ExpenseTotalYen
}

// ItemKind classifies a monthly line item.
type ItemKind string

const (
	ItemIncome  ItemKind = "income"
	ItemExpense ItemKind = "expense"
)

// MonthlyItem is one income or expense line of a MonthlyRecord.
type MonthlyItem struct {
	ID              string    `json:"id"`
	MonthlyRecordID string    `json:"monthlyRecordId"`
	Kind            ItemKind  `json:"kind"`
	Category        string    `json:"category"`
	AmountYen       int64     `json:"amountYen"`
	Note            string    `json:"note,omitempty"`
	CreatedAt       Timestamp `json:"createdAt"`
}
