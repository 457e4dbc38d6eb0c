package models

import (
	"github.com/shopspring/decimal"
)

// POBudgetRecord is the aggregated budget of one purchase order.
type POBudgetRecord struct {
	PONumber              string          // Canonical PO identifier
	TotalPOValue          decimal.Decimal // Largest total seen across register rows
	AmountAlreadyInvoiced decimal.Decimal // Sum across register rows
	RemainingBudget       decimal.Decimal // Live value, decremented as invoices are accepted
	ClientName            string
	ProjectName           string
	SourceRows            int // Number of register rows folded into this record
}

// Charge consumes amount from the remaining budget and returns the budget
// before and after the charge.
func (r *POBudgetRecord) Charge(amount decimal.Decimal) (before, after decimal.Decimal) {
	before = r.RemainingBudget
	r.RemainingBudget = before.Sub(amount)
	r.AmountAlreadyInvoiced = r.AmountAlreadyInvoiced.Add(amount)
	return before, r.RemainingBudget
}

// Covers reports whether amount fits in the remaining budget.
func (r *POBudgetRecord) Covers(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(r.RemainingBudget)
}
