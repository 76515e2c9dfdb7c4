package ledger

import (
	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

// Summary holds the derived ledger aggregates. Balance is exactly
// income minus expenses; decimal sums make the result order-independent.
type Summary struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

// Summarize computes the aggregates over a ledger in one pass.
func Summarize(txns []core.Transaction) Summary {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, txn := range txns {
		switch txn.Type {
		case core.Income:
			income = income.Add(txn.Amount)
		case core.Expense:
			expenses = expenses.Add(txn.Amount)
		}
	}
	return Summary{
		Income:   income,
		Expenses: expenses,
		Balance:  income.Sub(expenses),
	}
}
