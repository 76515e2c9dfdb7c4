package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

// CategoryTotal is the total spent in one expense category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
}

// CategoryTotals sums expense amounts per category. Income records are
// ignored; categories appear in first-seen order over the input.
func CategoryTotals(txns []core.Transaction) []CategoryTotal {
	index := make(map[string]int)
	totals := []CategoryTotal{}
	for _, txn := range txns {
		if txn.Type != core.Expense {
			continue
		}
		i, ok := index[txn.Category]
		if !ok {
			i = len(totals)
			index[txn.Category] = i
			totals = append(totals, CategoryTotal{Category: txn.Category})
		}
		totals[i].Total = totals[i].Total.Add(txn.Amount)
	}
	return totals
}

// MonthlyTotals is the income and expense volume of one calendar month.
type MonthlyTotals struct {
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
}

// MonthlySeries buckets the ledger by calendar month over the n months
// ending at last, oldest first. Months without transactions stay in the
// series with zero totals; transactions outside the window are dropped.
func MonthlySeries(txns []core.Transaction, last time.Time, n int) []MonthlyTotals {
	if n <= 0 {
		return nil
	}

	series := make([]MonthlyTotals, n)
	index := make(map[string]int, n)
	anchor := time.Date(last.Year(), last.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := range series {
		m := anchor.AddDate(0, i-(n-1), 0)
		series[i] = MonthlyTotals{
			Year:     m.Year(),
			Month:    m.Month(),
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
		}
		index[monthKey(m)] = i
	}

	for _, txn := range txns {
		i, ok := index[monthKey(txn.Date.Time)]
		if !ok {
			continue
		}
		switch txn.Type {
		case core.Income:
			series[i].Income = series[i].Income.Add(txn.Amount)
		case core.Expense:
			series[i].Expenses = series[i].Expenses.Add(txn.Amount)
		}
	}
	return series
}

func monthKey(t time.Time) string {
	return t.Format("2006-01")
}
