// Package query derives filtered, sorted, truncated list views from a
// ledger snapshot. Run is pure: same input, same output.
package query

import (
	"sort"
	"strings"

	"finledger/internal/core"
)

// Sort keys. Both orders are descending.
const (
	SortByDate   = "date"
	SortByAmount = "amount"
)

// All matches every value for the type and category filters.
const All = "all"

// Params narrows and orders a ledger view. Zero values mean "no constraint":
// empty Search matches everything, empty or "all" Type/Category match every
// record, a zero Date disables the date filter and Limit 0 disables
// truncation.
type Params struct {
	Search   string
	Type     string
	Category string
	Date     core.Date
	Sort     string
	Limit    int
}

// View is the result of running Params over a snapshot.
type View struct {
	Transactions []core.Transaction `json:"transactions"`
	TotalMatches int                `json:"totalMatches"`
	Truncated    bool               `json:"truncated"`
}

// Run filters, sorts and truncates a ledger snapshot. The input slice is
// never modified.
func Run(txns []core.Transaction, p Params) View {
	matched := make([]core.Transaction, 0, len(txns))
	for _, txn := range txns {
		if matches(txn, p) {
			matched = append(matched, txn)
		}
	}

	switch p.Sort {
	case SortByAmount:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Amount.GreaterThan(matched[j].Amount)
		})
	default:
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Date.After(matched[j].Date.Time)
		})
	}

	view := View{Transactions: matched, TotalMatches: len(matched)}
	if p.Limit > 0 && len(matched) > p.Limit {
		view.Transactions = matched[:p.Limit]
		view.Truncated = true
	}
	return view
}

func matches(txn core.Transaction, p Params) bool {
	if p.Search != "" {
		needle := strings.ToLower(p.Search)
		if !strings.Contains(strings.ToLower(txn.Title), needle) &&
			!strings.Contains(strings.ToLower(txn.Category), needle) {
			return false
		}
	}
	if p.Type != "" && p.Type != All && p.Type != string(txn.Type) {
		return false
	}
	if p.Category != "" && p.Category != All && p.Category != txn.Category {
		return false
	}
	if !p.Date.IsZero() && p.Date.Key() != txn.Date.Key() {
		return false
	}
	return true
}
