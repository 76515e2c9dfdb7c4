// Package calendar derives month views from a ledger snapshot.
package calendar

import (
	"time"

	"finledger/internal/core"
)

// DayFlags marks which transaction kinds occur on a calendar day.
type DayFlags struct {
	HasIncome  bool `json:"hasIncome"`
	HasExpense bool `json:"hasExpense"`
}

// DayMap scans the entire ledger and returns an entry for every day of the
// requested month, keyed by the canonical date key.
func DayMap(txns []core.Transaction, year int, month time.Month) map[string]DayFlags {
	out := make(map[string]DayFlags, daysIn(year, month))
	for day := 1; day <= daysIn(year, month); day++ {
		out[core.NewDate(year, month, day).Key()] = DayFlags{}
	}

	for _, txn := range txns {
		key := txn.Date.Key()
		flags, ok := out[key]
		if !ok {
			continue
		}
		switch txn.Type {
		case core.Income:
			flags.HasIncome = true
		case core.Expense:
			flags.HasExpense = true
		}
		out[key] = flags
	}
	return out
}

// Grid describes the layout of one month: how many day cells and how many
// leading blanks before day 1.
type Grid struct {
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
	Days   int        `json:"days"`
	Offset int        `json:"offset"` // weekday of day 1, Sunday = 0
}

func NewGrid(year int, month time.Month) Grid {
	return Grid{
		Year:   year,
		Month:  month,
		Days:   daysIn(year, month),
		Offset: int(core.NewDate(year, month, 1).Weekday()),
	}
}

// Prev returns the grid for the preceding month.
func (g Grid) Prev() Grid {
	first := core.NewDate(g.Year, g.Month, 1).AddDate(0, -1, 0)
	return NewGrid(first.Year(), first.Month())
}

// Next returns the grid for the following month.
func (g Grid) Next() Grid {
	first := core.NewDate(g.Year, g.Month, 1).AddDate(0, 1, 0)
	return NewGrid(first.Year(), first.Month())
}

// Selection is a toggling selected-date state: selecting the already
// selected date clears the selection.
type Selection struct {
	date     core.Date
	selected bool
}

// Toggle selects date, or clears the selection when date is already
// selected. It reports whether a date is selected afterwards.
func (s *Selection) Toggle(date core.Date) bool {
	if s.selected && s.date.Key() == date.Key() {
		s.selected = false
		s.date = core.Date{}
		return false
	}
	s.date = date
	s.selected = true
	return true
}

// Current returns the selected date, if any.
func (s *Selection) Current() (core.Date, bool) {
	return s.date, s.selected
}

// Clear drops the selection.
func (s *Selection) Clear() {
	s.date = core.Date{}
	s.selected = false
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
