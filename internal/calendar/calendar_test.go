package calendar

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finledger/internal/core"
)

func txn(id string, typ core.TransactionType, date core.Date) core.Transaction {
	return core.Transaction{
		ID:     id,
		Owner:  "alice",
		Title:  "txn " + id,
		Amount: decimal.NewFromInt(10),
		Type:   typ,
		Date:   date,
	}
}

func TestDayMapFlagsExactDays(t *testing.T) {
	txns := []core.Transaction{
		txn("a", core.Expense, core.NewDate(2024, time.May, 1)),
		txn("b", core.Income, core.NewDate(2024, time.May, 2)),
	}

	m := DayMap(txns, 2024, time.May)
	if len(m) != 31 {
		t.Fatalf("May map has %d days, want 31", len(m))
	}

	if got := m["2024-05-01"]; !got.HasExpense || got.HasIncome {
		t.Errorf("2024-05-01 = %+v, want expense only", got)
	}
	if got := m["2024-05-02"]; !got.HasIncome || got.HasExpense {
		t.Errorf("2024-05-02 = %+v, want income only", got)
	}
	for day := 3; day <= 31; day++ {
		key := core.NewDate(2024, time.May, day).Key()
		if got := m[key]; got.HasIncome || got.HasExpense {
			t.Errorf("%s = %+v, want no flags", key, got)
		}
	}
}

func TestDayMapMergesBothTypesOnOneDay(t *testing.T) {
	date := core.NewDate(2024, time.May, 15)
	m := DayMap([]core.Transaction{
		txn("a", core.Expense, date),
		txn("b", core.Income, date),
	}, 2024, time.May)

	if got := m["2024-05-15"]; !got.HasIncome || !got.HasExpense {
		t.Errorf("2024-05-15 = %+v, want both flags", got)
	}
}

func TestDayMapIgnoresOtherMonths(t *testing.T) {
	m := DayMap([]core.Transaction{
		txn("a", core.Expense, core.NewDate(2024, time.April, 30)),
		txn("b", core.Income, core.NewDate(2024, time.June, 1)),
	}, 2024, time.May)

	for key, flags := range m {
		if flags.HasIncome || flags.HasExpense {
			t.Errorf("%s = %+v, want no flags", key, flags)
		}
	}
}

func TestDayMapLeapFebruary(t *testing.T) {
	if got := len(DayMap(nil, 2024, time.February)); got != 29 {
		t.Errorf("February 2024 has %d days, want 29", got)
	}
	if got := len(DayMap(nil, 2023, time.February)); got != 28 {
		t.Errorf("February 2023 has %d days, want 28", got)
	}
}

func TestGrid(t *testing.T) {
	tests := []struct {
		year   int
		month  time.Month
		days   int
		offset int
	}{
		{2024, time.May, 31, 3},      // May 1 2024 is a Wednesday
		{2024, time.February, 29, 4}, // Feb 1 2024 is a Thursday
		{2024, time.September, 30, 0},
		{2023, time.January, 31, 0},
	}

	for _, tt := range tests {
		g := NewGrid(tt.year, tt.month)
		if g.Days != tt.days {
			t.Errorf("Grid(%d, %v).Days = %d, want %d", tt.year, tt.month, g.Days, tt.days)
		}
		if g.Offset != tt.offset {
			t.Errorf("Grid(%d, %v).Offset = %d, want %d", tt.year, tt.month, g.Offset, tt.offset)
		}
	}
}

func TestGridNavigationWrapsYears(t *testing.T) {
	g := NewGrid(2024, time.January)

	prev := g.Prev()
	if prev.Year != 2023 || prev.Month != time.December {
		t.Errorf("Prev() = %d-%v", prev.Year, prev.Month)
	}

	next := NewGrid(2024, time.December).Next()
	if next.Year != 2025 || next.Month != time.January {
		t.Errorf("Next() = %d-%v", next.Year, next.Month)
	}
}

func TestSelectionToggle(t *testing.T) {
	var s Selection
	date := core.NewDate(2024, time.May, 1)

	if !s.Toggle(date) {
		t.Fatal("first toggle must select")
	}
	if got, ok := s.Current(); !ok || got.Key() != "2024-05-01" {
		t.Fatalf("Current() = %v, %v", got, ok)
	}

	// Selecting the selected date clears it.
	if s.Toggle(date) {
		t.Fatal("second toggle must clear")
	}
	if _, ok := s.Current(); ok {
		t.Fatal("selection must be empty after clearing toggle")
	}

	other := core.NewDate(2024, time.May, 2)
	s.Toggle(date)
	if !s.Toggle(other) {
		t.Fatal("toggling a different date must select it")
	}
	if got, _ := s.Current(); got.Key() != "2024-05-02" {
		t.Errorf("Current() = %v", got)
	}

	s.Clear()
	if _, ok := s.Current(); ok {
		t.Error("Clear() must drop the selection")
	}
}
