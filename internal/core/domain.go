package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// DateKeyFormat is the layout used for calendar-date keys (ISO-8601 day).
const DateKeyFormat = "2006-01-02"

type (
	TransactionType string

	// Date is a calendar date with day granularity. The time-of-day is
	// always midnight UTC so values are directly comparable.
	Date struct {
		time.Time
	}

	// Transaction is one record of a per-identity ledger. ID and CreatedAt
	// are assigned by the remote store and immutable afterwards.
	Transaction struct {
		ID        string          `json:"id"`
		Owner     string          `json:"owner"`
		Title     string          `json:"title"`
		Amount    decimal.Decimal `json:"amount"`
		Type      TransactionType `json:"type"`
		Category  string          `json:"category"`
		Date      Date            `json:"date"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	// Draft is the caller-supplied input for creating a transaction.
	Draft struct {
		Title    string
		Amount   decimal.Decimal
		Type     TransactionType
		Category Category
		Date     Date
	}

	// Patch is a partial update. Nil fields are left untouched; ID, owner
	// and creation timestamp can never be patched.
	Patch struct {
		Title    *string
		Amount   *decimal.Decimal
		Type     *TransactionType
		Category *Category
		Date     *Date
	}
)

var (
	ErrEmptyTitle             = errors.New("empty title")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidType            = errors.New("invalid transaction type")
	ErrInvalidDate            = errors.New("invalid date")
	ErrEmptyCategory          = errors.New("empty category")
	ErrUnknownCategory        = errors.New("category not defined for type")
	ErrCustomCategoryRequired = errors.New("custom category text required")
	ErrEmptyPatch             = errors.New("no fields to update")
)

var validationErrors = []error{
	ErrEmptyTitle,
	ErrInvalidAmount,
	ErrInvalidType,
	ErrInvalidDate,
	ErrEmptyCategory,
	ErrUnknownCategory,
	ErrCustomCategoryRequired,
	ErrEmptyPatch,
}

// IsValidation reports whether err is one of the local input-validation
// errors, i.e. a failure detected before any remote call is attempted.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// NewDate creates a Date from year, month, day, normalized to midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 day key such as "2024-05-01".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateKeyFormat, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// Key returns the canonical string form used as map key and wire format.
func (d Date) Key() string { return d.Format(DateKeyFormat) }

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Key() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks a draft locally. It must pass before the draft is sent to
// the remote store.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	if !d.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	if err := d.Date.Validate(); err != nil {
		return err
	}
	if _, err := d.Category.Resolve(d.Type); err != nil {
		return err
	}
	return nil
}

// Resolved returns the category value that gets stored for this draft.
// Validate must have succeeded first.
func (d Draft) Resolved() string {
	c, _ := d.Category.Resolve(d.Type)
	return c
}

// ValidateFields checks the fields of a patch that do not depend on the
// record being patched. Category resolution additionally needs the record's
// effective type; Validate covers both.
func (p Patch) ValidateFields() error {
	if p.Title == nil && p.Amount == nil && p.Type == nil && p.Category == nil && p.Date == nil {
		return ErrEmptyPatch
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrEmptyTitle
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Date != nil {
		if err := p.Date.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the fields present on a patch. The effective type is the
// record's current type unless the patch replaces it.
func (p Patch) Validate(current TransactionType) error {
	if err := p.ValidateFields(); err != nil {
		return err
	}
	effective := current
	if p.Type != nil {
		effective = *p.Type
	}
	category := p.Category
	if p.Type != nil && category == nil {
		// A type switch resets the category; without an explicit
		// replacement the reset state cannot validate.
		reset := ResetCategory()
		category = &reset
	}
	if category != nil {
		if _, err := category.Resolve(effective); err != nil {
			return err
		}
	}
	return nil
}

// Apply merges the patch onto a transaction and returns the result. The
// caller is responsible for validating first.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Category != nil {
		if resolved, err := p.Category.Resolve(t.Type); err == nil {
			t.Category = resolved
		}
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	return t
}
