package core

import "strings"

// OtherTag is the escape tag: it is never stored itself, the custom text
// provided with it is.
const OtherTag = "Other"

var (
	expenseTags = []string{"Food", "Transport", "Shopping", "Entertainment", "Bills", OtherTag}
	incomeTags  = []string{"Salary", "Investment", "Freelance", "Gift", OtherTag}
)

// Category is the tagged category value attached to a draft or patch:
// either one of the predefined tags for the transaction type, or OtherTag
// plus free text.
type Category struct {
	Tag    string
	Custom string
}

// Predefined returns a category for one of the fixed tags.
func Predefined(tag string) Category { return Category{Tag: tag} }

// Custom returns the Other escape category carrying free text.
func Custom(text string) Category { return Category{Tag: OtherTag, Custom: text} }

// ResetCategory is the state a category falls back to when the transaction
// type changes: Other with the free text cleared.
func ResetCategory() Category { return Category{Tag: OtherTag} }

// Tags returns the predefined category tags for a transaction type.
func Tags(t TransactionType) []string {
	switch t {
	case Expense:
		return expenseTags
	case Income:
		return incomeTags
	default:
		return nil
	}
}

// IsPredefined reports whether tag is in the fixed set for the given type.
func IsPredefined(t TransactionType, tag string) bool {
	for _, known := range Tags(t) {
		if known == tag {
			return true
		}
	}
	return false
}

// Resolve validates the category against the taxonomy for the given type and
// returns the value to store: the tag itself for predefined categories, the
// trimmed free text for the Other escape.
func (c Category) Resolve(t TransactionType) (string, error) {
	tag := strings.TrimSpace(c.Tag)
	if tag == "" {
		return "", ErrEmptyCategory
	}
	if !IsPredefined(t, tag) {
		return "", ErrUnknownCategory
	}
	if tag == OtherTag {
		custom := strings.TrimSpace(c.Custom)
		if custom == "" {
			return "", ErrCustomCategoryRequired
		}
		return custom, nil
	}
	return tag, nil
}

// CategoryFromStored reconstructs the tagged value from a stored category
// string: a known tag maps back to itself, anything else is free text.
func CategoryFromStored(t TransactionType, stored string) Category {
	if stored != OtherTag && IsPredefined(t, stored) {
		return Predefined(stored)
	}
	return Custom(stored)
}
