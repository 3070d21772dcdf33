package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	KindExpense EntryKind = "expense"
	KindIncome  EntryKind = "income"
)

const (
	IncomeSalary     IncomeCategory = "salary"
	IncomeFreelance  IncomeCategory = "freelance"
	IncomeBusiness   IncomeCategory = "business"
	IncomeInvestment IncomeCategory = "investment"
	IncomeRental     IncomeCategory = "rental"
	IncomeGift       IncomeCategory = "gift"
	IncomeRefund     IncomeCategory = "refund"
	IncomeOther      IncomeCategory = "other"
)

type (
	EntryKind string

	// IncomeCategory is the closed set of income classifications.
	IncomeCategory string

	// Classification is the kind-specific part of a template or ledger entry.
	// It is implemented only by ExpenseClass and IncomeClass.
	Classification interface {
		Kind() EntryKind
		Validate() error
		sealed()
	}

	ExpenseClass struct {
		CategoryID    string
		SubcategoryID string // optional
	}

	IncomeClass struct {
		Category IncomeCategory
	}

	RecurringTemplate struct {
		ID     string
		Amount Money
		Class  Classification
		Note   string

		StartDate  DateKey
		DayOfMonth int // 1-31, clamped to the month's last day

		// TotalOccurrences caps the number of scheduled occurrences when set.
		TotalOccurrences *int
		SkippedDateKeys  map[DateKey]struct{}
		IsPaused         bool
	}
)

var (
	ErrInvalidTemplate       = errors.New("invalid template")
	ErrInvalidEntry          = errors.New("invalid entry")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrInvalidDayOfMonth     = errors.New("day of month must be between 1 and 31")
	ErrEmptyID               = errors.New("empty id")
	ErrEmptyCategory         = errors.New("empty category")
	ErrUnknownIncomeCategory = errors.New("unknown income category")
	ErrMissingClass          = errors.New("missing classification")
)

func (ExpenseClass) Kind() EntryKind { return KindExpense }
func (IncomeClass) Kind() EntryKind  { return KindIncome }

func (ExpenseClass) sealed() {}
func (IncomeClass) sealed()  {}

func (c ExpenseClass) Validate() error {
	if strings.TrimSpace(c.CategoryID) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (c IncomeClass) Validate() error {
	return c.Category.Validate()
}

// IncomeCategories returns every valid income category.
func IncomeCategories() []IncomeCategory {
	return []IncomeCategory{
		IncomeSalary, IncomeFreelance, IncomeBusiness, IncomeInvestment,
		IncomeRental, IncomeGift, IncomeRefund, IncomeOther,
	}
}

func (c IncomeCategory) Validate() error {
	for _, v := range IncomeCategories() {
		if c == v {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownIncomeCategory, string(c))
}

// ParseEntryKind accepts "expense" or "income" in any case.
func ParseEntryKind(s string) (EntryKind, error) {
	switch k := EntryKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindExpense, KindIncome:
		return k, nil
	default:
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
}

// KindRank orders kinds for same-day ties: expenses first, then income.
func KindRank(k EntryKind) int {
	switch k {
	case KindExpense:
		return 0
	case KindIncome:
		return 1
	default:
		return 2
	}
}

// NewSkipSet builds a skip set from date keys.
func NewSkipSet(keys ...DateKey) map[DateKey]struct{} {
	set := make(map[DateKey]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// IsSkipped reports whether the occurrence on k was explicitly excluded.
func (t RecurringTemplate) IsSkipped(k DateKey) bool {
	_, ok := t.SkippedDateKeys[k]
	return ok
}

// SortedSkips returns the skipped keys in calendar order.
func (t RecurringTemplate) SortedSkips() []DateKey {
	out := make([]DateKey, 0, len(t.SkippedDateKeys))
	for k := range t.SkippedDateKeys {
		out = append(out, k)
	}
	sortDateKeys(out)
	return out
}

// Kind returns the template's entry kind, or "" when it has no classification.
func (t RecurringTemplate) Kind() EntryKind {
	if t.Class == nil {
		return ""
	}
	return t.Class.Kind()
}

// ValidateSchedule checks only the fields the scheduler depends on.
func (t RecurringTemplate) ValidateSchedule() error {
	if t.DayOfMonth < 1 || t.DayOfMonth > 31 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidTemplate, ErrInvalidDayOfMonth, t.DayOfMonth)
	}
	if _, err := ParseDateKey(string(t.StartDate)); err != nil {
		return fmt.Errorf("%w: start date: %w", ErrInvalidTemplate, err)
	}
	if t.TotalOccurrences != nil && *t.TotalOccurrences < 1 {
		return fmt.Errorf("%w: total occurrences must be at least 1", ErrInvalidTemplate)
	}
	return nil
}

// Validate checks the whole template before it is persisted.
func (t RecurringTemplate) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, ErrEmptyID)
	}
	if err := t.ValidateSchedule(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	if t.Class == nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, ErrMissingClass)
	}
	if err := t.Class.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	if len(t.Note) > 200 {
		return fmt.Errorf("%w: note too long (max 200 characters)", ErrInvalidTemplate)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with t.
func (t RecurringTemplate) Clone() RecurringTemplate {
	c := t
	if t.TotalOccurrences != nil {
		n := *t.TotalOccurrences
		c.TotalOccurrences = &n
	}
	c.SkippedDateKeys = make(map[DateKey]struct{}, len(t.SkippedDateKeys))
	for k := range t.SkippedDateKeys {
		c.SkippedDateKeys[k] = struct{}{}
	}
	return c
}
