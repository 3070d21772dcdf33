package storage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// TemplateRecord is the flat, persisted shape of a recurring template.
type TemplateRecord struct {
	ID               string   `json:"id"`
	Kind             string   `json:"kind"`
	Amount           string   `json:"amount"`
	CategoryID       string   `json:"category_id,omitempty"`
	SubcategoryID    string   `json:"subcategory_id,omitempty"`
	IncomeCategory   string   `json:"income_category,omitempty"`
	Note             string   `json:"note,omitempty"`
	StartDate        string   `json:"start_date"`
	DayOfMonth       int      `json:"day_of_month"`
	TotalOccurrences *int     `json:"total_occurrences,omitempty"`
	SkippedDateKeys  []string `json:"skipped_date_keys,omitempty"`
	IsPaused         bool     `json:"is_paused"`
}

// EntryRecord is the flat, persisted shape of a ledger entry.
type EntryRecord struct {
	ID                  string `json:"id"`
	Kind                string `json:"kind"`
	Amount              string `json:"amount"`
	CategoryID          string `json:"category_id,omitempty"`
	SubcategoryID       string `json:"subcategory_id,omitempty"`
	IncomeCategory      string `json:"income_category,omitempty"`
	Note                string `json:"note,omitempty"`
	Timestamp           string `json:"timestamp"`
	RecurringTemplateID string `json:"recurring_template_id,omitempty"`
	RecurringDateKey    string `json:"recurring_date_key,omitempty"`
	IsRecurringInstance bool   `json:"is_recurring_instance"`
}

type classFields struct {
	Kind           string
	CategoryID     string
	SubcategoryID  string
	IncomeCategory string
}

func splitClass(c core.Classification) classFields {
	switch v := c.(type) {
	case core.ExpenseClass:
		return classFields{Kind: string(core.KindExpense), CategoryID: v.CategoryID, SubcategoryID: v.SubcategoryID}
	case core.IncomeClass:
		return classFields{Kind: string(core.KindIncome), IncomeCategory: string(v.Category)}
	case nil:
		return classFields{}
	default:
		panic(fmt.Sprintf("storage: unhandled classification %T", c))
	}
}

func joinClass(f classFields) (core.Classification, error) {
	kind, err := core.ParseEntryKind(f.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case core.KindExpense:
		return core.ExpenseClass{CategoryID: f.CategoryID, SubcategoryID: f.SubcategoryID}, nil
	case core.KindIncome:
		return core.IncomeClass{Category: core.IncomeCategory(f.IncomeCategory)}, nil
	default:
		panic("storage: unhandled entry kind " + string(kind))
	}
}

func parseMoney(s string) (core.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return core.Money{Amount: d}, nil
}

// NewTemplateRecord flattens t.
func NewTemplateRecord(t core.RecurringTemplate) TemplateRecord {
	cf := splitClass(t.Class)
	skips := t.SortedSkips()
	rec := TemplateRecord{
		ID:             t.ID,
		Kind:           cf.Kind,
		Amount:         t.Amount.String(),
		CategoryID:     cf.CategoryID,
		SubcategoryID:  cf.SubcategoryID,
		IncomeCategory: cf.IncomeCategory,
		Note:           t.Note,
		StartDate:      string(t.StartDate),
		DayOfMonth:     t.DayOfMonth,
		IsPaused:       t.IsPaused,
	}
	if t.TotalOccurrences != nil {
		n := *t.TotalOccurrences
		rec.TotalOccurrences = &n
	}
	for _, k := range skips {
		rec.SkippedDateKeys = append(rec.SkippedDateKeys, string(k))
	}
	return rec
}

// Template rebuilds the domain template. Schedule fields are not validated
// here; the scheduler reports bad ones per month.
func (r TemplateRecord) Template() (core.RecurringTemplate, error) {
	class, err := joinClass(classFields{Kind: r.Kind, CategoryID: r.CategoryID, SubcategoryID: r.SubcategoryID, IncomeCategory: r.IncomeCategory})
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", r.ID, err)
	}
	amount, err := parseMoney(r.Amount)
	if err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", r.ID, err)
	}
	t := core.RecurringTemplate{
		ID:              r.ID,
		Amount:          amount,
		Class:           class,
		Note:            r.Note,
		StartDate:       core.DateKey(r.StartDate),
		DayOfMonth:      r.DayOfMonth,
		SkippedDateKeys: make(map[core.DateKey]struct{}, len(r.SkippedDateKeys)),
		IsPaused:        r.IsPaused,
	}
	if r.TotalOccurrences != nil {
		n := *r.TotalOccurrences
		t.TotalOccurrences = &n
	}
	for _, k := range r.SkippedDateKeys {
		t.SkippedDateKeys[core.DateKey(k)] = struct{}{}
	}
	return t, nil
}

// NewEntryRecord flattens e.
func NewEntryRecord(e core.LedgerEntry) EntryRecord {
	cf := splitClass(e.Class)
	return EntryRecord{
		ID:                  e.ID,
		Kind:                cf.Kind,
		Amount:              e.Amount.String(),
		CategoryID:          cf.CategoryID,
		SubcategoryID:       cf.SubcategoryID,
		IncomeCategory:      cf.IncomeCategory,
		Note:                e.Note,
		Timestamp:           e.Timestamp,
		RecurringTemplateID: e.RecurringTemplateID,
		RecurringDateKey:    string(e.RecurringDateKey),
		IsRecurringInstance: e.IsRecurringInstance,
	}
}

// Entry rebuilds the domain entry. The timestamp is kept verbatim.
func (r EntryRecord) Entry() (core.LedgerEntry, error) {
	class, err := joinClass(classFields{Kind: r.Kind, CategoryID: r.CategoryID, SubcategoryID: r.SubcategoryID, IncomeCategory: r.IncomeCategory})
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", r.ID, err)
	}
	amount, err := parseMoney(r.Amount)
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", r.ID, err)
	}
	return core.LedgerEntry{
		ID:                  r.ID,
		Amount:              amount,
		Class:               class,
		Note:                r.Note,
		Timestamp:           r.Timestamp,
		RecurringTemplateID: r.RecurringTemplateID,
		RecurringDateKey:    core.DateKey(r.RecurringDateKey),
		IsRecurringInstance: r.IsRecurringInstance,
	}, nil
}
