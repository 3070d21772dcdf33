package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ledger/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_Templates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	cap3 := 3
	rent := core.RecurringTemplate{
		ID:               "rent",
		Amount:           core.NewMoneyFromCents(100000),
		Class:            core.ExpenseClass{CategoryID: "housing"},
		StartDate:        "2025-01-01",
		DayOfMonth:       1,
		TotalOccurrences: &cap3,
		SkippedDateKeys:  core.NewSkipSet("2025-03-01"),
	}
	salary := core.RecurringTemplate{
		ID:         "salary",
		Amount:     core.NewMoneyFromCents(250000),
		Class:      core.IncomeClass{Category: core.IncomeSalary},
		StartDate:  "2025-01-01",
		DayOfMonth: 27,
	}
	for _, tmpl := range []core.RecurringTemplate{rent, salary} {
		if err := repo.SaveTemplate(ctx, tmpl); err != nil {
			t.Fatalf("SaveTemplate(%s) error = %v", tmpl.ID, err)
		}
	}

	got, err := repo.GetTemplate(ctx, "rent")
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if !got.IsSkipped("2025-03-01") || *got.TotalOccurrences != 3 || !got.Amount.Equal(rent.Amount) {
		t.Errorf("GetTemplate() = %+v", got)
	}

	// Replacing the template replaces its skip set.
	got.IsPaused = true
	got.SkippedDateKeys = core.NewSkipSet("2025-05-01")
	if err := repo.SaveTemplate(ctx, got); err != nil {
		t.Fatalf("SaveTemplate() update error = %v", err)
	}

	all, err := repo.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListTemplates() = %d templates, want 2", len(all))
	}
	byID := map[string]core.RecurringTemplate{}
	for _, tmpl := range all {
		byID[tmpl.ID] = tmpl
	}
	if r := byID["rent"]; !r.IsPaused || r.IsSkipped("2025-03-01") || !r.IsSkipped("2025-05-01") {
		t.Errorf("updated rent = %+v", r)
	}
	if s := byID["salary"]; s.TotalOccurrences != nil || s.Class != salary.Class {
		t.Errorf("salary = %+v", s)
	}

	if _, err := repo.GetTemplate(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTemplate() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Entries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	food := core.ExpenseClass{CategoryID: "food"}

	entries := []core.LedgerEntry{
		{ID: "late-nov", Amount: core.NewMoneyFromCents(500), Class: food, Timestamp: "2025-11-30T23:30:00-02:00"},
		{ID: "dec-1", Amount: core.NewMoneyFromCents(700), Class: food, Timestamp: "2025-12-05"},
		{
			ID: "early-rent", Amount: core.NewMoneyFromCents(100000), Class: core.ExpenseClass{CategoryID: "housing"},
			Timestamp: "2025-11-28", RecurringTemplateID: "rent", RecurringDateKey: "2025-12-01", IsRecurringInstance: true,
		},
		{ID: "dec-2", Amount: core.NewMoneyFromCents(900), Class: food, Timestamp: "2025-12-05T10:00:00Z"},
	}
	for _, e := range entries {
		if err := repo.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry(%s) error = %v", e.ID, err)
		}
	}

	dec, err := repo.ListEntries(ctx, "2025-12-01", "2025-12-31")
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	// The November instant is December 1st in UTC; insertion order is kept.
	want := []string{"late-nov", "dec-1", "dec-2"}
	if len(dec) != len(want) {
		t.Fatalf("ListEntries() = %d entries, want %d", len(dec), len(want))
	}
	for i, e := range dec {
		if e.ID != want[i] {
			t.Errorf("ListEntries()[%d] = %s, want %s", i, e.ID, want[i])
		}
	}

	recurring, err := repo.ListRecurringEntries(ctx, "2025-12-01", "2025-12-31")
	if err != nil {
		t.Fatalf("ListRecurringEntries() error = %v", err)
	}
	if len(recurring) != 1 || recurring[0].ID != "early-rent" || recurring[0].RecurringTemplateID != "rent" {
		t.Errorf("ListRecurringEntries() = %+v", recurring)
	}

	if err := repo.AppendEntry(ctx, entries[1]); !errors.Is(err, ErrDuplicateEntry) {
		t.Errorf("AppendEntry() duplicate id error = %v, want %v", err, ErrDuplicateEntry)
	}
}

func TestRunMigrationsIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("RunMigrations() run %d error = %v", i+1, err)
		}
	}
}
