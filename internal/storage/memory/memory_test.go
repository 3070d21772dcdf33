package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"ledger/internal/core"
	"ledger/internal/storage"
)

func TestStoreTemplatesAreCopied(t *testing.T) {
	s := New()
	ctx := context.Background()
	tmpl := core.RecurringTemplate{
		ID:              "rent",
		Amount:          core.NewMoneyFromCents(1000),
		Class:           core.ExpenseClass{CategoryID: "housing"},
		StartDate:       "2025-01-01",
		DayOfMonth:      1,
		SkippedDateKeys: core.NewSkipSet(),
	}
	if err := s.SaveTemplate(ctx, tmpl); err != nil {
		t.Fatalf("SaveTemplate() error = %v", err)
	}
	tmpl.SkippedDateKeys["2025-02-01"] = struct{}{}

	got, err := s.GetTemplate(ctx, "rent")
	if err != nil {
		t.Fatalf("GetTemplate() error = %v", err)
	}
	if got.IsSkipped("2025-02-01") {
		t.Error("store shares its skip set with the caller")
	}

	if _, err := s.GetTemplate(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTemplate() error = %v, want ErrNotFound", err)
	}

	// Saving again replaces in place and keeps insertion order.
	other := tmpl
	other.ID = "gym"
	_ = s.SaveTemplate(ctx, other)
	_ = s.SaveTemplate(ctx, tmpl)
	all, _ := s.ListTemplates(ctx)
	if len(all) != 2 || all[0].ID != "rent" || all[1].ID != "gym" {
		t.Errorf("ListTemplates() = %v", all)
	}
}

func TestStoreEntryFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	food := core.ExpenseClass{CategoryID: "food"}
	_ = s.AppendEntry(ctx, core.LedgerEntry{ID: "a", Class: food, Timestamp: "2025-12-03"})
	_ = s.AppendEntry(ctx, core.LedgerEntry{ID: "b", Class: food, Timestamp: "bad"})
	_ = s.AppendEntry(ctx, core.LedgerEntry{ID: "c", Class: food, Timestamp: "2025-11-29", RecurringTemplateID: "rent", RecurringDateKey: "2025-12-01"})

	dec, _ := s.ListEntries(ctx, "2025-12-01", "2025-12-31")
	if len(dec) != 1 || dec[0].ID != "a" {
		t.Errorf("ListEntries() = %v", dec)
	}
	rec, _ := s.ListRecurringEntries(ctx, "2025-12-01", "2025-12-31")
	if len(rec) != 1 || rec[0].ID != "c" {
		t.Errorf("ListRecurringEntries() = %v", rec)
	}
}

func TestStoreAppendEntryRejectsDuplicateIDs(t *testing.T) {
	s := New()
	ctx := context.Background()
	e := core.LedgerEntry{ID: "rent-dec", Class: core.ExpenseClass{CategoryID: "housing"}, Timestamp: "2025-12-01"}

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.AppendEntry(ctx, e)
		}(i)
	}
	wg.Wait()

	stored := 0
	for _, err := range errs {
		switch {
		case err == nil:
			stored++
		case !errors.Is(err, storage.ErrDuplicateEntry):
			t.Errorf("AppendEntry() error = %v, want %v", err, storage.ErrDuplicateEntry)
		}
	}
	if stored != 1 {
		t.Errorf("AppendEntry() succeeded %d times, want 1", stored)
	}
	all, _ := s.ListEntries(ctx, "2025-12-01", "2025-12-31")
	if len(all) != 1 {
		t.Errorf("ListEntries() = %d entries, want 1", len(all))
	}
}

func TestNewFromDir(t *testing.T) {
	dir := t.TempDir()

	// No seed file -> empty store
	s, err := NewFromDir(dir)
	if err != nil {
		t.Fatalf("NewFromDir() error = %v", err)
	}
	if all, _ := s.ListTemplates(context.Background()); len(all) != 0 {
		t.Fatalf("expected empty store, got %v", all)
	}

	mustWrite := func(content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, SeedFile), []byte(content), 0o644); err != nil {
			t.Fatalf("write seed: %v", err)
		}
	}
	mustWrite(`{
		"templates": [
			{"id": "rent", "kind": "expense", "amount": "1000.00", "category_id": "housing",
			 "start_date": "2025-01-01", "day_of_month": 1, "skipped_date_keys": ["2025-03-01"]},
			{"id": "broken", "kind": "loan", "amount": "5", "start_date": "2025-01-01", "day_of_month": 1}
		],
		"entries": [
			{"id": "e1", "kind": "income", "amount": "12.50", "income_category": "gift", "timestamp": "2025-12-24"}
		]
	}`)

	s, err = NewFromDir(dir)
	if err != nil {
		t.Fatalf("NewFromDir() error = %v", err)
	}
	all, _ := s.ListTemplates(context.Background())
	if len(all) != 1 || all[0].ID != "rent" || !all[0].IsSkipped("2025-03-01") {
		t.Fatalf("seeded templates = %+v", all)
	}
	entries, _ := s.ListEntries(context.Background(), "2025-12-01", "2025-12-31")
	if len(entries) != 1 || entries[0].Amount.String() != "12.50" {
		t.Fatalf("seeded entries = %+v", entries)
	}

	mustWrite("{not json")
	if _, err := NewFromDir(dir); err == nil {
		t.Error("NewFromDir() expected error for a malformed seed file")
	}
}
