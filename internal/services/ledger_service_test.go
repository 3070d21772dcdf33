package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
	"ledger/internal/storage/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerChangedMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerChanged(_ context.Context, msg *amqp.LedgerChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) last() *amqp.LedgerChangedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		return nil
	}
	return p.msgs[len(p.msgs)-1]
}

type testEnv struct {
	svc   *LedgerService
	store *memory.Store
	pub   *recordingPublisher
	cache *cache.LRUCache[core.MonthBucket]
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	env := testEnv{
		store: memory.New(),
		pub:   &recordingPublisher{},
		cache: cache.NewLRUCache(16, time.Minute, core.MonthBucket.Clone),
	}
	env.svc = NewLedgerService(env.store, LedgerOptions{
		Publisher: env.pub,
		Cache:     env.cache,
		Clock:     core.FixedClock{T: time.Date(2025, time.December, 15, 9, 0, 0, 0, time.UTC)},
		Logger:    quietLogger(),
	})
	return env
}

func (env testEnv) seedRent(t *testing.T) core.RecurringTemplate {
	t.Helper()
	tmpl, err := env.svc.CreateTemplate(context.Background(), rentTemplate())
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	return tmpl
}

func (env testEnv) month(t *testing.T, w core.MonthWindow) core.MonthBucket {
	t.Helper()
	b, err := env.svc.Month(context.Background(), w, core.SortAscending)
	if err != nil {
		t.Fatalf("Month(%v) error = %v", w, err)
	}
	return b
}

func hasEntry(b core.MonthBucket, id string) bool {
	for _, e := range b.Entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

func TestLedgerService_CreateTemplate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedRent(t)
	if msg := env.pub.last(); msg == nil || msg.Reason != log.OpCreate || msg.TemplateID != "rent" {
		t.Errorf("published %+v, want a create event for rent", msg)
	}

	if _, err := env.svc.CreateTemplate(ctx, rentTemplate()); !errors.Is(err, ErrTemplateExists) {
		t.Errorf("CreateTemplate() duplicate error = %v, want ErrTemplateExists", err)
	}

	noID := salaryTemplate()
	noID.ID = ""
	created, err := env.svc.CreateTemplate(ctx, noID)
	if err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if created.ID == "" {
		t.Error("CreateTemplate() did not generate an id")
	}

	invalid := salaryTemplate()
	invalid.ID = "bad"
	invalid.DayOfMonth = 40
	if _, err := env.svc.CreateTemplate(ctx, invalid); !errors.Is(err, core.ErrInvalidTemplate) {
		t.Errorf("CreateTemplate() error = %v, want ErrInvalidTemplate", err)
	}

	templates, err := env.svc.Templates(ctx)
	if err != nil || len(templates) != 2 {
		t.Errorf("Templates() = %d templates, %v; want 2", len(templates), err)
	}
}

func TestLedgerService_MonthUsesCache(t *testing.T) {
	env := newTestEnv(t)
	env.seedRent(t)

	first := env.month(t, dec2025)
	if !hasEntry(first, core.PlaceholderID("rent", "2025-12-01")) {
		t.Fatalf("entries = %v, want the rent placeholder", entryIDs(first))
	}
	first.Entries[0].ID = "mutated"

	second := env.month(t, dec2025)
	if second.Entries[0].ID == "mutated" {
		t.Error("Month() returned a bucket sharing state with the cache")
	}
	if stats := env.cache.Stats(); stats.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", stats.Hits)
	}
}

func TestLedgerService_LogEntryInvalidatesMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRent(t)
	env.month(t, dec2025)

	// Paid early: dated in November, fulfils the December occurrence.
	e := fulfilled("", "rent", "2025-12-01", "2025-11-28T10:00:00Z")
	logged, err := env.svc.LogEntry(ctx, e)
	if err != nil {
		t.Fatalf("LogEntry() error = %v", err)
	}
	if logged.ID == "" {
		t.Fatal("LogEntry() did not generate an id")
	}

	dec := env.month(t, dec2025)
	if len(dec.Entries) != 0 {
		t.Errorf("December entries = %v, want none", entryIDs(dec))
	}
	nov := env.month(t, core.NewMonthWindow(2025, time.November))
	if !hasEntry(nov, logged.ID) {
		t.Errorf("November entries = %v, want %s", entryIDs(nov), logged.ID)
	}

	msg := env.pub.last()
	if msg.Reason != log.OpLog || len(msg.Months) != 2 {
		t.Errorf("published %+v, want log event for two months", msg)
	}

	if _, err := env.svc.LogEntry(ctx, manual("x", "soon", core.ExpenseClass{CategoryID: "food"})); !errors.Is(err, core.ErrInvalidEntry) {
		t.Errorf("LogEntry() error = %v, want ErrInvalidEntry", err)
	}
}

func TestLedgerService_ConfirmOccurrence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRent(t)

	override := core.NewMoneyFromCents(95000)
	e, created, err := env.svc.ConfirmOccurrence(ctx, "rent", "2025-12-01", &override)
	if err != nil {
		t.Fatalf("ConfirmOccurrence() error = %v", err)
	}
	if !created || e.IsPlaceholder || e.ID != core.PlaceholderID("rent", "2025-12-01") {
		t.Errorf("ConfirmOccurrence() = %+v, created %v", e, created)
	}
	if !e.Amount.Equal(override) {
		t.Errorf("Amount = %v, want %v", e.Amount, override)
	}

	again, created, err := env.svc.ConfirmOccurrence(ctx, "rent", "2025-12-01", nil)
	if err != nil || created || again.ID != e.ID {
		t.Errorf("second ConfirmOccurrence() = %s, created %v, err %v", again.ID, created, err)
	}

	b := env.month(t, dec2025)
	if len(b.Entries) != 1 || b.Entries[0].IsPlaceholder || len(b.Warnings) != 0 {
		t.Errorf("December = %+v", b)
	}

	if _, _, err := env.svc.ConfirmOccurrence(ctx, "rent", "2025-12-02", nil); !errors.Is(err, ErrNotScheduled) {
		t.Errorf("ConfirmOccurrence() off-schedule error = %v, want ErrNotScheduled", err)
	}
	if _, _, err := env.svc.ConfirmOccurrence(ctx, "missing", "2025-12-01", nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ConfirmOccurrence() unknown template error = %v, want ErrNotFound", err)
	}
}

// interleavedRepo runs afterRecurring once, right after the first
// ListRecurringEntries read, to land a write between a read and its use.
type interleavedRepo struct {
	*memory.Store
	afterRecurring func()
}

func (r *interleavedRepo) ListRecurringEntries(ctx context.Context, from, to core.DateKey) ([]core.LedgerEntry, error) {
	out, err := r.Store.ListRecurringEntries(ctx, from, to)
	if f := r.afterRecurring; f != nil {
		r.afterRecurring = nil
		f()
	}
	return out, err
}

func (env *testEnv) interleave(t *testing.T) *interleavedRepo {
	t.Helper()
	repo := &interleavedRepo{Store: env.store}
	env.svc = NewLedgerService(repo, LedgerOptions{
		Publisher: env.pub,
		Cache:     env.cache,
		Clock:     core.FixedClock{T: time.Date(2025, time.December, 15, 9, 0, 0, 0, time.UTC)},
		Logger:    quietLogger(),
	})
	return repo
}

func TestLedgerService_MonthDoesNotCacheStaleBucket(t *testing.T) {
	env := newTestEnv(t)
	repo := env.interleave(t)
	ctx := context.Background()

	repo.afterRecurring = func() {
		if _, err := env.svc.LogEntry(ctx, manual("groceries", "2025-12-03", core.ExpenseClass{CategoryID: "food"})); err != nil {
			t.Errorf("LogEntry() error = %v", err)
		}
	}

	first := env.month(t, dec2025)
	if len(first.Entries) != 0 {
		t.Fatalf("first Month() entries = %v, want the pre-write read", entryIDs(first))
	}

	second := env.month(t, dec2025)
	if len(second.Entries) != 1 || second.Entries[0].ID != "groceries" {
		t.Errorf("second Month() entries = %v, want [groceries]", entryIDs(second))
	}
	if stats := env.cache.Stats(); stats.Hits != 0 {
		t.Errorf("cache hits = %d, want 0", stats.Hits)
	}

	third := env.month(t, dec2025)
	if len(third.Entries) != 1 {
		t.Errorf("third Month() entries = %v, want 1", entryIDs(third))
	}
	if stats := env.cache.Stats(); stats.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", stats.Hits)
	}
}

func TestLedgerService_ConfirmOccurrenceLosesRace(t *testing.T) {
	env := newTestEnv(t)
	repo := env.interleave(t)
	ctx := context.Background()
	env.seedRent(t)

	var inner core.LedgerEntry
	repo.afterRecurring = func() {
		e, created, err := env.svc.ConfirmOccurrence(ctx, "rent", "2025-12-01", nil)
		if err != nil || !created {
			t.Errorf("concurrent ConfirmOccurrence() created %v, err %v", created, err)
		}
		inner = e
	}

	e, created, err := env.svc.ConfirmOccurrence(ctx, "rent", "2025-12-01", nil)
	if err != nil {
		t.Fatalf("ConfirmOccurrence() error = %v", err)
	}
	if created || e.ID != inner.ID {
		t.Errorf("ConfirmOccurrence() = %s, created %v, want %s, created false", e.ID, created, inner.ID)
	}

	b := env.month(t, dec2025)
	if len(b.Entries) != 1 || b.Entries[0].IsPlaceholder || len(b.Warnings) != 0 {
		t.Errorf("December = %+v", b)
	}
}

func TestLedgerService_ConcurrentConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRent(t)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := env.svc.ConfirmOccurrence(ctx, "rent", "2025-12-01", nil)
			if err != nil {
				t.Errorf("ConfirmOccurrence() error = %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("ConfirmOccurrence() created %d entries, want 1", created)
	}
	b := env.month(t, dec2025)
	if len(b.Entries) != 1 || len(b.Warnings) != 0 {
		t.Errorf("December entries = %v, warnings = %v", entryIDs(b), warningCodes(b))
	}
}

func TestLedgerService_SkipAndUnskip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRent(t)
	ph := core.PlaceholderID("rent", "2025-12-01")

	if _, err := env.svc.SkipOccurrence(ctx, "rent", "2025-12-01"); err != nil {
		t.Fatalf("SkipOccurrence() error = %v", err)
	}
	if b := env.month(t, dec2025); hasEntry(b, ph) {
		t.Error("skipped occurrence still has a placeholder")
	}
	if _, _, err := env.svc.ConfirmOccurrence(ctx, "rent", "2025-12-01", nil); !errors.Is(err, ErrNotScheduled) {
		t.Errorf("ConfirmOccurrence() skipped error = %v, want ErrNotScheduled", err)
	}

	if _, err := env.svc.SkipOccurrence(ctx, "rent", "2025-12-02"); !errors.Is(err, ErrNotScheduled) {
		t.Errorf("SkipOccurrence() off-schedule error = %v, want ErrNotScheduled", err)
	}
	if _, err := env.svc.SkipOccurrence(ctx, "rent", "2024-12-01"); !errors.Is(err, ErrNotScheduled) {
		t.Errorf("SkipOccurrence() before start error = %v, want ErrNotScheduled", err)
	}

	tmpl, err := env.svc.UnskipOccurrence(ctx, "rent", "2025-12-01")
	if err != nil {
		t.Fatalf("UnskipOccurrence() error = %v", err)
	}
	if tmpl.IsSkipped("2025-12-01") {
		t.Error("UnskipOccurrence() kept the skip")
	}
	if b := env.month(t, dec2025); !hasEntry(b, ph) {
		t.Error("unskipped occurrence has no placeholder")
	}
}

func TestLedgerService_PauseAndResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedRent(t)
	env.month(t, dec2025)

	if _, err := env.svc.PauseTemplate(ctx, "rent"); err != nil {
		t.Fatalf("PauseTemplate() error = %v", err)
	}
	if b := env.month(t, dec2025); len(b.Entries) != 0 {
		t.Errorf("paused template entries = %v", entryIDs(b))
	}

	if _, err := env.svc.ResumeTemplate(ctx, "rent"); err != nil {
		t.Fatalf("ResumeTemplate() error = %v", err)
	}
	if b := env.month(t, dec2025); len(b.Entries) != 1 {
		t.Errorf("resumed template entries = %v", entryIDs(b))
	}

	if _, err := env.svc.PauseTemplate(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("PauseTemplate() error = %v, want ErrNotFound", err)
	}
}

func TestLedgerService_Window(t *testing.T) {
	env := newTestEnv(t)
	env.seedRent(t)

	buckets, err := env.svc.Window(context.Background(), 2, 1, core.SortDescending)
	if err != nil {
		t.Fatalf("Window() error = %v", err)
	}
	want := []string{"jan-2026", "dec-2025", "nov-2025", "oct-2025"}
	if got := bucketKeys(buckets); len(got) != len(want) {
		t.Fatalf("Window() = %v, want %v", got, want)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Window()[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	}
	for _, b := range buckets {
		if len(b.Entries) != 1 {
			t.Errorf("%s entries = %v, want one placeholder", b.Key, entryIDs(b))
		}
	}

	if _, err := env.svc.Window(context.Background(), -1, 0, core.SortAscending); err == nil {
		t.Error("Window() expected error for a negative count")
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	env := newTestEnv(t)
	env.pub.err = amqp.ErrCircuitOpen

	if _, err := env.svc.CreateTemplate(context.Background(), rentTemplate()); err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if _, err := env.store.GetTemplate(context.Background(), "rent"); err != nil {
		t.Errorf("template not stored: %v", err)
	}
}

func TestLedgerService_WithoutOptionalCollaborators(t *testing.T) {
	svc := NewLedgerService(memory.New(), LedgerOptions{Logger: quietLogger()})
	ctx := context.Background()
	if _, err := svc.CreateTemplate(ctx, rentTemplate()); err != nil {
		t.Fatalf("CreateTemplate() error = %v", err)
	}
	if _, err := svc.Month(ctx, dec2025, core.SortAscending); err != nil {
		t.Errorf("Month() error = %v", err)
	}
}
