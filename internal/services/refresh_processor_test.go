package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/core"
)

type recordingSummaries struct {
	mu   sync.Mutex
	msgs []*amqp.MonthRebuiltMessage
	err  error
}

func (p *recordingSummaries) PublishMonthRebuilt(_ context.Context, msg *amqp.MonthRebuiltMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingSummaries) months() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Month
	}
	return out
}

func TestRefreshProcessor_Refresh(t *testing.T) {
	env := newTestEnv(t)
	env.seedRent(t)
	summaries := &recordingSummaries{}
	p := NewRefreshProcessor(env.svc, summaries, 1, 1, core.SortAscending)

	n, err := p.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Refresh() = %d, want 3", n)
	}
	want := []string{"jan-2026", "dec-2025", "nov-2025"}
	if got := summaries.months(); !reflect.DeepEqual(got, want) {
		t.Errorf("published %v, want %v", got, want)
	}
	if got := summaries.msgs[1]; got.Placeholders != 1 || got.Pending != "1000.00" {
		t.Errorf("December summary = %+v", got)
	}
}

func TestRefreshProcessor_RefreshReadsThroughCache(t *testing.T) {
	env := newTestEnv(t)
	env.seedRent(t)
	env.month(t, dec2025)

	// Written behind the service's back, so only a rebuild can see it.
	if err := env.store.AppendEntry(context.Background(), manual("direct", "2025-12-09", core.ExpenseClass{CategoryID: "food"})); err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}

	p := NewRefreshProcessor(env.svc, nil, 0, 0, core.SortAscending)
	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if b := env.month(t, dec2025); !hasEntry(b, "direct") {
		t.Errorf("entries after refresh = %v, want direct", entryIDs(b))
	}
}

func TestRefreshProcessor_HandleChange(t *testing.T) {
	env := newTestEnv(t)
	env.seedRent(t)
	env.month(t, dec2025)
	summaries := &recordingSummaries{err: errors.New("broker down")}
	p := NewRefreshProcessor(env.svc, summaries, 1, 1, core.SortAscending)

	if err := env.store.AppendEntry(context.Background(), fulfilled("paid", "rent", "2025-12-01", "2025-12-01")); err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}

	msg := amqp.NewLedgerChangedMessage("log_entry", "rent", "paid", dec2025)
	msg.Months = append(msg.Months, "garbage")
	if err := p.HandleChange(context.Background(), msg); err != nil {
		t.Fatalf("HandleChange() error = %v", err)
	}

	if got := summaries.months(); !reflect.DeepEqual(got, []string{"dec-2025"}) {
		t.Errorf("published %v, want [dec-2025]", got)
	}
	b := env.month(t, dec2025)
	if len(b.Entries) != 1 || b.Entries[0].ID != "paid" {
		t.Errorf("entries after change = %v, want [paid]", entryIDs(b))
	}
}

func TestRefreshProcessor_UsesLedgerClock(t *testing.T) {
	env := newTestEnv(t)
	env.svc.clock = core.FixedClock{T: time.Date(2024, time.February, 29, 23, 0, 0, 0, time.UTC)}
	summaries := &recordingSummaries{}
	p := NewRefreshProcessor(env.svc, summaries, 0, 0, core.SortDescending)

	if _, err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := summaries.months(); !reflect.DeepEqual(got, []string{"feb-2024"}) {
		t.Errorf("published %v, want [feb-2024]", got)
	}
}
