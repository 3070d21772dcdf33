package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"ledger/internal/core"
	"ledger/internal/storage"
)

// SeedFile is the name of the optional seed document read by NewFromDir.
const SeedFile = "ledger_seed.json"

type Seed struct {
	Templates []storage.TemplateRecord `json:"templates"`
	Entries   []storage.EntryRecord    `json:"entries"`
}

// Store keeps templates and entries in process memory. Entries keep their
// insertion order.
type Store struct {
	mu        sync.Mutex
	order     []string
	templates map[string]core.RecurringTemplate
	entries   []core.LedgerEntry
	entryIDs  map[string]struct{}
}

var _ storage.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		templates: make(map[string]core.RecurringTemplate),
		entryIDs:  make(map[string]struct{}),
	}
}

// NewFromDir loads SeedFile from base when present. Records that cannot be
// decoded are logged and skipped.
func NewFromDir(base string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	s.load(seed)
	return s, nil
}

func (s *Store) load(seed Seed) {
	for _, rec := range seed.Templates {
		t, err := rec.Template()
		if err != nil {
			slog.Warn("Skipping seed template", "template_id", rec.ID, "error", err)
			continue
		}
		s.putTemplate(t)
	}
	for _, rec := range seed.Entries {
		e, err := rec.Entry()
		if err != nil {
			slog.Warn("Skipping seed entry", "entry_id", rec.ID, "error", err)
			continue
		}
		if _, dup := s.entryIDs[e.ID]; dup {
			slog.Warn("Skipping seed entry with duplicate id", "entry_id", e.ID)
			continue
		}
		s.entryIDs[e.ID] = struct{}{}
		s.entries = append(s.entries, e)
	}
	slog.Info("Memory store seeded", "templates", len(s.templates), "entries", len(s.entries))
}

func (s *Store) putTemplate(t core.RecurringTemplate) {
	if _, ok := s.templates[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.templates[t.ID] = t.Clone()
}

func (s *Store) ListTemplates(_ context.Context) ([]core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringTemplate, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.templates[id].Clone())
	}
	return out, nil
}

func (s *Store) GetTemplate(_ context.Context, id string) (core.RecurringTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return core.RecurringTemplate{}, fmt.Errorf("template %s: %w", id, storage.ErrNotFound)
	}
	return t.Clone(), nil
}

func (s *Store) SaveTemplate(_ context.Context, t core.RecurringTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putTemplate(t)
	return nil
}

func (s *Store) ListEntries(_ context.Context, from, to core.DateKey) ([]core.LedgerEntry, error) {
	return s.filter(func(e core.LedgerEntry) bool {
		k, err := e.DateKey()
		return err == nil && k >= from && k <= to
	}), nil
}

func (s *Store) ListRecurringEntries(_ context.Context, from, to core.DateKey) ([]core.LedgerEntry, error) {
	return s.filter(func(e core.LedgerEntry) bool {
		return e.RecurringDateKey != "" && e.RecurringDateKey >= from && e.RecurringDateKey <= to
	}), nil
}

// AppendEntry stores e as given. Ids are unique, as in the sqlite schema.
func (s *Store) AppendEntry(_ context.Context, e core.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entryIDs[e.ID]; dup {
		return fmt.Errorf("entry %s: %w", e.ID, storage.ErrDuplicateEntry)
	}
	s.entryIDs[e.ID] = struct{}{}
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) filter(keep func(core.LedgerEntry) bool) []core.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
