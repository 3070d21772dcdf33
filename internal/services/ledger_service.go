package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/storage"
)

var (
	ErrTemplateExists = errors.New("template already exists")
	ErrNotScheduled   = errors.New("date is not a scheduled occurrence")
)

// windowConcurrency bounds the number of months built at once.
const windowConcurrency = 4

// Publisher receives change events after successful writes.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// LedgerOptions carries the optional collaborators of a LedgerService.
type LedgerOptions struct {
	Publisher Publisher                     // nil disables change events
	Cache     cache.Cache[core.MonthBucket] // nil disables caching
	Clock     core.Clock                    // defaults to the system clock
	Logger    *log.Logger
}

// LedgerService builds month views and applies template and entry changes.
type LedgerService struct {
	repo      storage.Repository
	publisher Publisher
	buckets   cache.Cache[core.MonthBucket]
	clock     core.Clock
	logger    *log.Logger
	events    *log.StructuredLogger

	// genMu, epoch and months guard the bucket cache: a month rebuilt from
	// reads taken before an invalidation of that month is not stored.
	genMu  sync.Mutex
	epoch  uint64
	months map[core.MonthWindow]uint64
}

type generation struct {
	epoch uint64
	month uint64
}

func NewLedgerService(repo storage.Repository, opts LedgerOptions) *LedgerService {
	if opts.Clock == nil {
		opts.Clock = core.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	logger := opts.Logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		repo:      repo,
		publisher: opts.Publisher,
		buckets:   opts.Cache,
		clock:     opts.Clock,
		logger:    logger,
		events:    log.NewStructuredLogger(logger),
		months:    make(map[core.MonthWindow]uint64),
	}
}

// Month returns the merged bucket for w.
func (s *LedgerService) Month(ctx context.Context, w core.MonthWindow, dir core.SortDirection) (core.MonthBucket, error) {
	if err := w.Validate(); err != nil {
		return core.MonthBucket{}, err
	}

	key := bucketKey(w, dir)
	if s.buckets != nil {
		if b, ok := s.buckets.Get(key); ok {
			return b, nil
		}
	}

	gen := s.generation(w)
	start := time.Now()
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return core.MonthBucket{}, fmt.Errorf("list templates: %w", err)
	}
	persisted, err := s.persistedFor(ctx, w)
	if err != nil {
		return core.MonthBucket{}, err
	}

	bucket, err := BuildLedger(w, templates, persisted, dir)
	if err != nil {
		return core.MonthBucket{}, err
	}
	s.events.LogMonthBuilt(ctx, bucket, time.Since(start))

	s.store(key, w, gen, bucket)
	return bucket, nil
}

func (s *LedgerService) generation(w core.MonthWindow) generation {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return generation{epoch: s.epoch, month: s.months[w]}
}

// store caches b unless w was invalidated since gen was taken.
func (s *LedgerService) store(key string, w core.MonthWindow, gen generation, b core.MonthBucket) {
	if s.buckets == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if gen != (generation{epoch: s.epoch, month: s.months[w]}) {
		s.logger.Debug("Discarding bucket built before an invalidation", log.FieldMonthKey, w.Key())
		return
	}
	s.buckets.Set(key, b)
}

// persistedFor returns the entries dated in w followed by entries dated
// elsewhere that fulfil an occurrence in w. Those only suppress placeholders.
func (s *LedgerService) persistedFor(ctx context.Context, w core.MonthWindow) ([]core.LedgerEntry, error) {
	inMonth, err := s.repo.ListEntries(ctx, w.First(), w.Last())
	if err != nil {
		return nil, fmt.Errorf("list entries for %s: %w", w, err)
	}
	recurring, err := s.repo.ListRecurringEntries(ctx, w.First(), w.Last())
	if err != nil {
		return nil, fmt.Errorf("list recurring entries for %s: %w", w, err)
	}

	seen := make(map[string]struct{}, len(inMonth))
	for _, e := range inMonth {
		seen[e.ID] = struct{}{}
	}
	out := inMonth
	for _, e := range recurring {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Window builds the navigable range around the clock's current month in
// GenerateMonths order. Months are built concurrently; the first failure
// cancels the rest.
func (s *LedgerService) Window(ctx context.Context, past, future int, dir core.SortDirection) ([]core.MonthBucket, error) {
	skeletons, err := GenerateMonths(past, future, s.clock.Now())
	if err != nil {
		return nil, err
	}

	out := make([]core.MonthBucket, len(skeletons))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(windowConcurrency)
	for i, sk := range skeletons {
		g.Go(func() error {
			b, err := s.Month(gctx, sk.Window, dir)
			if err != nil {
				return fmt.Errorf("build %s: %w", sk.Key, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fields := log.NewFields().WithOperation(log.OpBuildWindow)
	fields[log.FieldDirection] = string(dir)
	s.logger.DebugContext(ctx, "Month window built", append(fields.ToSlice(), "months", len(out))...)
	return out, nil
}

// Templates returns every stored template.
func (s *LedgerService) Templates(ctx context.Context) ([]core.RecurringTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

// CreateTemplate validates and stores a new template. An empty id is
// replaced by a generated one.
func (s *LedgerService) CreateTemplate(ctx context.Context, t core.RecurringTemplate) (core.RecurringTemplate, error) {
	t = t.Clone()
	if t.ID == "" {
		t.ID = core.NewEntryID()
	}
	if err := t.Validate(); err != nil {
		return core.RecurringTemplate{}, err
	}

	_, err := s.repo.GetTemplate(ctx, t.ID)
	switch {
	case err == nil:
		return core.RecurringTemplate{}, fmt.Errorf("%w: %s", ErrTemplateExists, t.ID)
	case !errors.Is(err, storage.ErrNotFound):
		return core.RecurringTemplate{}, fmt.Errorf("look up template %s: %w", t.ID, err)
	}

	if err := s.repo.SaveTemplate(ctx, t); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("save template: %w", err)
	}
	s.templateChanged(ctx, log.OpCreate, t.ID, t.StartDate.Window())
	return t, nil
}

func (s *LedgerService) PauseTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	return s.updateTemplate(ctx, log.OpPause, id, func(t *core.RecurringTemplate) error {
		t.IsPaused = true
		return nil
	})
}

func (s *LedgerService) ResumeTemplate(ctx context.Context, id string) (core.RecurringTemplate, error) {
	return s.updateTemplate(ctx, log.OpResume, id, func(t *core.RecurringTemplate) error {
		t.IsPaused = false
		return nil
	})
}

// SkipOccurrence excludes the occurrence on k. Later occurrences of a capped
// template move up to take its place.
func (s *LedgerService) SkipOccurrence(ctx context.Context, id string, k core.DateKey) (core.RecurringTemplate, error) {
	return s.updateTemplate(ctx, log.OpSkip, id, func(t *core.RecurringTemplate) error {
		if err := checkOccurrenceDate(*t, k); err != nil {
			return err
		}
		if t.SkippedDateKeys == nil {
			t.SkippedDateKeys = core.NewSkipSet()
		}
		t.SkippedDateKeys[k] = struct{}{}
		return nil
	}, k.Window())
}

func (s *LedgerService) UnskipOccurrence(ctx context.Context, id string, k core.DateKey) (core.RecurringTemplate, error) {
	return s.updateTemplate(ctx, log.OpUnskip, id, func(t *core.RecurringTemplate) error {
		if _, err := core.ParseDateKey(string(k)); err != nil {
			return err
		}
		delete(t.SkippedDateKeys, k)
		return nil
	}, k.Window())
}

func (s *LedgerService) updateTemplate(ctx context.Context, op, id string, apply func(*core.RecurringTemplate) error, months ...core.MonthWindow) (core.RecurringTemplate, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := apply(&t); err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := t.ValidateSchedule(); err != nil {
		return core.RecurringTemplate{}, err
	}
	if err := s.repo.SaveTemplate(ctx, t); err != nil {
		return core.RecurringTemplate{}, fmt.Errorf("save template %s: %w", id, err)
	}
	s.templateChanged(ctx, op, id, months...)
	return t, nil
}

// LogEntry persists a one-off or recurring entry. An empty id is replaced
// by a generated one.
func (s *LedgerService) LogEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = core.NewEntryID()
	}
	e.IsPlaceholder = false
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	if err := s.repo.AppendEntry(ctx, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("append entry: %w", err)
	}
	s.entryChanged(ctx, log.OpLog, e)
	return e, nil
}

// ConfirmOccurrence turns the placeholder for (templateID, k) into a
// persisted entry. When the occurrence is already logged the existing entry
// is returned with created set to false. A nil amount keeps the template's.
func (s *LedgerService) ConfirmOccurrence(ctx context.Context, templateID string, k core.DateKey, amount *core.Money) (entry core.LedgerEntry, created bool, err error) {
	if _, err := core.ParseDateKey(string(k)); err != nil {
		return core.LedgerEntry{}, false, err
	}
	t, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return core.LedgerEntry{}, false, err
	}

	keys, err := ScheduleOccurrences(t, k.Window())
	if err != nil {
		return core.LedgerEntry{}, false, err
	}
	if len(keys) == 0 || keys[0] != k {
		return core.LedgerEntry{}, false, fmt.Errorf("%w: template %s on %s", ErrNotScheduled, templateID, k)
	}

	logged, err := s.repo.ListRecurringEntries(ctx, k, k)
	if err != nil {
		return core.LedgerEntry{}, false, fmt.Errorf("list entries for %s: %w", k, err)
	}
	for _, e := range logged {
		if tid, dk, ok := e.Occurrence(); ok && tid == templateID && dk == k {
			return e, false, nil
		}
	}

	e := placeholder(t, k)
	e.IsPlaceholder = false
	if amount != nil {
		e.Amount = *amount
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, false, err
	}
	if err := s.repo.AppendEntry(ctx, e); err != nil {
		if errors.Is(err, storage.ErrDuplicateEntry) {
			// A concurrent confirm stored the same placeholder id first.
			return s.loggedOccurrence(ctx, templateID, k)
		}
		return core.LedgerEntry{}, false, fmt.Errorf("append entry: %w", err)
	}
	s.entryChanged(ctx, log.OpConfirm, e)
	return e, true, nil
}

func (s *LedgerService) loggedOccurrence(ctx context.Context, templateID string, k core.DateKey) (core.LedgerEntry, bool, error) {
	logged, err := s.repo.ListRecurringEntries(ctx, k, k)
	if err != nil {
		return core.LedgerEntry{}, false, fmt.Errorf("list entries for %s: %w", k, err)
	}
	for _, e := range logged {
		if tid, dk, ok := e.Occurrence(); ok && tid == templateID && dk == k {
			return e, false, nil
		}
	}
	return core.LedgerEntry{}, false, fmt.Errorf("%w: occurrence %s on %s", storage.ErrDuplicateEntry, templateID, k)
}

// checkOccurrenceDate rejects keys the template could never schedule.
func checkOccurrenceDate(t core.RecurringTemplate, k core.DateKey) error {
	if _, err := core.ParseDateKey(string(k)); err != nil {
		return err
	}
	if k < t.StartDate || candidateFor(t, k.Window()) != k {
		return fmt.Errorf("%w: template %s on %s", ErrNotScheduled, t.ID, k)
	}
	return nil
}

// templateChanged drops every cached month: pauses, skips and caps can move
// occurrences in any month after the change.
func (s *LedgerService) templateChanged(ctx context.Context, op, id string, months ...core.MonthWindow) {
	s.genMu.Lock()
	s.epoch++
	if s.buckets != nil {
		s.buckets.Purge()
	}
	s.genMu.Unlock()
	s.logger.InfoContext(ctx, "Template updated", log.NewFields().WithOperation(op).WithTemplate(id).ToSlice()...)
	s.publish(ctx, amqp.NewLedgerChangedMessage(op, id, "", months...))
}

func (s *LedgerService) entryChanged(ctx context.Context, op string, e core.LedgerEntry) {
	var months []core.MonthWindow
	if k, err := e.DateKey(); err == nil {
		months = append(months, k.Window())
	}
	if e.RecurringDateKey != "" {
		if w := e.RecurringDateKey.Window(); len(months) == 0 || w != months[0] {
			months = append(months, w)
		}
	}
	s.Invalidate(months...)

	s.logger.InfoContext(ctx, "Entry logged", log.NewFields().
		WithOperation(op).
		WithEntry(e.ID).
		WithTemplate(e.RecurringTemplateID).
		ToSlice()...)
	s.publish(ctx, amqp.NewLedgerChangedMessage(op, e.RecurringTemplateID, e.ID, months...))
}

// Invalidate drops the cached buckets of the given months.
func (s *LedgerService) Invalidate(months ...core.MonthWindow) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	for _, w := range months {
		s.months[w]++
		if s.buckets != nil {
			s.buckets.DeletePrefix(w.String() + "|")
		}
	}
}

func (s *LedgerService) publish(ctx context.Context, msg *amqp.LedgerChangedMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping change event", "reason", msg.Reason)
		return
	}
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		// The write already succeeded; consumers catch up on the next refresh
		s.events.LogError(ctx, "Failed to publish change event", err, log.OpPublish, log.NewFields().WithTemplate(msg.TemplateID).WithEntry(msg.EntryID))
	}
}

func bucketKey(w core.MonthWindow, dir core.SortDirection) string {
	return w.String() + "|" + string(dir)
}
