package storage

import (
	"context"
	"errors"

	"ledger/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicateEntry is returned by AppendEntry for an id already stored.
	ErrDuplicateEntry = errors.New("duplicate entry id")
)

// Ports for outbound adapters.
type (
	TemplateReader interface {
		ListTemplates(ctx context.Context) ([]core.RecurringTemplate, error)
		GetTemplate(ctx context.Context, id string) (core.RecurringTemplate, error)
	}

	// TemplateWriter inserts or replaces a template, skip set included.
	TemplateWriter interface {
		SaveTemplate(ctx context.Context, t core.RecurringTemplate) error
	}

	// EntryReader returns persisted entries in insertion order.
	EntryReader interface {
		// ListEntries returns entries whose timestamp falls on a day in [from, to].
		ListEntries(ctx context.Context, from, to core.DateKey) ([]core.LedgerEntry, error)
		// ListRecurringEntries returns entries whose recurring date key is in [from, to].
		ListRecurringEntries(ctx context.Context, from, to core.DateKey) ([]core.LedgerEntry, error)
	}

	EntryWriter interface {
		AppendEntry(ctx context.Context, e core.LedgerEntry) error
	}

	// Repository is everything the ledger service needs from a backend.
	Repository interface {
		TemplateReader
		TemplateWriter
		EntryReader
		EntryWriter
		Close() error
	}
)
