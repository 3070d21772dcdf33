package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// placeholderNamespace scopes the name-based ids of synthesized entries.
var placeholderNamespace = uuid.MustParse("6f1d2a4e-3c1b-5f0a-9a43-2b8e5c7d9e10")

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

const (
	WarnInvalidDate         WarningCode = "invalid_date"
	WarnInvalidTemplate     WarningCode = "invalid_template"
	WarnDuplicateOccurrence WarningCode = "duplicate_occurrence"
	WarnInconsistentEntry   WarningCode = "inconsistent_entry"
)

type (
	SortDirection string

	WarningCode string

	// LedgerEntry is a persisted transaction or a synthesized placeholder.
	LedgerEntry struct {
		ID     string
		Amount Money
		Class  Classification
		Note   string

		// Timestamp is either a DateKey or an RFC 3339 instant.
		Timestamp string

		RecurringTemplateID string
		RecurringDateKey    DateKey
		IsRecurringInstance bool

		// IsPlaceholder marks an entry synthesized by the merger; it is
		// never persisted.
		IsPlaceholder bool
	}

	// Warning reports a recoverable inconsistency found while building a bucket.
	Warning struct {
		Code       WarningCode
		TemplateID string
		DateKey    DateKey
		EntryIDs   []string
		Message    string
	}

	// MonthBucket is a derived view of one month of ledger entries.
	MonthBucket struct {
		Key      string
		Label    string
		Window   MonthWindow
		Entries  []LedgerEntry
		Warnings []Warning
	}
)

// ParseSortDirection accepts "asc" or "desc"; empty means ascending.
func ParseSortDirection(s string) (SortDirection, error) {
	switch d := SortDirection(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return SortAscending, nil
	case SortAscending, SortDescending:
		return d, nil
	default:
		return "", fmt.Errorf("%w: unknown sort direction %q", ErrInvalidWindow, s)
	}
}

// Kind returns the entry's kind, or "" when it has no classification.
func (e LedgerEntry) Kind() EntryKind {
	if e.Class == nil {
		return ""
	}
	return e.Class.Kind()
}

// IsManual reports whether the entry is a one-off, not tied to a template.
func (e LedgerEntry) IsManual() bool {
	return e.RecurringTemplateID == ""
}

// DateKey returns the canonical day of the entry's timestamp.
func (e LedgerEntry) DateKey() (DateKey, error) {
	return ToDateKey(e.Timestamp)
}

// Validate checks an entry before it is persisted.
func (e LedgerEntry) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrEmptyID)
	}
	if _, err := e.DateKey(); err != nil {
		return fmt.Errorf("%w: timestamp: %w", ErrInvalidEntry, err)
	}
	if err := e.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if e.Class == nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, ErrMissingClass)
	}
	if err := e.Class.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if err := e.checkRecurringFields(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntry, err)
	}
	if len(e.Note) > 200 {
		return fmt.Errorf("%w: note too long (max 200 characters)", ErrInvalidEntry)
	}
	return nil
}

// checkRecurringFields enforces that a recurring instance names its occurrence.
func (e LedgerEntry) checkRecurringFields() error {
	if !e.IsRecurringInstance {
		return nil
	}
	if e.RecurringTemplateID == "" || e.RecurringDateKey == "" {
		return fmt.Errorf("recurring instance without template id or date key")
	}
	if _, err := ParseDateKey(string(e.RecurringDateKey)); err != nil {
		return fmt.Errorf("recurring date key: %w", err)
	}
	return nil
}

// Occurrence returns the (template id, date key) pair the entry fulfils.
func (e LedgerEntry) Occurrence() (templateID string, dateKey DateKey, ok bool) {
	if e.RecurringTemplateID == "" || e.RecurringDateKey == "" {
		return "", "", false
	}
	return e.RecurringTemplateID, e.RecurringDateKey, true
}

// PlaceholderID returns the stable id of the placeholder for an occurrence.
func PlaceholderID(templateID string, k DateKey) string {
	return uuid.NewSHA1(placeholderNamespace, []byte(templateID+"|"+string(k))).String()
}

// NewEntryID returns a fresh random id for a persisted entry or template.
func NewEntryID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of the bucket so callers cannot mutate a cached view.
func (b MonthBucket) Clone() MonthBucket {
	c := b
	if b.Entries != nil {
		c.Entries = append([]LedgerEntry(nil), b.Entries...)
	}
	if b.Warnings != nil {
		c.Warnings = make([]Warning, len(b.Warnings))
		for i, w := range b.Warnings {
			w.EntryIDs = append([]string(nil), w.EntryIDs...)
			c.Warnings[i] = w
		}
	}
	return c
}

// NewBucket returns an empty bucket for w.
func NewBucket(w MonthWindow) MonthBucket {
	return MonthBucket{Key: w.Key(), Label: w.Label(), Window: w}
}

func sortDateKeys(keys []DateKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}
