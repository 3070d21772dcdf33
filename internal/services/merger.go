package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"ledger/internal/core"
)

type occurrence struct {
	templateID string
	dateKey    core.DateKey
}

type mergedEntry struct {
	entry core.LedgerEntry
	key   core.DateKey
	seq   int
}

// BuildLedger merges the persisted entries of w with placeholders for the
// template occurrences nobody has logged yet.
//
// A placeholder is suppressed when any persisted entry, in or out of the
// month, fulfils the same (template, date) occurrence. Problems with single
// templates or entries are reported as bucket warnings and never abort the
// merge; only an invalid window or sort direction returns an error.
func BuildLedger(w core.MonthWindow, templates []core.RecurringTemplate, persisted []core.LedgerEntry, dir core.SortDirection) (core.MonthBucket, error) {
	if err := w.Validate(); err != nil {
		return core.MonthBucket{}, err
	}
	if dir != core.SortAscending && dir != core.SortDescending {
		return core.MonthBucket{}, fmt.Errorf("%w: unknown sort direction %q", core.ErrInvalidWindow, dir)
	}

	bucket := core.NewBucket(w)
	logged := make(map[occurrence][]string)
	merged := make([]mergedEntry, 0, len(persisted)+len(templates))

	for _, e := range persisted {
		if tid, dk, ok := e.Occurrence(); ok {
			occ := occurrence{templateID: tid, dateKey: dk}
			logged[occ] = append(logged[occ], e.ID)
		} else if e.IsRecurringInstance {
			bucket.Warnings = append(bucket.Warnings, core.Warning{
				Code:       core.WarnInconsistentEntry,
				TemplateID: e.RecurringTemplateID,
				DateKey:    e.RecurringDateKey,
				EntryIDs:   []string{e.ID},
				Message:    "recurring instance without template id or date key",
			})
		}

		key, err := e.DateKey()
		if err != nil {
			bucket.Warnings = append(bucket.Warnings, core.Warning{
				Code:       core.WarnInvalidDate,
				TemplateID: e.RecurringTemplateID,
				EntryIDs:   []string{e.ID},
				Message:    err.Error(),
			})
			continue
		}
		if !w.Contains(key) {
			continue
		}
		merged = append(merged, mergedEntry{entry: e, key: key, seq: len(merged)})
	}

	for _, occ := range sortedOccurrences(logged) {
		ids := logged[occ]
		if len(ids) < 2 || !w.Contains(occ.dateKey) {
			continue
		}
		bucket.Warnings = append(bucket.Warnings, core.Warning{
			Code:       core.WarnDuplicateOccurrence,
			TemplateID: occ.templateID,
			DateKey:    occ.dateKey,
			EntryIDs:   append([]string(nil), ids...),
			Message:    fmt.Sprintf("%d entries logged for the same occurrence", len(ids)),
		})
	}

	for _, t := range templates {
		keys, err := ScheduleOccurrences(t, w)
		if err != nil {
			if !errors.Is(err, core.ErrInvalidTemplate) {
				return core.MonthBucket{}, err
			}
			bucket.Warnings = append(bucket.Warnings, core.Warning{
				Code:       core.WarnInvalidTemplate,
				TemplateID: t.ID,
				Message:    err.Error(),
			})
			continue
		}
		for _, k := range keys {
			if _, ok := logged[occurrence{templateID: t.ID, dateKey: k}]; ok {
				continue
			}
			merged = append(merged, mergedEntry{entry: placeholder(t, k), key: k, seq: len(merged)})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.key != b.key {
			if dir == core.SortDescending {
				return a.key > b.key
			}
			return a.key < b.key
		}
		if ra, rb := core.KindRank(a.entry.Kind()), core.KindRank(b.entry.Kind()); ra != rb {
			return ra < rb
		}
		return a.seq < b.seq
	})

	bucket.Entries = make([]core.LedgerEntry, len(merged))
	for i, m := range merged {
		bucket.Entries[i] = m.entry
	}
	return bucket, nil
}

func placeholder(t core.RecurringTemplate, k core.DateKey) core.LedgerEntry {
	return core.LedgerEntry{
		ID:                  core.PlaceholderID(t.ID, k),
		Amount:              t.Amount,
		Class:               t.Class,
		Note:                t.Note,
		Timestamp:           string(k),
		RecurringTemplateID: t.ID,
		RecurringDateKey:    k,
		IsRecurringInstance: true,
		IsPlaceholder:       true,
	}
}

func sortedOccurrences(m map[occurrence][]string) []occurrence {
	out := make([]occurrence, 0, len(m))
	for occ := range m {
		out = append(out, occ)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].dateKey != out[j].dateKey {
			return out[i].dateKey < out[j].dateKey
		}
		return strings.Compare(out[i].templateID, out[j].templateID) < 0
	})
	return out
}
