// Package services provides business logic and orchestration services.
//
// This file implements the recurrence scheduler: for a template and a month
// it computes the occurrence dates, honoring the start date, day-of-month
// anchoring, pauses, skip lists and occurrence caps.

package services

import (
	"ledger/internal/core"
)

// ScheduleOccurrences returns the occurrence dates of t inside w.
//
// Templates recur monthly, so the result holds at most one key. The function
// is pure: identical inputs always produce identical output. A template that
// fails schedule validation yields no occurrences and an error wrapping
// core.ErrInvalidTemplate.
func ScheduleOccurrences(t core.RecurringTemplate, w core.MonthWindow) ([]core.DateKey, error) {
	if t.IsPaused {
		return nil, nil
	}
	if err := t.ValidateSchedule(); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	candidate := candidateFor(t, w)
	if candidate < t.StartDate {
		return nil, nil
	}
	if t.IsSkipped(candidate) {
		return nil, nil
	}
	if t.TotalOccurrences != nil && ordinal(t, candidate) > *t.TotalOccurrences {
		return nil, nil
	}
	return []core.DateKey{candidate}, nil
}

// candidateFor anchors the template's day in w, clamping to the month's last
// day (day 31 in a 30-day month, February 29-31 to 28 or 29).
func candidateFor(t core.RecurringTemplate, w core.MonthWindow) core.DateKey {
	day := t.DayOfMonth
	if last := w.Days(); day > last {
		day = last
	}
	return core.NewDateKey(w.Year, w.Month, day)
}

// ordinal returns the 1-based position of candidate among the template's
// accepted occurrences, counted forward from the start month. candidate must
// itself be accepted.
func ordinal(t core.RecurringTemplate, candidate core.DateKey) int {
	first := t.StartDate.Window()
	if candidateFor(t, first) < t.StartDate {
		first = first.AddMonths(1)
	}
	n := first.MonthsUntil(candidate.Window()) + 1

	// Every month from first through the candidate's month has exactly one
	// candidate on or after the start date; skipped ones do not count.
	for k := range t.SkippedDateKeys {
		if k < t.StartDate || k >= candidate {
			continue
		}
		if _, err := core.ParseDateKey(string(k)); err != nil {
			continue
		}
		if candidateFor(t, k.Window()) == k {
			n--
		}
	}
	return n
}
