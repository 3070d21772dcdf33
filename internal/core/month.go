package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidWindow = errors.New("invalid month window")

var monthAbbrev = [...]string{"jan", "feb", "mar", "apr", "may", "jun", "jul", "aug", "sep", "oct", "nov", "dec"}

// MonthWindow is the (year, month) pair that bounds scheduling and merging.
type MonthWindow struct {
	Year  int
	Month time.Month
}

// NewMonthWindow returns the window for year and month.
func NewMonthWindow(year int, month time.Month) MonthWindow {
	return MonthWindow{Year: year, Month: month}
}

// WindowOf returns the month containing the date-like input.
func WindowOf(input any) (MonthWindow, error) {
	k, err := ToDateKey(input)
	if err != nil {
		return MonthWindow{}, err
	}
	return k.Window(), nil
}

// ParseMonthKey parses a "dec-2025" style key.
func ParseMonthKey(s string) (MonthWindow, error) {
	abbr, yearStr, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	if !ok {
		return MonthWindow{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return MonthWindow{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	for i, a := range monthAbbrev {
		if a == abbr {
			w := MonthWindow{Year: year, Month: time.Month(i + 1)}
			return w, w.Validate()
		}
	}
	return MonthWindow{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
}

// ParseYearMonth parses a "2025-12" style month.
func ParseYearMonth(s string) (MonthWindow, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return MonthWindow{}, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	return MonthWindow{Year: t.Year(), Month: t.Month()}, nil
}

func (w MonthWindow) Validate() error {
	if w.Month < time.January || w.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidWindow, int(w.Month))
	}
	if w.Year < 1 || w.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidWindow, w.Year)
	}
	return nil
}

// Key returns the canonical "mon-year" identifier, e.g. "dec-2025".
func (w MonthWindow) Key() string {
	return monthAbbrev[w.Month-1] + "-" + strconv.Itoa(w.Year)
}

// Label returns the display string, e.g. "December 2025".
func (w MonthWindow) Label() string {
	return w.Month.String() + " " + strconv.Itoa(w.Year)
}

// Days returns the number of days in the month.
func (w MonthWindow) Days() int {
	return DaysInMonth(w.Year, w.Month)
}

// First returns the first day of the month.
func (w MonthWindow) First() DateKey {
	return NewDateKey(w.Year, w.Month, 1)
}

// Last returns the last day of the month.
func (w MonthWindow) Last() DateKey {
	return NewDateKey(w.Year, w.Month, w.Days())
}

// Contains reports whether the day falls inside the month.
func (w MonthWindow) Contains(k DateKey) bool {
	return k >= w.First() && k <= w.Last()
}

// AddMonths returns the window n months later (earlier for negative n).
func (w MonthWindow) AddMonths(n int) MonthWindow {
	idx := w.Year*12 + int(w.Month-1) + n
	return MonthWindow{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// MonthsUntil returns the number of months from w to other; negative when
// other is earlier.
func (w MonthWindow) MonthsUntil(other MonthWindow) int {
	return (other.Year*12 + int(other.Month)) - (w.Year*12 + int(w.Month))
}

// Before reports whether w is an earlier month than other.
func (w MonthWindow) Before(other MonthWindow) bool {
	return w.MonthsUntil(other) > 0
}

func (w MonthWindow) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year, int(w.Month))
}
