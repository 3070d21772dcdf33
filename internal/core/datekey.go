package core

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DateKeyLayout is the fixed-width layout of a DateKey.
const DateKeyLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// DateKey is a calendar day in YYYY-MM-DD form with no timezone component.
// Keys compare correctly with the ordinary string operators.
type DateKey string

// ParseDateKey validates s as a calendar day and returns it unchanged.
func ParseDateKey(s string) (DateKey, error) {
	if len(s) != len(DateKeyLayout) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if _, err := time.Parse(DateKeyLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateKey(s), nil
}

// NewDateKey formats year, month and day. Out of range values are
// normalized the way time.Date normalizes them.
func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKey(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(DateKeyLayout))
}

// ToDateKey converts a date-like value to its canonical calendar day.
//
// Day-granular inputs (a YYYY-MM-DD string or a DateKey) pass through
// unchanged. Instants (RFC 3339 strings, time.Time, unix milliseconds)
// are read through their UTC calendar fields so every viewer groups them
// identically.
func ToDateKey(input any) (DateKey, error) {
	switch v := input.(type) {
	case DateKey:
		return ParseDateKey(string(v))
	case string:
		if len(v) == len(DateKeyLayout) {
			return ParseDateKey(v)
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if t, err := time.Parse(layout, v); err == nil {
				return fromInstant(t), nil
			}
		}
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, v)
	case time.Time:
		if v.IsZero() {
			return "", fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return fromInstant(v), nil
	case *time.Time:
		if v == nil {
			return "", fmt.Errorf("%w: nil time", ErrInvalidDate)
		}
		return ToDateKey(*v)
	case int64:
		return fromInstant(time.UnixMilli(v)), nil
	case int:
		return fromInstant(time.UnixMilli(int64(v))), nil
	case float64:
		// Epoch milliseconds decoded from JSON arrive as float64.
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return "", fmt.Errorf("%w: %v is not whole milliseconds", ErrInvalidDate, v)
		}
		return fromInstant(time.UnixMilli(int64(v))), nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidDate, input)
	}
}

// SameDay reports whether a and b normalize to the same DateKey.
// Inputs that cannot be normalized are never the same day.
func SameDay(a, b any) bool {
	ka, err := ToDateKey(a)
	if err != nil {
		return false
	}
	kb, err := ToDateKey(b)
	if err != nil {
		return false
	}
	return ka == kb
}

func fromInstant(t time.Time) DateKey {
	return DateKey(t.UTC().Format(DateKeyLayout))
}

// String implements fmt.Stringer
func (k DateKey) String() string {
	return string(k)
}

// Time returns midnight UTC of the day. The key must be valid.
func (k DateKey) Time() time.Time {
	t, _ := time.Parse(DateKeyLayout, string(k))
	return t
}

// Window returns the month containing the day.
func (k DateKey) Window() MonthWindow {
	t := k.Time()
	return MonthWindow{Year: t.Year(), Month: t.Month()}
}

// Day returns the day of the month.
func (k DateKey) Day() int {
	return k.Time().Day()
}

// DaysInMonth returns the number of days of month in year, leap years included.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
