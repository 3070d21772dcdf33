package services

import (
	"fmt"
	"time"

	"ledger/internal/core"
)

// GenerateMonths returns empty bucket skeletons for the navigable range
// around the reference month.
//
// The order is a display contract: futureCount months after the reference
// month (furthest first), the reference month, then pastCount months before
// it (most recent first).
func GenerateMonths(pastCount, futureCount int, reference time.Time) ([]core.MonthBucket, error) {
	if pastCount < 0 || futureCount < 0 {
		return nil, fmt.Errorf("%w: negative month count (past=%d, future=%d)", core.ErrInvalidWindow, pastCount, futureCount)
	}
	ref, err := core.WindowOf(reference)
	if err != nil {
		return nil, fmt.Errorf("%w: reference date: %w", core.ErrInvalidWindow, err)
	}

	months := make([]core.MonthBucket, 0, pastCount+futureCount+1)
	for offset := futureCount; offset >= -pastCount; offset-- {
		w := ref.AddMonths(offset)
		if err := w.Validate(); err != nil {
			return nil, err
		}
		months = append(months, core.NewBucket(w))
	}
	return months, nil
}
