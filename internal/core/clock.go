package core

import "time"

// Clock provides the reference date for month navigation and new entries.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the device time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
