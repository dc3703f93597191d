package domain

import "time"

// Clock abstracts wall time so timelock and deadline checks are
// testable against a controlled source.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
