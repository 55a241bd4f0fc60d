package booking

import "time"

// Clock allows injecting time into the reservation core so expiry
// behaviour is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// SystemClock returns a clock backed by time.Now in UTC.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

type fixedClock struct {
	now time.Time
}

// FixedClock returns a clock that always reports the same instant.
func FixedClock(t time.Time) Clock {
	return fixedClock{now: t.UTC()}
}

func (f fixedClock) Now() time.Time {
	return f.now
}
