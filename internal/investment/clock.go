package investment

import "time"

// Clock supplies creation and closure timestamps.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads wall time in UTC, truncated to microseconds so values
// survive a round trip through the database unchanged.
var SystemClock Clock = ClockFunc(func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
})

// FixedClock always returns t. Useful in tests and replays.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
