package widetable

import "time"

// Clock supplies "now" for writes and deletes without an explicit timestamp.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func millis(c Clock) int64 {
	return c.Now().UnixMilli()
}
