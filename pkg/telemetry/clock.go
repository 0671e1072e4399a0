package telemetry

import "time"

// Clock is the monotonic time source used to time kernels.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries a monotonic reading.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
