package inject

import (
	"time"

	"golang.org/x/sys/unix"
)

// Clock abstracts the monotonic clock to allow testing.
type Clock interface {
	// Now returns the time elapsed since an arbitrary fixed point, usually boot.
	Now() time.Duration
}

type monotonicClock struct{}

func (monotonicClock) Now() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

// SystemClock reads CLOCK_MONOTONIC, the clock the kernel input core stamps
// events with.
var SystemClock Clock = monotonicClock{}
