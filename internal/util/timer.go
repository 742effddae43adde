package util

import (
	"fmt"
	"time"
)

// Timer measures the elapsed time of one request or prediction.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer starting at current time.
func StartTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since start, or zero for an unstarted timer.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() {
		return 0
	}
	return time.Since(t.start)
}

// ElapsedMs returns the elapsed milliseconds since start.
func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}

// Header formats the elapsed time for the X-Response-Time header, e.g. "1.25ms".
func (t Timer) Header() string {
	return fmt.Sprintf("%.2fms", float64(t.Elapsed().Microseconds())/1000)
}
