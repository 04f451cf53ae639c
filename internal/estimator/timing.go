package estimator

import (
	"math"
	"time"
)

// now is the clock used by every estimator. Tests replace it.
var now = time.Now

type stopwatch struct {
	start time.Time
}

func startStopwatch() stopwatch {
	return stopwatch{start: now()}
}

func (s stopwatch) elapsed() time.Duration {
	return now().Sub(s.start)
}

// timed runs fn and returns its wall time.
func timed(fn func()) time.Duration {
	sw := startStopwatch()
	fn()
	return sw.elapsed()
}

func durationOf(ns float64) time.Duration {
	return time.Duration(math.Round(ns))
}
