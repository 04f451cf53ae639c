// Package estimator implements variance estimators for the sample mean.
//
// Three strategies share the Estimator interface:
//
//   - Bootstrap: classical bootstrap, B resamples of size n.
//   - BLB: Bag of Little Bootstraps over ceil(n^γ)-sized bags.
//   - Analytic: squared standard error of the mean.
//
// Each estimator runs on the calling goroutine; wall-clock timings are only
// comparable when no other work shares the thread.
package estimator

import (
	"errors"
	"time"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmptySample indicates an estimator was given no observations.
	ErrEmptySample = errors.New("estimator: empty sample")

	// ErrInvalidReplications indicates a resample count below 1.
	ErrInvalidReplications = errors.New("estimator: replications must be at least 1")

	// ErrInvalidBagExponent indicates a BLB bag exponent that is not a
	// positive finite number.
	ErrInvalidBagExponent = errors.New("estimator: bag exponent must be positive and finite")
)

// Estimate is the outcome of one estimator run.
type Estimate struct {
	// Variance is the estimated variance of the sample mean.
	Variance float64

	// Total is the wall time of the estimator's work.
	Total time.Duration

	// PerResample is the mean time of a single resample. Zero for
	// estimators that do not resample.
	PerResample time.Duration

	// PerBag is the mean time spent per BLB bag. Zero outside BLB.
	PerBag time.Duration
}

// Estimator estimates the variance of the mean of a sample.
type Estimator interface {
	// Name identifies the estimator in result tables.
	Name() string

	// Estimate runs the estimator once on sample.
	Estimate(sample []float64) (Estimate, error)
}

// sampleVariance is the unbiased variance of xs, 0 for fewer than two values.
func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.Variance(xs, nil)
}
