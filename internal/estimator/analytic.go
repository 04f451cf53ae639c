package estimator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardError returns the sample standard deviation divided by the square
// root of the sample size. A single observation has standard error 0; an
// empty sample yields NaN.
func StandardError(sample []float64) float64 {
	switch len(sample) {
	case 0:
		return math.NaN()
	case 1:
		return 0
	}
	_, std := stat.MeanStdDev(sample, nil)
	return stat.StdErr(std, float64(len(sample)))
}

// Analytic estimates the variance of the mean as the squared standard error.
type Analytic struct{}

// Name implements Estimator.
func (Analytic) Name() string { return "sem" }

// Estimate implements Estimator.
func (Analytic) Estimate(sample []float64) (Estimate, error) {
	if len(sample) == 0 {
		return Estimate{}, ErrEmptySample
	}
	var se float64
	elapsed := timed(func() { se = StandardError(sample) })
	return Estimate{Variance: se * se, Total: elapsed}, nil
}
