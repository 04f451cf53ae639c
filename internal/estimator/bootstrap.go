package estimator

import (
	"time"

	"convergence_worker/internal/resample"
)

// BootstrapResult holds the raw output of a bootstrap run.
type BootstrapResult struct {
	// Means holds one mean per resample.
	Means []float64

	// Times holds, per resample, the elapsed time since the start of the run.
	// It is non-decreasing.
	Times []time.Duration
}

// Total returns the wall time of the whole run.
func (r BootstrapResult) Total() time.Duration {
	if len(r.Times) == 0 {
		return 0
	}
	return r.Times[len(r.Times)-1]
}

// MeanTime returns the mean time per resample.
func (r BootstrapResult) MeanTime() time.Duration {
	if len(r.Times) == 0 {
		return 0
	}
	return r.Total() / time.Duration(len(r.Times))
}

// Variance returns the sample variance of the resample means.
func (r BootstrapResult) Variance() float64 {
	return sampleVariance(r.Means)
}

// Bootstrap is the classical bootstrap: Replications resamples of the full
// sample size, drawn with replacement.
type Bootstrap struct {
	Rand         resample.Rand
	Replications int
}

// NewBootstrap returns a bootstrap estimator drawing from r.
func NewBootstrap(r resample.Rand, replications int) *Bootstrap {
	return &Bootstrap{Rand: r, Replications: replications}
}

// Name implements Estimator.
func (b *Bootstrap) Name() string { return "bootstrap" }

// Run draws the resamples and records their means and cumulative timings.
func (b *Bootstrap) Run(sample []float64) (BootstrapResult, error) {
	if len(sample) == 0 {
		return BootstrapResult{}, ErrEmptySample
	}
	if b.Replications < 1 {
		return BootstrapResult{}, ErrInvalidReplications
	}

	res := BootstrapResult{
		Means: make([]float64, b.Replications),
		Times: make([]time.Duration, b.Replications),
	}
	buf := make([]float64, len(sample))
	sw := startStopwatch()
	for i := range res.Means {
		res.Means[i] = resample.MeanWithReplacement(b.Rand, buf, sample)
		res.Times[i] = sw.elapsed()
	}
	return res, nil
}

// Estimate implements Estimator.
func (b *Bootstrap) Estimate(sample []float64) (Estimate, error) {
	res, err := b.Run(sample)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		Variance:    res.Variance(),
		Total:       res.Total(),
		PerResample: res.MeanTime(),
	}, nil
}
