// Package experiment drives the convergence sweep: for every sample size it
// measures a ground-truth variance of the mean by direct resampling from the
// base population, then scores each estimator against it.
package experiment

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"convergence_worker/internal/estimator"
	"convergence_worker/internal/resample"
	"convergence_worker/internal/running"
)

// ErrNumeric indicates a non-finite ground truth or estimate.
var ErrNumeric = errors.New("non-finite result")

// Sink receives result rows as they are produced. WriteRow must make the row
// durable before returning.
type Sink interface {
	WriteRow(Row) error
	Close() error
}

// Truth is the ground truth for one sample size.
type Truth struct {
	Variance float64
	Elapsed  time.Duration
}

// Runner executes a sweep on the calling goroutine.
type Runner struct {
	cfg        Config
	population []float64
	rng        resample.Rand
	estimators []estimator.Estimator
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the progress logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithEstimators replaces the default bootstrap, BLB and SEM estimators.
func WithEstimators(es ...estimator.Estimator) Option {
	return func(r *Runner) {
		r.estimators = es
	}
}

// NewRunner validates cfg and prepares a sweep over population.
func NewRunner(cfg Config, population []float64, rng resample.Rand, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(population) == 0 {
		return nil, fmt.Errorf("%w: empty base population", ErrInvalidConfig)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	r := &Runner{
		cfg:        cfg,
		population: population,
		rng:        rng,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	r.estimators = []estimator.Estimator{
		estimator.NewBootstrap(rng, cfg.Replications),
		estimator.NewBLB(rng, cfg.BagExponent, cfg.Replications),
		estimator.Analytic{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.estimators) == 0 {
		return nil, fmt.Errorf("%w: no estimators", ErrInvalidConfig)
	}
	return r, nil
}

// EstimatorNames returns the estimator names in column order.
func (r *Runner) EstimatorNames() []string {
	names := make([]string, len(r.estimators))
	for i, e := range r.estimators {
		names[i] = e.Name()
	}
	return names
}

// Header returns the result table header for this runner.
func (r *Runner) Header() []string {
	return Header(r.EstimatorNames())
}

// GroundTruth estimates the variance of the mean at size by drawing
// TruthTrials samples directly from the base population.
func (r *Runner) GroundTruth(size int) (Truth, error) {
	if size < 1 {
		return Truth{}, fmt.Errorf("%w: sample size %d", ErrInvalidConfig, size)
	}
	var means running.Variance
	buf := make([]float64, size)
	start := r.now()
	for i := 0; i < r.cfg.TruthTrials; i++ {
		means.Add(resample.MeanWithReplacement(r.rng, buf, r.population))
	}
	truth := Truth{Variance: means.Value(), Elapsed: r.now().Sub(start)}
	if !finite(truth.Variance) {
		return Truth{}, fmt.Errorf("ground truth at size %d: %w", size, ErrNumeric)
	}
	return truth, nil
}

// RunSize computes the ground truth at size and scores every estimator over
// Smoothing fresh samples.
func (r *Runner) RunSize(size int) (Row, error) {
	truth, err := r.GroundTruth(size)
	if err != nil {
		return Row{}, err
	}
	r.logger.Debug("ground truth estimated",
		"size", size,
		"truth", truth.Variance,
		"elapsed", truth.Elapsed,
	)

	aggs := make([]aggregate, len(r.estimators))
	for trial := 0; trial < r.cfg.Smoothing; trial++ {
		scored, err := r.scoreTrial(size, truth.Variance)
		if err != nil {
			return Row{}, err
		}
		for i := range aggs {
			aggs[i] = aggs[i].merge(scored[i])
		}
	}

	row := Row{
		Size:      size,
		Truth:     truth.Variance,
		TruthTime: truth.Elapsed,
		Results:   make([]EstimatorRow, len(r.estimators)),
	}
	for i, e := range r.estimators {
		row.Results[i] = aggs[i].row(e.Name())
	}
	return row, nil
}

// scoreTrial draws one fresh sample of size and returns a single-trial
// aggregate per estimator.
func (r *Runner) scoreTrial(size int, truth float64) ([]aggregate, error) {
	sample := resample.SampleWithReplacement(r.rng, r.population, size)
	aggs := make([]aggregate, len(r.estimators))
	for i, e := range r.estimators {
		est, err := e.Estimate(sample)
		if err != nil {
			return nil, fmt.Errorf("size %d: %s: %w", size, e.Name(), err)
		}
		if !finite(est.Variance) {
			return nil, fmt.Errorf("size %d: %s: %w", size, e.Name(), ErrNumeric)
		}
		aggs[i].add(est, truth)
	}
	return aggs, nil
}

// Run processes every size of the sweep in order and hands each row to sink.
// The first error aborts the sweep; rows already written are kept.
func (r *Runner) Run(sink Sink) error {
	sizes := r.cfg.Sizes()
	for n, size := range sizes {
		row, err := r.RunSize(size)
		if err != nil {
			return err
		}
		if err := sink.WriteRow(row); err != nil {
			return fmt.Errorf("write row for size %d: %w", size, err)
		}

		attrs := []any{
			"size", size,
			"done", n + 1,
			"of", len(sizes),
			"truth", row.Truth,
		}
		for _, e := range row.Results {
			attrs = append(attrs, e.Name, e.Distance)
		}
		r.logger.Info("explored size", attrs...)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
