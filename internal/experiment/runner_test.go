package experiment

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convergence_worker/internal/estimator"
	"convergence_worker/internal/population"
	"convergence_worker/internal/resample"
)

type recordingSink struct {
	rows   []Row
	failAt int
	closed bool
}

func (s *recordingSink) WriteRow(r Row) error {
	if s.failAt > 0 && len(s.rows)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.rows = append(s.rows, r)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

type stubEstimator struct {
	name     string
	variance float64
	err      error
}

func (s stubEstimator) Name() string { return s.name }

func (s stubEstimator) Estimate([]float64) (estimator.Estimate, error) {
	return estimator.Estimate{Variance: s.variance, Total: time.Microsecond}, s.err
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.PopulationSize = 2000
	cfg.Start = 20
	cfg.End = 50
	cfg.Step = 10
	cfg.TruthTrials = 200
	cfg.Smoothing = 3
	cfg.Replications = 20
	return cfg
}

func gammaPopulation(t *testing.T, size int, seed uint64) []float64 {
	t.Helper()
	values, err := population.Gamma{Shape: 9, Scale: 0.8, Src: resample.New(seed)}.Generate(size)
	require.NoError(t, err)
	return values
}

func TestNewRunnerValidation(t *testing.T) {
	pop := []float64{1, 2, 3}

	bad := smallConfig()
	bad.Step = 0
	_, err := NewRunner(bad, pop, resample.New(1))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRunner(smallConfig(), nil, resample.New(1))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRunner(smallConfig(), pop, nil)
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewRunner(smallConfig(), pop, resample.New(1), WithEstimators())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunnerDefaultEstimators(t *testing.T) {
	r, err := NewRunner(smallConfig(), []float64{1, 2, 3}, resample.New(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"bootstrap", "blb", "sem"}, r.EstimatorNames())
	assert.Len(t, r.Header(), 15)
}

func TestRunWritesOneRowPerSize(t *testing.T) {
	cfg := smallConfig()
	r, err := NewRunner(cfg, gammaPopulation(t, cfg.PopulationSize, 1), resample.New(2))
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, r.Run(sink))
	require.Len(t, sink.rows, 3)
	assert.False(t, sink.closed, "Run must leave closing to the caller")

	header := r.Header()
	for i, row := range sink.rows {
		assert.Equal(t, cfg.Sizes()[i], row.Size)
		assert.Greater(t, row.Truth, 0.0)
		assert.Positive(t, row.TruthTime)
		require.Len(t, row.Results, 3)
		assert.Len(t, row.Record(), len(header))
		for _, e := range row.Results {
			assert.GreaterOrEqual(t, e.Distance, 0.0)
			assert.GreaterOrEqual(t, e.Total, 0.0)
		}
	}

	blb, ok := sink.rows[0].Result("blb")
	require.True(t, ok)
	assert.GreaterOrEqual(t, blb.PerBag, 0.0)
}

func TestRunStopsOnSinkError(t *testing.T) {
	cfg := smallConfig()
	r, err := NewRunner(cfg, gammaPopulation(t, cfg.PopulationSize, 1), resample.New(2))
	require.NoError(t, err)

	sink := &recordingSink{failAt: 2}
	err = r.Run(sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size 30")
	assert.Len(t, sink.rows, 1)
}

func TestRunSizeDistanceAgainstTruth(t *testing.T) {
	cfg := smallConfig()
	cfg.Smoothing = 4
	r, err := NewRunner(cfg, []float64{1, 2, 3, 4}, resample.New(3),
		WithEstimators(stubEstimator{name: "zero"}))
	require.NoError(t, err)

	row, err := r.RunSize(20)
	require.NoError(t, err)
	require.Len(t, row.Results, 1)
	// A zero estimate is exactly truth away from the truth.
	assert.InDelta(t, row.Truth, row.Results[0].Distance, 1e-12)
	assert.Equal(t, float64(time.Microsecond), row.Results[0].Total)
	assert.Equal(t, []string{"size", "truth", "truth_time", "zero", "zero_total_time",
		"zero_per_resample_time", "zero_per_bag_time"}, r.Header())
}

func TestRunSizePropagatesEstimatorError(t *testing.T) {
	boom := errors.New("boom")
	r, err := NewRunner(smallConfig(), []float64{1, 2, 3}, resample.New(3),
		WithEstimators(stubEstimator{name: "bad", err: boom}))
	require.NoError(t, err)

	_, err = r.RunSize(20)
	require.ErrorIs(t, err, boom)
}

func TestRunSizeRejectsNonFiniteEstimate(t *testing.T) {
	r, err := NewRunner(smallConfig(), []float64{1, 2, 3}, resample.New(3),
		WithEstimators(stubEstimator{name: "nan", variance: math.NaN()}))
	require.NoError(t, err)

	_, err = r.RunSize(20)
	require.ErrorIs(t, err, ErrNumeric)
}

func TestGroundTruthNonFinitePopulation(t *testing.T) {
	r, err := NewRunner(smallConfig(), []float64{1, math.Inf(1)}, resample.New(3))
	require.NoError(t, err)

	_, err = r.GroundTruth(10)
	require.ErrorIs(t, err, ErrNumeric)
}

func TestGroundTruthElapsedUsesClock(t *testing.T) {
	r, err := NewRunner(smallConfig(), []float64{1, 2, 3}, resample.New(3))
	require.NoError(t, err)
	current := time.Unix(0, 0)
	r.now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}

	truth, err := r.GroundTruth(5)
	require.NoError(t, err)
	assert.Equal(t, time.Second, truth.Elapsed)
}

func TestGroundTruthConvergesToPopulationVariance(t *testing.T) {
	// Gamma(9, 0.8) has variance 5.76, so the variance of the mean at size n
	// is about 5.76/n, and the spread of the mean shrinks as n grows.
	cfg := smallConfig()
	cfg.TruthTrials = 2000
	pop := gammaPopulation(t, 20000, 7)
	r, err := NewRunner(cfg, pop, resample.New(8))
	require.NoError(t, err)

	const theoretical = 9 * 0.8 * 0.8
	prev := math.Inf(1)
	for _, size := range []int{10, 40, 160, 640} {
		truth, err := r.GroundTruth(size)
		require.NoError(t, err)
		assert.Less(t, truth.Variance, prev, "size %d", size)
		assert.InEpsilon(t, theoretical, truth.Variance*float64(size), 0.2, "size %d", size)
		prev = truth.Variance
	}
}

func TestRunDefaultEstimatorsTrackTruth(t *testing.T) {
	cfg := smallConfig()
	cfg.Smoothing = 10
	cfg.Replications = 100
	pop := gammaPopulation(t, 5000, 11)
	r, err := NewRunner(cfg, pop, resample.New(12))
	require.NoError(t, err)

	row, err := r.RunSize(200)
	require.NoError(t, err)

	boot, _ := row.Result("bootstrap")
	sem, _ := row.Result("sem")
	blb, _ := row.Result("blb")
	// Bootstrap and SEM both target sigma^2/n; BLB resamples at bag size
	// and lands further away.
	assert.Less(t, boot.Distance, row.Truth)
	assert.Less(t, sem.Distance, row.Truth)
	assert.Greater(t, blb.Distance, sem.Distance)
	assert.Zero(t, sem.PerResample)
	assert.Positive(t, blb.PerBag)
}

func TestAggregateMergeMatchesSequentialAdd(t *testing.T) {
	trials := []estimator.Estimate{
		{Variance: 1.5, Total: 100, PerResample: 10},
		{Variance: 0.5, Total: 300, PerResample: 30, PerBag: 50},
		{Variance: 2.0, Total: 200, PerResample: 20},
	}
	const truth = 1.0

	var sequential, merged aggregate
	for _, est := range trials {
		sequential.add(est, truth)

		var single aggregate
		single.add(est, truth)
		merged = merged.merge(single)
	}

	want := sequential.row("x")
	got := merged.row("x")
	assert.Equal(t, want.Name, got.Name)
	assert.InDelta(t, want.Distance, got.Distance, 1e-12)
	assert.InDelta(t, 2.0/3.0, got.Distance, 1e-12)
	assert.InDelta(t, want.Total, got.Total, 1e-9)
	assert.InDelta(t, 200.0, got.Total, 1e-9)
	assert.InDelta(t, want.PerResample, got.PerResample, 1e-9)
	assert.InDelta(t, want.PerBag, got.PerBag, 1e-9)
}
