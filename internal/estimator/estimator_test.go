package estimator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convergence_worker/internal/resample"
)

// fakeClock advances by step on every reading.
func fakeClock(t *testing.T, step time.Duration) {
	t.Helper()
	current := time.Unix(0, 0)
	now = func() time.Time {
		current = current.Add(step)
		return current
	}
	t.Cleanup(func() { now = time.Now })
}

func seq(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}

func TestEstimatorsImplementInterface(t *testing.T) {
	r := resample.New(1)
	for _, e := range []Estimator{NewBootstrap(r, 10), NewBLB(r, 0.5, 10), Analytic{}} {
		assert.NotEmpty(t, e.Name())
	}
}

func TestEstimatorsRejectEmptySample(t *testing.T) {
	r := resample.New(1)
	for _, e := range []Estimator{NewBootstrap(r, 10), NewBLB(r, 0.5, 10), Analytic{}} {
		_, err := e.Estimate(nil)
		require.ErrorIsf(t, err, ErrEmptySample, "estimator %s", e.Name())
	}
}

func TestBootstrapRunShape(t *testing.T) {
	b := NewBootstrap(resample.New(42), 25)
	res, err := b.Run(seq(50))
	require.NoError(t, err)
	require.Len(t, res.Means, 25)
	require.Len(t, res.Times, 25)
	for i := 1; i < len(res.Times); i++ {
		require.GreaterOrEqual(t, res.Times[i], res.Times[i-1])
	}
	for _, m := range res.Means {
		assert.GreaterOrEqual(t, m, 0.0)
		assert.LessOrEqual(t, m, 49.0)
	}
}

func TestBootstrapTimingWithFakeClock(t *testing.T) {
	fakeClock(t, time.Millisecond)

	res, err := NewBootstrap(resample.New(1), 4).Run(seq(10))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		3 * time.Millisecond,
		4 * time.Millisecond,
	}, res.Times)
	assert.Equal(t, 4*time.Millisecond, res.Total())
	assert.Equal(t, time.Millisecond, res.MeanTime())
}

func TestBootstrapInvalidReplications(t *testing.T) {
	_, err := NewBootstrap(resample.New(1), 0).Run(seq(3))
	require.ErrorIs(t, err, ErrInvalidReplications)
}

func TestBootstrapConstantSample(t *testing.T) {
	est, err := NewBootstrap(resample.New(9), 30).Estimate([]float64{5, 5, 5, 5})
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Variance)
	assert.Zero(t, est.PerBag)
}

func TestBootstrapVarianceMatchesTheory(t *testing.T) {
	// Population variance of 0..99 is 833.25; the variance of the mean of a
	// 100-element resample is 8.3325.
	est, err := NewBootstrap(resample.New(2024), 2000).Estimate(seq(100))
	require.NoError(t, err)
	assert.InDelta(t, 8.3325, est.Variance, 1.5)
}

func TestBootstrapSingleReplication(t *testing.T) {
	res, err := NewBootstrap(resample.New(3), 1).Run(seq(5))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Variance())
}

func TestBagSize(t *testing.T) {
	tests := []struct {
		n        int
		exponent float64
		want     int
	}{
		{100, 0.5, 10},
		{10, 0.5, 4},
		{200, 0.5, 15},
		{1, 0.5, 1},
		{7, 1, 7},
		{7, 2, 7},
		{1000, 0.7, 126},
	}
	for _, tt := range tests {
		assert.Equalf(t, tt.want, BagSize(tt.n, tt.exponent), "BagSize(%d, %v)", tt.n, tt.exponent)
	}
}

func TestPartitionCoversDisjointly(t *testing.T) {
	for _, n := range []int{1, 9, 10, 11, 100, 101} {
		perm := resample.Permutation(resample.New(uint64(n)), n)
		size := BagSize(n, 0.5)
		bags := Partition(perm, size)

		seen := make(map[int]bool, n)
		total := 0
		for i, bag := range bags {
			if i < len(bags)-1 {
				require.Len(t, bag, size)
			} else {
				require.LessOrEqual(t, len(bag), size)
				require.NotEmpty(t, bag)
			}
			for _, idx := range bag {
				require.Falsef(t, seen[idx], "n=%d: index %d in two bags", n, idx)
				seen[idx] = true
			}
			total += len(bag)
		}
		require.Equal(t, n, total)
		require.Len(t, seen, n)
	}
}

func TestPartitionPanicsOnZeroSize(t *testing.T) {
	assert.Panics(t, func() { Partition([]int{1, 2}, 0) })
}

func TestBLBShortFinalBag(t *testing.T) {
	res, err := NewBLB(resample.New(5), 0.5, 20).Run(seq(10))
	require.NoError(t, err)
	require.Len(t, res.Bags, 3)
	assert.Equal(t, 4, res.Bags[0].Size)
	assert.Equal(t, 4, res.Bags[1].Size)
	assert.Equal(t, 2, res.Bags[2].Size)

	var sum float64
	for _, bag := range res.Bags {
		sum += bag.Variance
	}
	assert.InDelta(t, sum/3, res.Variance, 1e-12)
}

func TestBLBOversizedBagIsWholeSample(t *testing.T) {
	res, err := NewBLB(resample.New(5), 3, 20).Run(seq(12))
	require.NoError(t, err)
	require.Len(t, res.Bags, 1)
	assert.Equal(t, 12, res.Bags[0].Size)
}

func TestBLBSingleObservation(t *testing.T) {
	res, err := NewBLB(resample.New(5), 0.5, 10).Run([]float64{3})
	require.NoError(t, err)
	require.Len(t, res.Bags, 1)
	assert.Equal(t, 0.0, res.Variance)
}

func TestBLBInvalidExponent(t *testing.T) {
	for _, exp := range []float64{0, -0.5, math.NaN(), math.Inf(1)} {
		_, err := NewBLB(resample.New(1), exp, 10).Run(seq(10))
		require.ErrorIsf(t, err, ErrInvalidBagExponent, "exponent %v", exp)
	}
}

func TestBLBTimingAggregates(t *testing.T) {
	fakeClock(t, time.Microsecond)

	// 9 values, bag size 3: three bags, each two resamples. Each bag run reads
	// the clock three times (start + one per resample), so every bag lasts
	// 2µs and every resample 1µs.
	res, err := NewBLB(resample.New(1), 0.5, 2).Run(seq(9))
	require.NoError(t, err)
	require.Len(t, res.Bags, 3)
	for _, bag := range res.Bags {
		assert.Equal(t, 2*time.Microsecond, bag.Total)
		assert.Equal(t, time.Microsecond, bag.PerResample)
	}
	assert.Equal(t, 6*time.Microsecond, res.Total)
	assert.Equal(t, 2*time.Microsecond, res.PerBag)
	assert.Equal(t, time.Microsecond, res.PerResample)

	est, err := NewBLB(resample.New(1), 0.5, 2).Estimate(seq(9))
	require.NoError(t, err)
	assert.Equal(t, res.PerBag, est.PerBag)
}

func TestBLBResamplesAtBagSize(t *testing.T) {
	// Bags are bootstrapped at their own size, so the BLB figure tracks
	// sigma^2/bag rather than sigma^2/n and sits well above the full
	// bootstrap estimate.
	sample := seq(100)
	blb, err := NewBLB(resample.New(8), 0.5, 300).Estimate(sample)
	require.NoError(t, err)
	boot, err := NewBootstrap(resample.New(8), 300).Estimate(sample)
	require.NoError(t, err)
	assert.Greater(t, blb.Variance, 3*boot.Variance)
}

func TestStandardError(t *testing.T) {
	// Sample stddev of {2,4,4,4,5,5,7,9} is sqrt(32/7).
	got := StandardError([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, math.Sqrt(32.0/7.0)/math.Sqrt(8), got, 1e-12)
}

func TestStandardErrorEdgeCases(t *testing.T) {
	assert.True(t, math.IsNaN(StandardError(nil)))
	assert.Equal(t, 0.0, StandardError([]float64{7}))

	est, err := Analytic{}.Estimate([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Variance)
}

func TestStandardErrorScaleCovariant(t *testing.T) {
	sample := []float64{1.5, -2, 8.25, 3, 3, 0.125, 11}
	base := StandardError(sample)
	for _, c := range []float64{2, -3, 0.5, 1e6} {
		scaled := make([]float64, len(sample))
		for i, v := range sample {
			scaled[i] = c * v
		}
		assert.InEpsilonf(t, math.Abs(c)*base, StandardError(scaled), 1e-9, "c=%v", c)
	}
}

func TestStandardErrorLargeOffset(t *testing.T) {
	sample := []float64{1e9 + 4, 1e9 + 7, 1e9 + 13, 1e9 + 16}
	assert.InDelta(t, math.Sqrt(30.0/4.0), StandardError(sample), 1e-6)
}

func TestAnalyticIsDeterministic(t *testing.T) {
	sample := seq(1000)
	a, err := Analytic{}.Estimate(sample)
	require.NoError(t, err)
	b, err := Analytic{}.Estimate(sample)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(a.Variance), math.Float64bits(b.Variance))
}
