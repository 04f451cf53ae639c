package estimator

import (
	"math"
	"time"

	"convergence_worker/internal/resample"
	"convergence_worker/internal/running"
)

// BagSize returns ceil(n^exponent), clamped to [1, n].
func BagSize(n int, exponent float64) int {
	if n < 1 {
		return 1
	}
	f := math.Ceil(math.Pow(float64(n), exponent))
	if f >= float64(n) {
		return n
	}
	if f < 1 {
		return 1
	}
	return int(f)
}

// Partition splits indices into consecutive bags of the given size. The
// last bag is shorter when size does not divide len(indices). Bags share
// storage with indices. It panics if size < 1.
func Partition(indices []int, size int) [][]int {
	if size < 1 {
		panic("estimator: bag size must be positive")
	}
	bags := make([][]int, 0, (len(indices)+size-1)/size)
	for start := 0; start < len(indices); start += size {
		end := min(start+size, len(indices))
		bags = append(bags, indices[start:end])
	}
	return bags
}

// BagResult describes one bag of a BLB run.
type BagResult struct {
	Size        int
	Variance    float64
	Total       time.Duration
	PerResample time.Duration
}

// BLBResult is the outcome of a BLB run.
type BLBResult struct {
	// Variance is the mean of the per-bag variance estimates.
	Variance float64

	Bags []BagResult

	// Total is the sum of bag wall times.
	Total time.Duration

	// PerResample is the per-resample time averaged across bags.
	PerResample time.Duration

	// PerBag is the mean bag wall time.
	PerBag time.Duration
}

// BLB is the Bag of Little Bootstraps variant benchmarked here: the sample
// is shuffled and cut into bags of ceil(n^BagExponent) values, and every
// bag is bootstrapped at its own size, not at n. The final bag may be short;
// it is weighted like the others.
type BLB struct {
	Rand         resample.Rand
	BagExponent  float64
	Replications int
}

// NewBLB returns a BLB estimator drawing from r.
func NewBLB(r resample.Rand, bagExponent float64, replications int) *BLB {
	return &BLB{Rand: r, BagExponent: bagExponent, Replications: replications}
}

// Name implements Estimator.
func (b *BLB) Name() string { return "blb" }

// Run shuffles, bags and bootstraps sample.
func (b *BLB) Run(sample []float64) (BLBResult, error) {
	if len(sample) == 0 {
		return BLBResult{}, ErrEmptySample
	}
	if b.Replications < 1 {
		return BLBResult{}, ErrInvalidReplications
	}
	if !(b.BagExponent > 0) || math.IsInf(b.BagExponent, 0) {
		return BLBResult{}, ErrInvalidBagExponent
	}

	perm := resample.Permutation(b.Rand, len(sample))
	bags := Partition(perm, BagSize(len(sample), b.BagExponent))
	boot := Bootstrap{Rand: b.Rand, Replications: b.Replications}

	var variance, perResample, perBag running.Mean
	res := BLBResult{Bags: make([]BagResult, 0, len(bags))}
	values := make([]float64, 0, len(bags[0]))
	for _, bag := range bags {
		values = values[:0]
		for _, idx := range bag {
			values = append(values, sample[idx])
		}
		br, err := boot.Run(values)
		if err != nil {
			return BLBResult{}, err
		}
		bagRes := BagResult{
			Size:        len(values),
			Variance:    br.Variance(),
			Total:       br.Total(),
			PerResample: br.MeanTime(),
		}
		res.Bags = append(res.Bags, bagRes)
		res.Total += bagRes.Total
		variance.Add(bagRes.Variance)
		perResample.Add(float64(bagRes.PerResample))
		perBag.Add(float64(bagRes.Total))
	}

	res.Variance = variance.Value()
	res.PerResample = durationOf(perResample.Value())
	res.PerBag = durationOf(perBag.Value())
	return res, nil
}

// Estimate implements Estimator.
func (b *BLB) Estimate(sample []float64) (Estimate, error) {
	res, err := b.Run(sample)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		Variance:    res.Variance,
		Total:       res.Total,
		PerResample: res.PerResample,
		PerBag:      res.PerBag,
	}, nil
}
