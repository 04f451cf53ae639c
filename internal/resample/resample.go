// Package resample draws bootstrap resamples and random index permutations.
package resample

import (
	"math/rand/v2"
)

// Rand is the random source used for index draws. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// New returns a PCG-backed generator seeded from seed. The result is also a
// rand.Source, so it can drive gonum distributions.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SampleWithReplacement returns k values chosen independently and uniformly
// from source. k == 0 yields an empty slice.
//
// It panics if k < 0, or if source is empty and k > 0.
func SampleWithReplacement(r Rand, source []float64, k int) []float64 {
	out := make([]float64, k)
	Fill(r, out, source)
	return out
}

// Fill overwrites every element of dst with a uniform draw from source.
func Fill(r Rand, dst, source []float64) {
	if len(dst) == 0 {
		return
	}
	if len(source) == 0 {
		panic("resample: empty source")
	}
	n := len(source)
	for i := range dst {
		dst[i] = source[r.IntN(n)]
	}
}

// MeanWithReplacement fills buf from source with replacement and returns the
// mean of buf. buf must be non-empty.
func MeanWithReplacement(r Rand, buf, source []float64) float64 {
	Fill(r, buf, source)
	var sum float64
	for _, v := range buf {
		sum += v
	}
	return sum / float64(len(buf))
}

// Shuffle permutes indices in place. Every ordering is equally likely.
func Shuffle(r Rand, indices []int) {
	for i := len(indices) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		indices[i], indices[j] = indices[j], indices[i]
	}
}

// Permutation returns a uniformly shuffled copy of [0, n).
func Permutation(r Rand, n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	Shuffle(r, idx)
	return idx
}
