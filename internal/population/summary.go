package population

import (
	"github.com/aclements/go-moremath/stats"
)

// Summary describes a set of values.
type Summary struct {
	Count  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
	Q1     float64
	Q3     float64
	StdDev float64
}

// Summarize computes a Summary of values without modifying them. An empty
// input yields the zero Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := stats.Sample{Xs: append([]float64(nil), values...)}
	s.Sort()
	min, max := s.Bounds()

	return Summary{
		Count:  len(values),
		Min:    min,
		Max:    max,
		Mean:   s.Mean(),
		Median: s.Quantile(0.5),
		Q1:     s.Quantile(0.25),
		Q3:     s.Quantile(0.75),
		StdDev: s.StdDev(),
	}
}
