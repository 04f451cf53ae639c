// Package running holds incremental accumulators for experiment aggregates.
//
// Both types are plain values and the zero value is ready to use. Mean.Merge
// returns a combined accumulator without touching its inputs, so a phase can
// build its own accumulator and hand it back to the caller.
package running

// Mean is a running arithmetic mean.
type Mean struct {
	count int64
	mean  float64
}

// Add incorporates x.
func (m *Mean) Add(x float64) {
	m.count++
	m.mean += (x - m.mean) / float64(m.count)
}

// Count returns the number of values added.
func (m Mean) Count() int64 {
	return m.count
}

// Value returns the current mean, or 0 if nothing was added.
func (m Mean) Value() float64 {
	return m.mean
}

// Merge returns the mean of the values seen by m and o.
func (m Mean) Merge(o Mean) Mean {
	if o.count == 0 {
		return m
	}
	if m.count == 0 {
		return o
	}
	n := m.count + o.count
	return Mean{
		count: n,
		mean:  m.mean + (o.mean-m.mean)*float64(o.count)/float64(n),
	}
}

// Variance maintains a running mean and unbiased variance using Welford's
// algorithm.
type Variance struct {
	count int64
	mean  float64
	m2    float64
}

// Add incorporates x.
func (v *Variance) Add(x float64) {
	v.count++
	delta := x - v.mean
	v.mean += delta / float64(v.count)
	v.m2 += delta * (x - v.mean)
}

// Count returns the number of values added.
func (v Variance) Count() int64 {
	return v.count
}

// Mean returns the running mean.
func (v Variance) Mean() float64 {
	return v.mean
}

// Value returns the sample variance (M2/(n-1)). Returns 0 if fewer than 2
// values were added.
func (v Variance) Value() float64 {
	if v.count < 2 {
		return 0
	}
	return v.m2 / float64(v.count-1)
}
