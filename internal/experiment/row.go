package experiment

import (
	"strconv"
	"time"

	"convergence_worker/internal/estimator"
	"convergence_worker/internal/running"
)

// EstimatorRow aggregates one estimator over the smoothing trials of a size.
// Distances are |estimate - truth|; times are mean nanoseconds.
type EstimatorRow struct {
	Name        string  `json:"name"`
	Distance    float64 `json:"distance"`
	Total       float64 `json:"total_time"`
	PerResample float64 `json:"per_resample_time"`
	PerBag      float64 `json:"per_bag_time"`
}

// Row is the result for one sample size.
type Row struct {
	Size      int            `json:"size"`
	Truth     float64        `json:"truth"`
	TruthTime time.Duration  `json:"truth_time"`
	Results   []EstimatorRow `json:"estimators"`
}

// Header returns the column names for rows produced by estimators with the
// given names, in order.
func Header(names []string) []string {
	h := make([]string, 0, 3+4*len(names))
	h = append(h, "size", "truth", "truth_time")
	for _, name := range names {
		h = append(h,
			name,
			name+"_total_time",
			name+"_per_resample_time",
			name+"_per_bag_time",
		)
	}
	return h
}

// Record formats r to match Header.
func (r Row) Record() []string {
	rec := make([]string, 0, 3+4*len(r.Results))
	rec = append(rec,
		strconv.Itoa(r.Size),
		formatFloat(r.Truth),
		strconv.FormatInt(int64(r.TruthTime), 10),
	)
	for _, e := range r.Results {
		rec = append(rec,
			formatFloat(e.Distance),
			formatFloat(e.Total),
			formatFloat(e.PerResample),
			formatFloat(e.PerBag),
		)
	}
	return rec
}

// Result returns the aggregate for the named estimator.
func (r Row) Result(name string) (EstimatorRow, bool) {
	for _, e := range r.Results {
		if e.Name == name {
			return e, true
		}
	}
	return EstimatorRow{}, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// aggregate accumulates one estimator's trials for a size.
type aggregate struct {
	distance    running.Mean
	total       running.Mean
	perResample running.Mean
	perBag      running.Mean
}

func (a *aggregate) add(est estimator.Estimate, truth float64) float64 {
	d := est.Variance - truth
	if d < 0 {
		d = -d
	}
	a.distance.Add(d)
	a.total.Add(float64(est.Total))
	a.perResample.Add(float64(est.PerResample))
	a.perBag.Add(float64(est.PerBag))
	return d
}

func (a aggregate) merge(o aggregate) aggregate {
	return aggregate{
		distance:    a.distance.Merge(o.distance),
		total:       a.total.Merge(o.total),
		perResample: a.perResample.Merge(o.perResample),
		perBag:      a.perBag.Merge(o.perBag),
	}
}

func (a aggregate) row(name string) EstimatorRow {
	return EstimatorRow{
		Name:        name,
		Distance:    a.distance.Value(),
		Total:       a.total.Value(),
		PerResample: a.perResample.Value(),
		PerBag:      a.perBag.Value(),
	}
}
