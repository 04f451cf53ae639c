package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"convergence_worker/internal/experiment"
)

// observerSink reports sweep progress: it samples RSS, logs, and keeps a
// Prometheus registry that is written as a node_exporter textfile on Close.
type observerSink struct {
	registry *prometheus.Registry

	rows        prometheus.Counter
	sampleSize  prometheus.Gauge
	truth       prometheus.Gauge
	truthTime   prometheus.Gauge
	distance    *prometheus.GaugeVec
	totalTime   *prometheus.GaugeVec
	residentMem prometheus.Gauge

	tracker  rssTracker
	logger   *slog.Logger
	textfile string
}

func newObserverSink(logger *slog.Logger, textfile string) *observerSink {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &observerSink{
		registry: reg,
		rows: f.NewCounter(prometheus.CounterOpts{
			Name: "convergence_rows_total",
			Help: "Result rows written.",
		}),
		sampleSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "convergence_sample_size",
			Help: "Sample size of the last completed row.",
		}),
		truth: f.NewGauge(prometheus.GaugeOpts{
			Name: "convergence_truth_variance",
			Help: "Ground-truth variance of the mean at the last sample size.",
		}),
		truthTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "convergence_truth_seconds",
			Help: "Wall time of the last ground-truth phase.",
		}),
		distance: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "convergence_estimator_distance",
			Help: "Mean absolute distance from the ground truth at the last sample size.",
		}, []string{"estimator"}),
		totalTime: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "convergence_estimator_seconds",
			Help: "Mean wall time of one estimator run at the last sample size.",
		}, []string{"estimator"}),
		residentMem: f.NewGauge(prometheus.GaugeOpts{
			Name: "convergence_resident_memory_bytes",
			Help: "Resident set size after the last row.",
		}),
		logger:   logger,
		textfile: textfile,
	}
}

func (s *observerSink) WriteRow(row experiment.Row) error {
	s.rows.Inc()
	s.sampleSize.Set(float64(row.Size))
	s.truth.Set(row.Truth)
	s.truthTime.Set(row.TruthTime.Seconds())
	for _, e := range row.Results {
		s.distance.WithLabelValues(e.Name).Set(e.Distance)
		s.totalTime.WithLabelValues(e.Name).Set(e.Total / float64(time.Second))
	}
	rss := s.tracker.sample()
	s.residentMem.Set(rss)
	s.logger.Debug("row written", "size", row.Size, "rss_bytes", rss)
	return nil
}

func (s *observerSink) Close() error {
	s.logger.Info("sweep finished", "peak_rss_bytes", s.tracker.peak)
	if s.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.textfile, s.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
