package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"convergence_worker/internal/experiment"
	"convergence_worker/internal/population"
	"convergence_worker/internal/resample"
)

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// multiSink fans rows out to every sink in order and stops at the first
// failure.
type multiSink []experiment.Sink

func (m multiSink) WriteRow(row experiment.Row) error {
	for _, s := range m {
		if err := s.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func resolveSeed(seed uint64) uint64 {
	if seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

// buildPopulation generates the base population and applies optional
// thinning.
func buildPopulation(cfg experiment.Config, rng *rand.Rand) ([]float64, error) {
	gen := population.Gamma{Shape: cfg.Shape, Scale: cfg.Scale, Src: rng}
	values, err := gen.Generate(cfg.PopulationSize)
	if err != nil {
		return nil, err
	}
	if cfg.ThinProbability > 0 {
		values, err = population.Thin(cfg.ThinProbability, values, rng)
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: thinning left an empty population", population.ErrInvalidParameter)
		}
	}
	return values, nil
}

func logSummary(logger *slog.Logger, msg string, s population.Summary) {
	logger.Info(msg,
		"count", s.Count,
		"min", s.Min,
		"q1", s.Q1,
		"median", s.Median,
		"mean", s.Mean,
		"q3", s.Q3,
		"max", s.Max,
		"stddev", s.StdDev,
	)
}

// openSinks opens the CSV result file plus any sink configured through the
// environment. The observer sink always comes last so that metrics reflect
// rows that were already persisted.
func openSinks(s settings, header []string, runID uuid.UUID, logger *slog.Logger) (multiSink, error) {
	var sinks multiSink
	fail := func(err error) (multiSink, error) {
		sinks.Close()
		return nil, err
	}

	csvOut, err := createCSVSink(s.Output, header)
	if err != nil {
		return fail(err)
	}
	sinks = append(sinks, csvOut)

	if dsn, ok := postgresDSNFromEnv(); ok {
		pg, err := openPostgresSink(dsn, runID, s.Config)
		if err != nil {
			return fail(err)
		}
		logger.Info("postgres sink enabled")
		sinks = append(sinks, pg)
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		rs, err := dialRedisSink(redisURL, s.RedisKey, runID)
		if err != nil {
			return fail(err)
		}
		logger.Info("redis sink enabled", "key", s.RedisKey)
		sinks = append(sinks, rs)
	}

	sinks = append(sinks, newObserverSink(logger, s.MetricsFile))
	return sinks, nil
}

// runSweep executes one full convergence experiment.
func runSweep(s settings, logger *slog.Logger) (err error) {
	runID := uuid.New()
	seed := resolveSeed(s.Seed)
	logger = logger.With("run_id", runID.String())
	logger.Info("starting sweep",
		"seed", seed,
		"sizes", len(s.Sizes()),
		"population_size", s.PopulationSize,
		"output", s.Output,
	)

	rng := resample.New(seed)
	values, err := buildPopulation(s.Config, rng)
	if err != nil {
		return fmt.Errorf("generate population: %w", err)
	}
	logSummary(logger, "base population", population.Summarize(values))

	runner, err := experiment.NewRunner(s.Config, values, rng, experiment.WithLogger(logger))
	if err != nil {
		return err
	}

	sinks, err := openSinks(s, runner.Header(), runID, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sinks.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	start := time.Now()
	if err := runner.Run(sinks); err != nil {
		return err
	}
	logger.Info("sweep complete", "elapsed", time.Since(start))
	return nil
}
