package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"convergence_worker/internal/experiment"
)

const (
	defaultOutput   = "converge.dat"
	defaultRedisKey = "convergence:rows"
)

// settings is everything a sweep needs besides sink endpoints, which come
// from the environment.
type settings struct {
	experiment.Config `yaml:",inline"`

	Output      string `yaml:"output"`
	MetricsFile string `yaml:"metrics_file"`
	RedisKey    string `yaml:"redis_key"`
}

func defaultSettings() settings {
	return settings{
		Config:   experiment.DefaultConfig(),
		Output:   defaultOutput,
		RedisKey: defaultRedisKey,
	}
}

// loadSettingsFile overlays the YAML file at path onto s. Unknown keys are
// rejected.
func loadSettingsFile(path string, s *settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// bindSettingsFlags registers one flag per setting on cmd, defaulting to s.
func bindSettingsFlags(cmd *cobra.Command, s *settings) {
	f := cmd.Flags()
	f.IntVar(&s.PopulationSize, "population-size", s.PopulationSize, "number of base population values")
	f.IntVar(&s.Start, "start", s.Start, "first sample size of the sweep")
	f.IntVar(&s.End, "end", s.End, "sample size bound of the sweep (exclusive)")
	f.IntVar(&s.Step, "step", s.Step, "sample size increment")
	f.IntVar(&s.TruthTrials, "truth-trials", s.TruthTrials, "direct draws used for the ground truth")
	f.IntVar(&s.Smoothing, "smoothing", s.Smoothing, "estimator trials averaged per sample size")
	f.IntVar(&s.Replications, "replications", s.Replications, "bootstrap resamples (per bag for BLB)")
	f.Float64Var(&s.BagExponent, "bag-exponent", s.BagExponent, "BLB bag size exponent")
	f.Float64Var(&s.Shape, "shape", s.Shape, "gamma shape of the base population")
	f.Float64Var(&s.Scale, "scale", s.Scale, "gamma scale of the base population")
	f.Float64Var(&s.ThinProbability, "thin", s.ThinProbability, "Bernoulli thinning probability for the base population (0 disables)")
	f.Uint64Var(&s.Seed, "seed", s.Seed, "random seed (0 picks one from the clock)")
	f.StringVar(&s.Output, "output", s.Output, "CSV result file")
	f.StringVar(&s.MetricsFile, "metrics-file", s.MetricsFile, "write Prometheus metrics to this textfile after the sweep")
}

// resolveSettings merges defaults, the optional config file and explicitly
// set flags, in that order of increasing precedence. An empty path falls back
// to CONVERGENCE_CONFIG, which may come from a .env file.
func resolveSettings(cmd *cobra.Command, flagged settings, path string) (settings, error) {
	s := defaultSettings()
	if path == "" {
		path = os.Getenv("CONVERGENCE_CONFIG")
	}
	if path != "" {
		if err := loadSettingsFile(path, &s); err != nil {
			return settings{}, err
		}
	}
	if key := os.Getenv("CONVERGENCE_REDIS_KEY"); key != "" {
		s.RedisKey = key
	}

	f := cmd.Flags()
	overrides := []struct {
		name  string
		apply func()
	}{
		{"population-size", func() { s.PopulationSize = flagged.PopulationSize }},
		{"start", func() { s.Start = flagged.Start }},
		{"end", func() { s.End = flagged.End }},
		{"step", func() { s.Step = flagged.Step }},
		{"truth-trials", func() { s.TruthTrials = flagged.TruthTrials }},
		{"smoothing", func() { s.Smoothing = flagged.Smoothing }},
		{"replications", func() { s.Replications = flagged.Replications }},
		{"bag-exponent", func() { s.BagExponent = flagged.BagExponent }},
		{"shape", func() { s.Shape = flagged.Shape }},
		{"scale", func() { s.Scale = flagged.Scale }},
		{"thin", func() { s.ThinProbability = flagged.ThinProbability }},
		{"seed", func() { s.Seed = flagged.Seed }},
		{"output", func() { s.Output = flagged.Output }},
		{"metrics-file", func() { s.MetricsFile = flagged.MetricsFile }},
	}
	for _, o := range overrides {
		if f.Lookup(o.name) != nil && f.Changed(o.name) {
			o.apply()
		}
	}

	if s.Output == "" {
		return settings{}, errors.New("output path must not be empty")
	}
	if err := s.Validate(); err != nil {
		return settings{}, err
	}
	return s, nil
}
