package experiment

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates an unusable experiment configuration.
var ErrInvalidConfig = errors.New("invalid experiment configuration")

// Config controls a convergence sweep.
type Config struct {
	// PopulationSize is the number of base population values generated once
	// at startup.
	PopulationSize int `yaml:"population_size" json:"population_size"`

	// Start, End and Step define the sample sizes [Start, End) visited.
	Start int `yaml:"start" json:"start"`
	End   int `yaml:"end" json:"end"`
	Step  int `yaml:"step" json:"step"`

	// TruthTrials is the number of direct draws used for ground truth.
	TruthTrials int `yaml:"truth_trials" json:"truth_trials"`

	// Smoothing is the number of estimator trials averaged per size.
	Smoothing int `yaml:"smoothing" json:"smoothing"`

	// Replications is the resample count of the bootstrap and of each BLB bag.
	Replications int `yaml:"replications" json:"replications"`

	// BagExponent is γ in bag size ceil(n^γ).
	BagExponent float64 `yaml:"bag_exponent" json:"bag_exponent"`

	// Shape and Scale parameterize the Gamma base population.
	Shape float64 `yaml:"shape" json:"shape"`
	Scale float64 `yaml:"scale" json:"scale"`

	// ThinProbability, when positive, thins the generated population with
	// Bernoulli(p) before the sweep. Zero disables thinning.
	ThinProbability float64 `yaml:"thin_probability" json:"thin_probability"`

	// Seed seeds the random source. Zero picks a time-based seed.
	Seed uint64 `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the configuration of the reference experiment.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 100000,
		Start:          200,
		End:            10000,
		Step:           10,
		TruthTrials:    2000,
		Smoothing:      100,
		Replications:   150,
		BagExponent:    0.5,
		Shape:          9,
		Scale:          0.8,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.PopulationSize < 1:
		return fmt.Errorf("%w: population_size must be positive", ErrInvalidConfig)
	case c.Start < 1:
		return fmt.Errorf("%w: start must be positive", ErrInvalidConfig)
	case c.End <= c.Start:
		return fmt.Errorf("%w: end must be greater than start", ErrInvalidConfig)
	case c.Step < 1:
		return fmt.Errorf("%w: step must be positive", ErrInvalidConfig)
	case c.TruthTrials < 2:
		return fmt.Errorf("%w: truth_trials must be at least 2", ErrInvalidConfig)
	case c.Smoothing < 1:
		return fmt.Errorf("%w: smoothing must be positive", ErrInvalidConfig)
	case c.Replications < 1:
		return fmt.Errorf("%w: replications must be positive", ErrInvalidConfig)
	case !(c.BagExponent > 0):
		return fmt.Errorf("%w: bag_exponent must be positive", ErrInvalidConfig)
	case !(c.Shape > 0):
		return fmt.Errorf("%w: shape must be positive", ErrInvalidConfig)
	case !(c.Scale > 0):
		return fmt.Errorf("%w: scale must be positive", ErrInvalidConfig)
	case !(c.ThinProbability >= 0 && c.ThinProbability <= 1):
		return fmt.Errorf("%w: thin_probability must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

// Sizes returns the sample sizes of the sweep in order.
func (c Config) Sizes() []int {
	if c.Step < 1 || c.End <= c.Start {
		return nil
	}
	sizes := make([]int, 0, (c.End-c.Start+c.Step-1)/c.Step)
	for s := c.Start; s < c.End; s += c.Step {
		sizes = append(sizes, s)
	}
	return sizes
}
