// Package population generates the fixed base population that samples are
// drawn from.
package population

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidParameter indicates distribution parameters that cannot produce
// a population.
var ErrInvalidParameter = errors.New("population: invalid parameter")

// Generator produces a base population of the requested size.
type Generator interface {
	Generate(size int) ([]float64, error)
}

// Gamma generates Gamma(Shape, Scale) distributed values.
type Gamma struct {
	Shape float64
	Scale float64
	Src   rand.Source
}

func (g Gamma) validate() error {
	if !(g.Shape > 0) || math.IsInf(g.Shape, 0) {
		return fmt.Errorf("%w: gamma shape %v", ErrInvalidParameter, g.Shape)
	}
	if !(g.Scale > 0) || math.IsInf(g.Scale, 0) {
		return fmt.Errorf("%w: gamma scale %v", ErrInvalidParameter, g.Scale)
	}
	return nil
}

// Generate draws size values.
func (g Gamma) Generate(size int) ([]float64, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: population size %d", ErrInvalidParameter, size)
	}
	dist := distuv.Gamma{Alpha: g.Shape, Beta: 1 / g.Scale, Src: g.Src}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out, nil
}

// Mean returns shape*scale.
func (g Gamma) Mean() float64 {
	return g.Shape * g.Scale
}

// Variance returns shape*scale².
func (g Gamma) Variance() float64 {
	return g.Shape * g.Scale * g.Scale
}

// Thin keeps each value independently with probability p.
func Thin(p float64, values []float64, src rand.Source) ([]float64, error) {
	if !(p >= 0 && p <= 1) {
		return nil, fmt.Errorf("%w: thinning probability %v", ErrInvalidParameter, p)
	}
	coin := distuv.Bernoulli{P: p, Src: src}
	kept := make([]float64, 0, int(float64(len(values))*p)+1)
	for _, v := range values {
		if coin.Rand() == 1 {
			kept = append(kept, v)
		}
	}
	return kept, nil
}
