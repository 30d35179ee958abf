package lw

import (
	"fmt"
	"math"
)

// Weighter converts simulated events into physical rates. It combines every owned
// generator's density into one proposal density, so overlapping injection
// configurations share their phase space instead of double-counting it.
//
// A Weighter is immutable; Weight may be called from any number of goroutines.
type Weighter struct {
	fluxes     []FluxModel
	xs         CrossSectionModel
	generators []Generator
}

// NewWeighter assembles a Weighter. At least one flux and one generator are required.
func NewWeighter(fluxes []FluxModel, xs CrossSectionModel, generators []Generator) (*Weighter, error) {
	if len(fluxes) == 0 {
		return nil, fmt.Errorf("weighter: at least one flux model required: %w", ErrInvalidConfiguration)
	}
	for i, f := range fluxes {
		if f == nil {
			return nil, fmt.Errorf("weighter: flux[%d] is nil: %w", i, ErrInvalidConfiguration)
		}
	}
	if xs == nil {
		return nil, fmt.Errorf("weighter: cross section model required: %w", ErrInvalidConfiguration)
	}
	if len(generators) == 0 {
		return nil, fmt.Errorf("weighter: at least one generator required: %w", ErrInvalidConfiguration)
	}
	for i, g := range generators {
		if g == nil {
			return nil, fmt.Errorf("weighter: generator[%d] is nil: %w", i, ErrInvalidConfiguration)
		}
	}
	return &Weighter{
		fluxes:     append([]FluxModel(nil), fluxes...),
		xs:         xs,
		generators: append([]Generator(nil), generators...),
	}, nil
}

// NewOneWeighter assembles a Weighter with a unit flux, so Weight equals OneWeight.
func NewOneWeighter(xs CrossSectionModel, generators []Generator) (*Weighter, error) {
	return NewWeighter([]FluxModel{unitFlux}, xs, generators)
}

// NumGenerators returns how many injection configurations the Weighter combines.
func (w *Weighter) NumGenerators() int {
	return len(w.generators)
}

// TotalFlux sums the owned flux components at the event's primary and direction.
func (w *Weighter) TotalFlux(ev Event) (float64, error) {
	var total float64
	for i, f := range w.fluxes {
		v, err := f.Evaluate(ev.PrimaryType, ev.Energy, ev.Zenith, ev.Azimuth)
		if err != nil {
			return 0, fmt.Errorf("flux[%d]: %w", i, err)
		}
		total += v
	}
	return total, nil
}

// GenerationDensity sums the densities of all owned generators.
func (w *Weighter) GenerationDensity(ev Event) (float64, error) {
	var total float64
	for i, g := range w.generators {
		v, err := g.Density(ev)
		if err != nil {
			return 0, fmt.Errorf("generator[%d]: %w", i, err)
		}
		total += v
	}
	return total, nil
}

// Weight returns flux × cross section / combined generation density.
// It fails with ErrZeroSupport when no generator could have produced the event and
// with ErrNonFiniteWeight when the result is NaN, infinite or negative.
func (w *Weighter) Weight(ev Event) (float64, error) {
	weight, _, err := w.evaluate(ev)
	return weight, err
}

// OneWeight is the flux-independent part of the weight: cross section / generation density.
// Multiplying it by a flux value reproduces Weight for that flux.
func (w *Weighter) OneWeight(ev Event) (float64, error) {
	xs, density, err := w.proposal(ev)
	if err != nil {
		return 0, err
	}
	return checkWeight(1, xs, density)
}

// evaluate returns Weight and OneWeight with a single pass over the owned models.
func (w *Weighter) evaluate(ev Event) (weight, oneWeight float64, err error) {
	xs, density, err := w.proposal(ev)
	if err != nil {
		return 0, 0, err
	}
	if oneWeight, err = checkWeight(1, xs, density); err != nil {
		return 0, 0, err
	}
	flux, err := w.TotalFlux(ev)
	if err != nil {
		return 0, 0, err
	}
	if weight, err = checkWeight(flux, xs, density); err != nil {
		return 0, 0, err
	}
	return weight, oneWeight, nil
}

// proposal returns the cross section and the combined generation density, failing
// with ErrZeroSupport when the density vanishes.
func (w *Weighter) proposal(ev Event) (xs, density float64, err error) {
	density, err = w.GenerationDensity(ev)
	if err != nil {
		return 0, 0, err
	}
	if density == 0 {
		return 0, 0, fmt.Errorf("event %s E=%g GeV zenith=%g: %w", ev.PrimaryType, ev.Energy, ev.Zenith, ErrZeroSupport)
	}
	xs, err = w.xs.Evaluate(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("cross section: %w", err)
	}
	return xs, density, nil
}

func checkWeight(flux, xs, density float64) (float64, error) {
	weight := flux * xs / density
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight < 0 {
		return 0, fmt.Errorf("flux=%g xs=%g density=%g gives %g: %w", flux, xs, density, weight, ErrNonFiniteWeight)
	}
	return weight, nil
}
