// Package flux provides lw.FluxModel implementations: analytic power laws, constants and
// tables interpolated over (log10 E, cos θ).
package flux

import (
	"fmt"
	"math"

	"github.com/leptonweighter/leptonweighter/lw"
)

// DefaultEnergyScale is the pivot energy of a power law when none is given, in GeV.
const DefaultEnergyScale = 1e5

// Option configures an analytic flux.
type Option func(*species)

// WithSpecies restricts a flux to the listed primaries; others evaluate to 0.
// Without it the flux applies to every primary.
func WithSpecies(pts ...lw.ParticleType) Option {
	return func(s *species) {
		if *s == nil {
			*s = make(species, len(pts))
		}
		for _, pt := range pts {
			(*s)[pt] = true
		}
	}
}

type species map[lw.ParticleType]bool

func (s species) covers(pt lw.ParticleType) bool {
	return s == nil || s[pt]
}

// PowerLaw is C·(E/scale)^index, independent of direction.
type PowerLaw struct {
	normalization float64
	index         float64
	scale         float64
	species       species
}

// NewPowerLaw validates the parameters. scale <= 0 selects DefaultEnergyScale.
func NewPowerLaw(normalization, index, scale float64, opts ...Option) (*PowerLaw, error) {
	if math.IsNaN(normalization) || math.IsInf(normalization, 0) || normalization < 0 {
		return nil, fmt.Errorf("power law: normalization must be finite and non-negative, got %g: %w", normalization, lw.ErrInvalidConfiguration)
	}
	if math.IsNaN(index) || math.IsInf(index, 0) {
		return nil, fmt.Errorf("power law: index must be finite, got %g: %w", index, lw.ErrInvalidConfiguration)
	}
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("power law: energy scale must be finite, got %g: %w", scale, lw.ErrInvalidConfiguration)
	}
	if scale <= 0 {
		scale = DefaultEnergyScale
	}
	p := &PowerLaw{normalization: normalization, index: index, scale: scale}
	for _, opt := range opts {
		opt(&p.species)
	}
	return p, nil
}

// Evaluate implements lw.FluxModel.
func (p *PowerLaw) Evaluate(primary lw.ParticleType, energy, _, _ float64) (float64, error) {
	if !p.species.covers(primary) {
		return 0, nil
	}
	if energy <= 0 || math.IsNaN(energy) {
		return 0, fmt.Errorf("power law: energy %g must be positive: %w", energy, lw.ErrOutOfDomain)
	}
	return p.normalization * math.Pow(energy/p.scale, p.index), nil
}

func (p *PowerLaw) String() string {
	return fmt.Sprintf("%g·(E/%g)^%g", p.normalization, p.scale, p.index)
}

// Constant is an energy- and direction-independent flux.
type Constant struct {
	value   float64
	species species
}

// NewConstant validates value.
func NewConstant(value float64, opts ...Option) (*Constant, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return nil, fmt.Errorf("constant flux: value must be finite and non-negative, got %g: %w", value, lw.ErrInvalidConfiguration)
	}
	c := &Constant{value: value}
	for _, opt := range opts {
		opt(&c.species)
	}
	return c, nil
}

// Evaluate implements lw.FluxModel.
func (c *Constant) Evaluate(primary lw.ParticleType, _, _, _ float64) (float64, error) {
	if !c.species.covers(primary) {
		return 0, nil
	}
	return c.value, nil
}
