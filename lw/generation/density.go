package generation

import (
	"fmt"
	"math"

	"github.com/leptonweighter/leptonweighter/lw"
)

// powerLawDensity is the normalized energy density dN/dE ∝ E^index over [min, max].
type powerLawDensity struct {
	min, max float64
	index    float64
	norm     float64
}

func newPowerLawDensity(min, max, index float64) (powerLawDensity, error) {
	if err := validateFinitePositive("energy.min", min); err != nil {
		return powerLawDensity{}, err
	}
	if err := validateFinitePositive("energy.max", max); err != nil {
		return powerLawDensity{}, err
	}
	if max <= min {
		return powerLawDensity{}, fmt.Errorf("energy range [%g, %g] is empty: %w", min, max, lw.ErrInvalidConfiguration)
	}
	if math.IsNaN(index) || math.IsInf(index, 0) {
		return powerLawDensity{}, fmt.Errorf("energy.spectral_index must be a finite number, got %f: %w", index, lw.ErrInvalidConfiguration)
	}
	var norm float64
	if index == -1 {
		norm = 1 / math.Log(max/min)
	} else {
		g := index + 1
		norm = g / (math.Pow(max, g) - math.Pow(min, g))
	}
	return powerLawDensity{min: min, max: max, index: index, norm: norm}, nil
}

// density returns the probability per GeV of drawing energy e; 0 outside [min, max].
func (p powerLawDensity) density(e float64) float64 {
	if e < p.min || e > p.max {
		return 0
	}
	return p.norm * math.Pow(e, p.index)
}

// solidAngleDensity is the uniform density over a zenith/azimuth window, per steradian.
type solidAngleDensity struct {
	zenithMin, zenithMax   float64
	azimuthMin, azimuthMax float64
	inv                    float64
}

func newSolidAngleDensity(zenithMin, zenithMax, azimuthMin, azimuthMax float64) (solidAngleDensity, error) {
	bounds := []struct {
		name string
		val  float64
	}{
		{"zenith.min", zenithMin}, {"zenith.max", zenithMax},
		{"azimuth.min", azimuthMin}, {"azimuth.max", azimuthMax},
	}
	for _, b := range bounds {
		if math.IsNaN(b.val) || math.IsInf(b.val, 0) {
			return solidAngleDensity{}, fmt.Errorf("%s must be a finite number, got %f: %w", b.name, b.val, lw.ErrInvalidConfiguration)
		}
	}
	if zenithMin < 0 || zenithMax > math.Pi+angleSlack {
		return solidAngleDensity{}, fmt.Errorf("zenith range [%g, %g] outside [0, π]: %w", zenithMin, zenithMax, lw.ErrInvalidConfiguration)
	}
	if zenithMax <= zenithMin {
		return solidAngleDensity{}, fmt.Errorf("zenith range [%g, %g] is empty: %w", zenithMin, zenithMax, lw.ErrInvalidConfiguration)
	}
	if azimuthMax <= azimuthMin {
		return solidAngleDensity{}, fmt.Errorf("azimuth range [%g, %g] is empty: %w", azimuthMin, azimuthMax, lw.ErrInvalidConfiguration)
	}
	if azimuthMax-azimuthMin > 2*math.Pi+angleSlack {
		return solidAngleDensity{}, fmt.Errorf("azimuth range [%g, %g] wider than 2π: %w", azimuthMin, azimuthMax, lw.ErrInvalidConfiguration)
	}
	omega := (azimuthMax - azimuthMin) * (math.Cos(zenithMin) - math.Cos(zenithMax))
	return solidAngleDensity{
		zenithMin: zenithMin, zenithMax: zenithMax,
		azimuthMin: azimuthMin, azimuthMax: azimuthMax,
		inv: 1 / omega,
	}, nil
}

func (s solidAngleDensity) density(zenith, azimuth float64) float64 {
	if zenith < s.zenithMin || zenith > s.zenithMax {
		return 0
	}
	if azimuth < s.azimuthMin || azimuth > s.azimuthMax {
		return 0
	}
	return s.inv
}

// angleSlack absorbs the rounding of π and 2π written as decimals in configuration files.
const angleSlack = 1e-6

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f: %w", name, val, lw.ErrInvalidConfiguration)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f: %w", name, val, lw.ErrInvalidConfiguration)
	}
	return nil
}
