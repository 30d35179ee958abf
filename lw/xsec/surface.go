package xsec

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/interp"

	"github.com/leptonweighter/leptonweighter/lw"
)

// Surface is one channel's double-differential cross section dσ/dxdy in cm².
// Evaluate returns 0 outside the surface's kinematic domain. Integrate returns the
// channel total σ(E) by integrating over x and y.
type Surface interface {
	Evaluate(energy, x, y float64) float64
	Integrate(energy float64) float64
}

// Constant is a flat surface returning the same value everywhere. Its x, y domain is the
// unit square, so Integrate returns the value itself.
type Constant float64

func (c Constant) Evaluate(_, _, _ float64) float64 { return float64(c) }

func (c Constant) Integrate(float64) float64 { return float64(c) }

// Grid is a surface tabulated as log10(dσ/dxdy) on a regular (log10 E, log10 x, log10 y)
// lattice and interpolated trilinearly in that log space. Points off the lattice evaluate to
// 0, as do cells touching a -Inf (zero cross section) node.
type Grid struct {
	logE, logX, logY []float64
	// values[i][j][k] at logE[i], logX[j], logY[k]
	values [][][]float64
}

// NewGrid validates the axes and log10 values. values is indexed [energy][x][y].
func NewGrid(log10Energy, log10X, log10Y []float64, values [][][]float64) (*Grid, error) {
	for _, ax := range []struct {
		name string
		vals []float64
	}{{"log10 energy", log10Energy}, {"log10 x", log10X}, {"log10 y", log10Y}} {
		if err := validateAxis(ax.name, ax.vals); err != nil {
			return nil, err
		}
	}
	if floats.Max(log10X) > 0 || floats.Max(log10Y) > 0 {
		return nil, fmt.Errorf("cross section grid: x and y must not exceed 1: %w", lw.ErrInvalidConfiguration)
	}
	if len(values) != len(log10Energy) {
		return nil, fmt.Errorf("cross section grid: %d energy slices, want %d: %w", len(values), len(log10Energy), lw.ErrInvalidConfiguration)
	}
	g := &Grid{
		logE:   append([]float64(nil), log10Energy...),
		logX:   append([]float64(nil), log10X...),
		logY:   append([]float64(nil), log10Y...),
		values: make([][][]float64, len(values)),
	}
	for i, slice := range values {
		if len(slice) != len(log10X) {
			return nil, fmt.Errorf("cross section grid: energy slice %d has %d x rows, want %d: %w", i, len(slice), len(log10X), lw.ErrInvalidConfiguration)
		}
		g.values[i] = make([][]float64, len(slice))
		for j, row := range slice {
			if len(row) != len(log10Y) {
				return nil, fmt.Errorf("cross section grid: cell (%d, %d) has %d y values, want %d: %w", i, j, len(row), len(log10Y), lw.ErrInvalidConfiguration)
			}
			for k, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 1) {
					return nil, fmt.Errorf("cross section grid: value at (%d, %d, %d) is %g: %w", i, j, k, v, lw.ErrInvalidConfiguration)
				}
			}
			g.values[i][j] = append([]float64(nil), row...)
		}
	}
	return g, nil
}

// EnergyRange returns the tabulated energy span in GeV.
func (g *Grid) EnergyRange() (min, max float64) {
	return math.Pow(10, g.logE[0]), math.Pow(10, g.logE[len(g.logE)-1])
}

// Evaluate implements Surface.
func (g *Grid) Evaluate(energy, x, y float64) float64 {
	if !(energy > 0 && x > 0 && y > 0) {
		return 0
	}
	le, lx, ly := math.Log10(energy), math.Log10(x), math.Log10(y)
	i, fe, ok := locate(g.logE, le)
	if !ok {
		return 0
	}
	j, fx, ok := locate(g.logX, lx)
	if !ok {
		return 0
	}
	k, fy, ok := locate(g.logY, ly)
	if !ok {
		return 0
	}
	return g.interpolate(i, fe, j, fx, k, fy)
}

func (g *Grid) interpolate(i int, fe float64, j int, fx float64, k int, fy float64) float64 {
	var acc float64
	for di := 0; di < 2; di++ {
		we := weight(fe, di)
		if we == 0 {
			continue
		}
		for dj := 0; dj < 2; dj++ {
			wx := weight(fx, dj)
			if wx == 0 {
				continue
			}
			for dk := 0; dk < 2; dk++ {
				wy := weight(fy, dk)
				if wy == 0 {
					continue
				}
				v := g.values[i+di][j+dj][k+dk]
				if math.IsInf(v, -1) {
					return 0
				}
				acc += we * wx * wy * v
			}
		}
	}
	return math.Pow(10, acc)
}

// logSlack absorbs rounding in math.Log10 at lattice edges.
const logSlack = 1e-9

func weight(frac float64, upper int) float64 {
	if upper == 1 {
		return frac
	}
	return 1 - frac
}

// locate finds the cell [axis[i], axis[i+1]] holding v and the fractional position within
// it. ok is false when v lies off the axis.
func locate(axis []float64, v float64) (i int, frac float64, ok bool) {
	n := len(axis)
	if math.IsNaN(v) || v < axis[0]-logSlack || v > axis[n-1]+logSlack {
		return 0, 0, false
	}
	v = math.Max(axis[0], math.Min(axis[n-1], v))
	i = sort.SearchFloat64s(axis, v) - 1
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	return i, (v - axis[i]) / (axis[i+1] - axis[i]), true
}

// Integrate implements Surface with the trapezoidal rule over the lattice's x and y
// nodes, in linear x and y.
func (g *Grid) Integrate(energy float64) float64 {
	if !(energy > 0) {
		return 0
	}
	i, fe, ok := locate(g.logE, math.Log10(energy))
	if !ok {
		return 0
	}
	xs := make([]float64, len(g.logX))
	for j, lx := range g.logX {
		xs[j] = math.Pow(10, lx)
	}
	ys := make([]float64, len(g.logY))
	for k, ly := range g.logY {
		ys[k] = math.Pow(10, ly)
	}
	overY := make([]float64, len(ys))
	alongX := make([]float64, len(xs))
	for j := range xs {
		for k := range ys {
			overY[k] = g.interpolate(i, fe, j, 0, k, 0)
		}
		alongX[j] = integrate.Trapezoidal(ys, overY)
	}
	return integrate.Trapezoidal(xs, alongX)
}

// TotalCurve is a channel total σ(E) tabulated as log10 σ against log10 E and interpolated
// piecewise linearly.
type TotalCurve struct {
	logE []float64
	pl   interp.PiecewiseLinear
}

// NewTotalCurve fits log10 σ (cm²) against log10 E (GeV).
func NewTotalCurve(log10Energy, log10Sigma []float64) (*TotalCurve, error) {
	if err := validateAxis("total log10 energy", log10Energy); err != nil {
		return nil, err
	}
	if len(log10Sigma) != len(log10Energy) {
		return nil, fmt.Errorf("cross section total: %d values for %d energies: %w", len(log10Sigma), len(log10Energy), lw.ErrInvalidConfiguration)
	}
	if floats.HasNaN(log10Sigma) || math.IsInf(floats.Max(log10Sigma), 0) || math.IsInf(floats.Min(log10Sigma), 0) {
		return nil, fmt.Errorf("cross section total: values must be finite: %w", lw.ErrInvalidConfiguration)
	}
	c := &TotalCurve{logE: append([]float64(nil), log10Energy...)}
	if err := c.pl.Fit(c.logE, append([]float64(nil), log10Sigma...)); err != nil {
		return nil, fmt.Errorf("cross section total: %v: %w", err, lw.ErrInvalidConfiguration)
	}
	return c, nil
}

// Evaluate returns σ(E); energies off the curve are lw.ErrOutOfDomain.
func (c *TotalCurve) Evaluate(energy float64) (float64, error) {
	if !(energy > 0) {
		return 0, fmt.Errorf("cross section total: energy %g must be positive: %w", energy, lw.ErrOutOfDomain)
	}
	lo, hi := c.logE[0], c.logE[len(c.logE)-1]
	le := math.Log10(energy)
	if le < lo-logSlack || le > hi+logSlack {
		return 0, fmt.Errorf("cross section total: energy %g GeV off the tabulated curve: %w", energy, lw.ErrOutOfDomain)
	}
	return math.Pow(10, c.pl.Predict(math.Max(lo, math.Min(hi, le)))), nil
}

func validateAxis(name string, axis []float64) error {
	if len(axis) < 2 {
		return fmt.Errorf("cross section: %s axis needs at least two points, got %d: %w", name, len(axis), lw.ErrInvalidConfiguration)
	}
	for i, v := range axis {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("cross section: %s axis value %d is %g: %w", name, i, v, lw.ErrInvalidConfiguration)
		}
		if i > 0 && v <= axis[i-1] {
			return fmt.Errorf("cross section: %s axis not strictly increasing at index %d: %w", name, i, lw.ErrInvalidConfiguration)
		}
	}
	return nil
}
