package flux

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/leptonweighter/leptonweighter/lw"
)

// Grid is a tabulated flux before interpolation. Values[pt][i][j] is the flux of pt at
// CosZenith[i] and Log10Energy[j]. Both axes must be strictly increasing.
type Grid struct {
	Log10Energy []float64
	CosZenith   []float64
	Values      map[lw.ParticleType][][]float64
}

// Table interpolates a Grid linearly in log10 E along each zenith row and linearly in cos θ
// between rows. Energies outside the grid are an lw.ErrOutOfDomain error; cos θ outside
// the grid is clamped to the nearest edge row. Species absent from the grid have zero flux.
type Table struct {
	logE  []float64
	cosZ  []float64
	rows  map[lw.ParticleType][]interp.PiecewiseLinear
	scale float64
}

// log10Slack absorbs rounding in math.Log10 at the grid edges.
const log10Slack = 1e-9

// TableOption configures a Table.
type TableOption func(*Table)

// WithScale multiplies every tabulated value by s, e.g. to convert units or to reweight
// one component of a summed flux.
func WithScale(s float64) TableOption {
	return func(t *Table) {
		t.scale = s
	}
}

// NewTable validates g and fits one interpolant per (species, zenith row).
func NewTable(g Grid, opts ...TableOption) (*Table, error) {
	if err := validateAxis("log10 energy", g.Log10Energy); err != nil {
		return nil, err
	}
	if len(g.CosZenith) == 0 {
		return nil, fmt.Errorf("flux table: cos zenith axis is empty: %w", lw.ErrInvalidConfiguration)
	}
	if len(g.CosZenith) > 1 {
		if err := validateAxis("cos zenith", g.CosZenith); err != nil {
			return nil, err
		}
	}
	if floats.Min(g.CosZenith) < -1 || floats.Max(g.CosZenith) > 1 {
		return nil, fmt.Errorf("flux table: cos zenith axis outside [-1, 1]: %w", lw.ErrInvalidConfiguration)
	}
	if len(g.Values) == 0 {
		return nil, fmt.Errorf("flux table: no species tabulated: %w", lw.ErrInvalidConfiguration)
	}

	t := &Table{
		logE:  append([]float64(nil), g.Log10Energy...),
		cosZ:  append([]float64(nil), g.CosZenith...),
		rows:  make(map[lw.ParticleType][]interp.PiecewiseLinear, len(g.Values)),
		scale: 1,
	}
	for _, opt := range opts {
		opt(t)
	}
	if math.IsNaN(t.scale) || math.IsInf(t.scale, 0) || t.scale < 0 {
		return nil, fmt.Errorf("flux table: scale must be finite and non-negative, got %g: %w", t.scale, lw.ErrInvalidConfiguration)
	}

	for pt, values := range g.Values {
		if len(values) != len(g.CosZenith) {
			return nil, fmt.Errorf("flux table: %s has %d zenith rows, want %d: %w", pt, len(values), len(g.CosZenith), lw.ErrInvalidConfiguration)
		}
		rows := make([]interp.PiecewiseLinear, len(values))
		for i, row := range values {
			if len(row) != len(g.Log10Energy) {
				return nil, fmt.Errorf("flux table: %s row %d has %d energies, want %d: %w", pt, i, len(row), len(g.Log10Energy), lw.ErrInvalidConfiguration)
			}
			if floats.HasNaN(row) || floats.Min(row) < 0 || math.IsInf(floats.Max(row), 0) {
				return nil, fmt.Errorf("flux table: %s row %d holds negative or non-finite values: %w", pt, i, lw.ErrInvalidConfiguration)
			}
			if err := rows[i].Fit(t.logE, append([]float64(nil), row...)); err != nil {
				return nil, fmt.Errorf("flux table: %s row %d: %v: %w", pt, i, err, lw.ErrInvalidConfiguration)
			}
		}
		t.rows[pt] = rows
	}
	logrus.Debugf("flux table: %d species, %d energies in [%g, %g] log10 GeV, %d zenith rows",
		len(t.rows), len(t.logE), t.logE[0], t.logE[len(t.logE)-1], len(t.cosZ))
	return t, nil
}

func validateAxis(name string, axis []float64) error {
	if len(axis) < 2 {
		return fmt.Errorf("flux table: %s axis needs at least two points, got %d: %w", name, len(axis), lw.ErrInvalidConfiguration)
	}
	if floats.HasNaN(axis) {
		return fmt.Errorf("flux table: %s axis contains NaN: %w", name, lw.ErrInvalidConfiguration)
	}
	for i := 1; i < len(axis); i++ {
		if axis[i] <= axis[i-1] {
			return fmt.Errorf("flux table: %s axis not strictly increasing at index %d: %w", name, i, lw.ErrInvalidConfiguration)
		}
	}
	return nil
}

// Species lists the tabulated primaries in code order.
func (t *Table) Species() []lw.ParticleType {
	out := make([]lw.ParticleType, 0, len(t.rows))
	for pt := range t.rows {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Evaluate implements lw.FluxModel. Azimuth is ignored.
func (t *Table) Evaluate(primary lw.ParticleType, energy, zenith, _ float64) (float64, error) {
	rows, ok := t.rows[primary]
	if !ok {
		return 0, nil
	}
	if !(energy > 0) {
		return 0, fmt.Errorf("flux table: energy %g must be positive: %w", energy, lw.ErrOutOfDomain)
	}
	x := math.Log10(energy)
	lo, hi := t.logE[0], t.logE[len(t.logE)-1]
	if x < lo-log10Slack || x > hi+log10Slack {
		return 0, fmt.Errorf("flux table: energy %g GeV outside [%g, %g]: %w",
			energy, math.Pow(10, lo), math.Pow(10, hi), lw.ErrOutOfDomain)
	}
	x = math.Max(lo, math.Min(hi, x))

	c := math.Cos(zenith)
	n := len(t.cosZ)
	if n == 1 || c <= t.cosZ[0] {
		return t.scale * rows[0].Predict(x), nil
	}
	if c >= t.cosZ[n-1] {
		return t.scale * rows[n-1].Predict(x), nil
	}
	// cosZ[j-1] < c <= cosZ[j]
	j := sort.SearchFloat64s(t.cosZ, c)
	frac := (c - t.cosZ[j-1]) / (t.cosZ[j] - t.cosZ[j-1])
	v := (1-frac)*rows[j-1].Predict(x) + frac*rows[j].Predict(x)
	return t.scale * v, nil
}
