package flux

import (
	"fmt"
	"math"
	"sort"

	"github.com/leptonweighter/leptonweighter/lw"
	"github.com/leptonweighter/leptonweighter/lw/internal/tabular"
)

// Columns of a flux table CSV. Energy is in GeV; one row per (particle, energy, cos_zenith).
const (
	ColumnParticle  = "particle"
	ColumnEnergy    = "energy"
	ColumnCosZenith = "cos_zenith"
	ColumnFlux      = "flux"
)

type gridKey struct {
	pt   lw.ParticleType
	logE float64
	cosZ float64
}

// LoadTableCSV reads a long-format flux table and builds a Table. Every tabulated species
// must cover the full energy × cos θ grid.
func LoadTableCSV(path string, opts ...TableOption) (*Table, error) {
	g, err := ReadGridCSV(path)
	if err != nil {
		return nil, err
	}
	t, err := NewTable(*g, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ReadGridCSV reads a long-format flux table into a Grid without fitting it.
func ReadGridCSV(path string) (*Grid, error) {
	h, records, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flux table: %v: %w", err, lw.ErrInvalidConfiguration)
	}
	if err := h.Require(ColumnParticle, ColumnEnergy, ColumnCosZenith, ColumnFlux); err != nil {
		return nil, fmt.Errorf("flux table %s: %v: %w", path, err, lw.ErrInvalidConfiguration)
	}
	h.WarnUnknown(path, ColumnParticle, ColumnEnergy, ColumnCosZenith, ColumnFlux)

	cells := make(map[gridKey]float64, len(records))
	energies := make(map[float64]bool)
	cosines := make(map[float64]bool)
	for i, record := range records {
		line := i + 2
		name, _ := h.Field(record, ColumnParticle)
		pt, err := lw.ParseParticleType(name)
		if err != nil {
			return nil, fmt.Errorf("flux table %s row %d: %v: %w", path, line, err, lw.ErrInvalidConfiguration)
		}
		var e, c, f float64
		for _, col := range []struct {
			name string
			dst  *float64
		}{{ColumnEnergy, &e}, {ColumnCosZenith, &c}, {ColumnFlux, &f}} {
			v, err := h.Float(record, col.name, math.NaN())
			if err != nil {
				return nil, fmt.Errorf("flux table %s row %d: %v: %w", path, line, err, lw.ErrInvalidConfiguration)
			}
			*col.dst = v
		}
		if !(e > 0) {
			return nil, fmt.Errorf("flux table %s row %d: energy must be positive: %w", path, line, lw.ErrInvalidConfiguration)
		}
		if math.IsNaN(c) || math.IsNaN(f) {
			return nil, fmt.Errorf("flux table %s row %d: cos_zenith and flux are required: %w", path, line, lw.ErrInvalidConfiguration)
		}
		key := gridKey{pt: pt, logE: math.Log10(e), cosZ: c}
		if _, dup := cells[key]; dup {
			return nil, fmt.Errorf("flux table %s row %d: duplicate cell (%s, %g, %g): %w", path, line, pt, e, c, lw.ErrInvalidConfiguration)
		}
		cells[key] = f
		energies[key.logE] = true
		cosines[c] = true
	}

	g := &Grid{
		Log10Energy: sortedKeys(energies),
		CosZenith:   sortedKeys(cosines),
		Values:      make(map[lw.ParticleType][][]float64),
	}
	for key := range cells {
		if _, ok := g.Values[key.pt]; ok {
			continue
		}
		values := make([][]float64, len(g.CosZenith))
		for i, c := range g.CosZenith {
			values[i] = make([]float64, len(g.Log10Energy))
			for j, x := range g.Log10Energy {
				v, ok := cells[gridKey{pt: key.pt, logE: x, cosZ: c}]
				if !ok {
					return nil, fmt.Errorf("flux table %s: %s missing cell at energy %g, cos zenith %g: %w",
						path, key.pt, math.Pow(10, x), c, lw.ErrInvalidConfiguration)
				}
				values[i][j] = v
			}
		}
		g.Values[key.pt] = values
	}
	return g, nil
}

func sortedKeys(set map[float64]bool) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
