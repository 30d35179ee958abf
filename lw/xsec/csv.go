package xsec

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/leptonweighter/leptonweighter/lw"
	"github.com/leptonweighter/leptonweighter/lw/internal/tabular"
)

// Columns of the cross-section CSV files. Energies in GeV, cross sections in cm².
const (
	ColumnEnergy = "energy"
	ColumnX      = "x"
	ColumnY      = "y"
	ColumnDiff   = "dsigma_dxdy"
	ColumnSigma  = "sigma"
)

// Paths names the CSV files of a tabulated model. The four surfaces are required; each
// total is optional.
type Paths struct {
	NuCC, NuBarCC, NuNC, NuBarNC                     string
	TotalNuCC, TotalNuBarCC, TotalNuNC, TotalNuBarNC string
}

// LoadTabulated reads every file named in p and assembles the model.
func LoadTabulated(p Paths, opts ...Option) (*Tabulated, error) {
	var ch Channels
	for _, f := range []struct {
		path string
		dst  *Surface
	}{{p.NuCC, &ch.NuCC}, {p.NuBarCC, &ch.NuBarCC}, {p.NuNC, &ch.NuNC}, {p.NuBarNC, &ch.NuBarNC}} {
		if f.path == "" {
			return nil, fmt.Errorf("cross section: all four surface files are required: %w", lw.ErrInvalidConfiguration)
		}
		g, err := LoadGridCSV(f.path)
		if err != nil {
			return nil, err
		}
		*f.dst = g
	}
	var totals Totals
	for _, f := range []struct {
		path string
		dst  **TotalCurve
	}{{p.TotalNuCC, &totals.NuCC}, {p.TotalNuBarCC, &totals.NuBarCC}, {p.TotalNuNC, &totals.NuNC}, {p.TotalNuBarNC, &totals.NuBarNC}} {
		if f.path == "" {
			continue
		}
		c, err := LoadTotalCSV(f.path)
		if err != nil {
			return nil, err
		}
		*f.dst = c
	}
	return NewTabulated(ch, append([]Option{WithTotals(totals)}, opts...)...)
}

type latticeKey struct{ e, x, y float64 }

// LoadGridCSV reads a long-format surface: one row per (energy, x, y) lattice node.
// A zero cross section is allowed and marks the node as below threshold.
func LoadGridCSV(path string) (*Grid, error) {
	h, records, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cross section: %v: %w", err, lw.ErrInvalidConfiguration)
	}
	if err := h.Require(ColumnEnergy, ColumnX, ColumnY, ColumnDiff); err != nil {
		return nil, fmt.Errorf("cross section %s: %v: %w", path, err, lw.ErrInvalidConfiguration)
	}
	h.WarnUnknown(path, ColumnEnergy, ColumnX, ColumnY, ColumnDiff)

	nodes := make(map[latticeKey]float64, len(records))
	es, xs, ys := map[float64]bool{}, map[float64]bool{}, map[float64]bool{}
	for i, record := range records {
		line := i + 2
		vals, err := parsePositive(h, record, ColumnEnergy, ColumnX, ColumnY)
		if err != nil {
			return nil, fmt.Errorf("cross section %s row %d: %v: %w", path, line, err, lw.ErrInvalidConfiguration)
		}
		diff, err := h.Float(record, ColumnDiff, math.NaN())
		if err != nil || !(diff >= 0) || math.IsInf(diff, 1) {
			return nil, fmt.Errorf("cross section %s row %d: dsigma_dxdy must be finite and non-negative: %w", path, line, lw.ErrInvalidConfiguration)
		}
		key := latticeKey{math.Log10(vals[0]), math.Log10(vals[1]), math.Log10(vals[2])}
		if _, dup := nodes[key]; dup {
			return nil, fmt.Errorf("cross section %s row %d: duplicate node: %w", path, line, lw.ErrInvalidConfiguration)
		}
		nodes[key] = math.Log10(diff)
		es[key.e], xs[key.x], ys[key.y] = true, true, true
	}

	logE, logX, logY := sortedKeys(es), sortedKeys(xs), sortedKeys(ys)
	values := make([][][]float64, len(logE))
	for i, e := range logE {
		values[i] = make([][]float64, len(logX))
		for j, x := range logX {
			values[i][j] = make([]float64, len(logY))
			for k, y := range logY {
				v, ok := nodes[latticeKey{e, x, y}]
				if !ok {
					return nil, fmt.Errorf("cross section %s: lattice node (E=%g, x=%g, y=%g) missing: %w",
						path, math.Pow(10, e), math.Pow(10, x), math.Pow(10, y), lw.ErrInvalidConfiguration)
				}
				values[i][j][k] = v
			}
		}
	}
	g, err := NewGrid(logE, logX, logY, values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logrus.Debugf("cross section %s: %d×%d×%d lattice", path, len(logE), len(logX), len(logY))
	return g, nil
}

// LoadTotalCSV reads a channel total curve with columns energy and sigma.
func LoadTotalCSV(path string) (*TotalCurve, error) {
	h, records, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cross section total: %v: %w", err, lw.ErrInvalidConfiguration)
	}
	if err := h.Require(ColumnEnergy, ColumnSigma); err != nil {
		return nil, fmt.Errorf("cross section total %s: %v: %w", path, err, lw.ErrInvalidConfiguration)
	}
	type point struct{ logE, logS float64 }
	points := make([]point, 0, len(records))
	for i, record := range records {
		vals, err := parsePositive(h, record, ColumnEnergy, ColumnSigma)
		if err != nil {
			return nil, fmt.Errorf("cross section total %s row %d: %v: %w", path, i+2, err, lw.ErrInvalidConfiguration)
		}
		points = append(points, point{math.Log10(vals[0]), math.Log10(vals[1])})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].logE < points[j].logE })
	logE := make([]float64, len(points))
	logS := make([]float64, len(points))
	for i, p := range points {
		logE[i], logS[i] = p.logE, p.logS
	}
	c, err := NewTotalCurve(logE, logS)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func parsePositive(h tabular.Header, record []string, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := h.Float(record, name, math.NaN())
		if err != nil {
			return nil, err
		}
		if !(v > 0) || math.IsInf(v, 1) {
			return nil, fmt.Errorf("%s must be finite and positive, got %g", name, v)
		}
		out[i] = v
	}
	return out, nil
}

func sortedKeys(set map[float64]bool) []float64 {
	out := make([]float64, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}
