package xsec

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonweighter/leptonweighter/lw"
	"github.com/leptonweighter/leptonweighter/lw/internal/testutil"
)

func distinctChannels() Channels {
	return Channels{NuCC: Constant(1), NuBarCC: Constant(2), NuNC: Constant(3), NuBarNC: Constant(4)}
}

func TestTabulated_ChannelDispatch(t *testing.T) {
	m, err := NewTabulated(distinctChannels())
	require.NoError(t, err)

	tests := []struct {
		name      string
		primary   lw.ParticleType
		f0, f1    lw.ParticleType
		want      float64
		wantTotal float64
	}{
		{"nu CC", lw.NuMu, lw.MuMinus, lw.Hadrons, 1, 1},
		{"nu CC reversed", lw.NuE, lw.Hadrons, lw.EMinus, 1, 1},
		{"nubar CC", lw.NuMuBar, lw.MuPlus, lw.Hadrons, 2, 2},
		{"nu NC", lw.NuE, lw.NuE, lw.Hadrons, 3, 3},
		{"nubar NC", lw.NuTauBar, lw.NuTauBar, lw.Hadrons, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := lw.Event{PrimaryType: tt.primary, FinalState0: tt.f0, FinalState1: tt.f1, Energy: 1e3, InteractionX: 0.1, InteractionY: 0.2}
			got, err := m.Evaluate(ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			total, err := m.ChannelTotalCrossSection(ev)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestTabulated_UnsupportedCombinations(t *testing.T) {
	m, err := NewTabulated(distinctChannels())
	require.NoError(t, err)

	for _, ev := range []lw.Event{
		{PrimaryType: lw.NuMu, FinalState0: lw.MuPlus, FinalState1: lw.Hadrons},     // wrong charge
		{PrimaryType: lw.NuMu, FinalState0: lw.EMinus, FinalState1: lw.Hadrons},     // wrong flavor
		{PrimaryType: lw.NuEBar, FinalState0: lw.EMinus, FinalState1: lw.NuEBar},    // Glashow resonance
		{PrimaryType: lw.MuMinus, FinalState0: lw.MuMinus, FinalState1: lw.Hadrons}, // not a neutrino
	} {
		ev.Energy = 1e3
		_, err := m.Evaluate(ev)
		assert.ErrorIs(t, err, lw.ErrUnsupportedParticleType, "%s → %s + %s", ev.PrimaryType, ev.FinalState0, ev.FinalState1)
	}
}

func TestTabulated_TotalCrossSectionSumsCCAndNC(t *testing.T) {
	m, err := NewTabulated(distinctChannels())
	require.NoError(t, err)

	nu, err := m.TotalCrossSection(lw.NuTau, 1e4)
	require.NoError(t, err)
	assert.Equal(t, 4.0, nu)

	nubar, err := m.TotalCrossSection(lw.NuEBar, 1e4)
	require.NoError(t, err)
	assert.Equal(t, 6.0, nubar)

	_, err = m.TotalCrossSection(lw.Hadrons, 1e4)
	assert.ErrorIs(t, err, lw.ErrUnsupportedParticleType)
}

func TestTabulated_ValidityFloor(t *testing.T) {
	m, err := NewConstant(1e-34, WithValidityFloor(10))
	require.NoError(t, err)

	ev := lw.Event{PrimaryType: lw.NuMu, FinalState0: lw.MuMinus, FinalState1: lw.Hadrons, Energy: 5}
	_, err = m.Evaluate(ev)
	assert.ErrorIs(t, err, lw.ErrOutOfDomain)
	_, err = m.TotalCrossSection(lw.NuMu, 5)
	assert.ErrorIs(t, err, lw.ErrOutOfDomain)

	ev.Energy = 10
	v, err := m.Evaluate(ev)
	require.NoError(t, err)
	assert.Equal(t, 1e-34, v)
}

func TestNewTabulated_MissingSurface(t *testing.T) {
	ch := distinctChannels()
	ch.NuBarNC = nil
	_, err := NewTabulated(ch)
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)

	_, err = NewConstant(-1)
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)
}

// planeGrid tabulates log10 σ = -38 + le + 0.5·lx - 0.25·ly, which trilinear
// interpolation reproduces exactly.
func planeGrid(t *testing.T) *Grid {
	t.Helper()
	logE := []float64{1, 2, 3}
	logX := []float64{-3, -2, -1, 0}
	logY := []float64{-2, -1, 0}
	values := make([][][]float64, len(logE))
	for i, le := range logE {
		values[i] = make([][]float64, len(logX))
		for j, lx := range logX {
			values[i][j] = make([]float64, len(logY))
			for k, ly := range logY {
				values[i][j][k] = -38 + le + 0.5*lx - 0.25*ly
			}
		}
	}
	g, err := NewGrid(logE, logX, logY, values)
	require.NoError(t, err)
	return g
}

func TestGrid_TrilinearInLogSpace(t *testing.T) {
	g := planeGrid(t)
	e, x, y := math.Pow(10, 1.7), math.Pow(10, -2.3), math.Pow(10, -0.6)
	want := math.Pow(10, -38+1.7+0.5*-2.3-0.25*-0.6)
	testutil.AssertFloat64Equal(t, "dσ/dxdy", want, g.Evaluate(e, x, y), 1e-9)
}

func TestGrid_OffLatticeIsZero(t *testing.T) {
	g := planeGrid(t)
	assert.Zero(t, g.Evaluate(5, 0.1, 0.1), "energy below lattice")
	assert.Zero(t, g.Evaluate(1e4, 0.1, 0.1), "energy above lattice")
	assert.Zero(t, g.Evaluate(100, 1e-4, 0.1), "x below lattice")
	assert.Zero(t, g.Evaluate(100, 0.1, 0), "y zero")
	assert.Positive(t, g.Evaluate(1000, 1, 1), "upper corner")
}

func TestGrid_BelowThresholdNodesGiveZero(t *testing.T) {
	logE := []float64{1, 2}
	logX := []float64{-1, 0}
	logY := []float64{-1, 0}
	floor := math.Inf(-1)
	values := [][][]float64{
		{{floor, floor}, {floor, floor}},
		{{-36, -36}, {-36, -36}},
	}
	g, err := NewGrid(logE, logX, logY, values)
	require.NoError(t, err)

	m, err := NewTabulated(Channels{NuCC: g, NuBarCC: g, NuNC: g, NuBarNC: g})
	require.NoError(t, err)
	ev := lw.Event{PrimaryType: lw.NuMu, FinalState0: lw.MuMinus, FinalState1: lw.Hadrons,
		Energy: math.Pow(10, 1.5), InteractionX: 0.5, InteractionY: 0.5}
	v, err := m.Evaluate(ev)
	require.NoError(t, err)
	assert.Zero(t, v)

	ev.Energy = 100
	v, err = m.Evaluate(ev)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "above threshold", 1e-36, v, 1e-9)
}

func TestGrid_IntegrateConstantSurface(t *testing.T) {
	logE := []float64{1, 2}
	logX := []float64{-3, -2, -1, 0}
	logY := []float64{-3, -2, -1, 0}
	values := make([][][]float64, 2)
	for i := range values {
		values[i] = make([][]float64, 4)
		for j := range values[i] {
			values[i][j] = []float64{-35, -35, -35, -35}
		}
	}
	g, err := NewGrid(logE, logX, logY, values)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "σ", 1e-35*0.999*0.999, g.Integrate(50), 1e-9)
	assert.Zero(t, g.Integrate(1e3))
}

func TestNewGrid_Invalid(t *testing.T) {
	_, err := NewGrid([]float64{1}, []float64{-1, 0}, []float64{-1, 0}, nil)
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)
	_, err = NewGrid([]float64{1, 2}, []float64{-1, 0.5}, []float64{-1, 0}, nil)
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)
	_, err = NewGrid([]float64{1, 2}, []float64{-1, 0}, []float64{-1, 0}, [][][]float64{{{1, 1}, {1, 1}}})
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)
}

func TestTotalCurve(t *testing.T) {
	c, err := NewTotalCurve([]float64{1, 3}, []float64{-38, -36})
	require.NoError(t, err)
	v, err := c.Evaluate(100)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "σ(100)", 1e-37, v, 1e-9)
	_, err = c.Evaluate(1e4)
	assert.ErrorIs(t, err, lw.ErrOutOfDomain)
}

func TestTabulated_TotalsOverrideIntegration(t *testing.T) {
	c, err := NewTotalCurve([]float64{1, 3}, []float64{-38, -36})
	require.NoError(t, err)
	m, err := NewTabulated(distinctChannels(), WithTotals(Totals{NuCC: c}))
	require.NoError(t, err)

	total, err := m.TotalCrossSection(lw.NuMu, 100)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "CC curve + NC constant", 1e-37+3, total, 1e-12)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func latticeCSV(value float64) string {
	var b strings.Builder
	b.WriteString("energy,x,y,dsigma_dxdy\n")
	for _, e := range []string{"10", "1000"} {
		for _, x := range []string{"0.01", "1"} {
			for _, y := range []string{"0.01", "1"} {
				fmt.Fprintf(&b, "%s,%s,%s,%g\n", e, x, y, value)
			}
		}
	}
	return b.String()
}

func TestLoadTabulated(t *testing.T) {
	dir := t.TempDir()
	p := Paths{
		NuCC:      writeFile(t, dir, "nu_cc.csv", latticeCSV(1e-36)),
		NuBarCC:   writeFile(t, dir, "nubar_cc.csv", latticeCSV(2e-36)),
		NuNC:      writeFile(t, dir, "nu_nc.csv", latticeCSV(3e-36)),
		NuBarNC:   writeFile(t, dir, "nubar_nc.csv", latticeCSV(4e-36)),
		TotalNuCC: writeFile(t, dir, "nu_cc_total.csv", "energy,sigma\n1000,1e-35\n10,1e-37\n"),
	}
	m, err := LoadTabulated(p)
	require.NoError(t, err)

	ev := lw.Event{PrimaryType: lw.NuMuBar, FinalState0: lw.NuMuBar, FinalState1: lw.Hadrons,
		Energy: 100, InteractionX: 0.1, InteractionY: 0.1}
	v, err := m.Evaluate(ev)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "nubar NC", 4e-36, v, 1e-9)

	ev = lw.Event{PrimaryType: lw.NuMu, FinalState0: lw.MuMinus, FinalState1: lw.Hadrons, Energy: 100}
	total, err := m.ChannelTotalCrossSection(ev)
	require.NoError(t, err)
	testutil.AssertFloat64Equal(t, "nu CC total", 1e-36, total, 1e-9)
}

func TestLoadGridCSV_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"missing column", "energy,x,dsigma_dxdy\n10,0.1,1\n"},
		{"negative value", "energy,x,y,dsigma_dxdy\n10,0.1,0.1,-1\n"},
		{"missing node", "energy,x,y,dsigma_dxdy\n10,0.1,0.1,1\n100,0.1,0.1,1\n10,1,0.1,1\n"},
		{"zero energy", "energy,x,y,dsigma_dxdy\n0,0.1,0.1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadGridCSV(writeFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".csv", tt.content))
			assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)
		})
	}

	_, err := LoadTabulated(Paths{NuCC: "a.csv"})
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)
}
