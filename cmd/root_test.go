package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonweighter/leptonweighter/lw"
	"github.com/leptonweighter/leptonweighter/lw/eventio"
	"github.com/leptonweighter/leptonweighter/lw/store"
)

const testDescription = `
generators:
  - name: numu-cc
    geometry: ranged
    events: 1000
    final_state: [MuMinus, Hadrons]
    energy: {min: 100, max: 1000000, spectral_index: -2}
    ranged: {injection_radius: 800, endcap_length: 600}
  - name: contained
    geometry: volume
    events: 500
    final_state: [MuMinus, Hadrons]
    energy: {min: 1000, max: 100000, spectral_index: -1}
    zenith: {min: 0, max: 1.5}
    volume: {cylinder_radius: 600, cylinder_height: 1000}
`

const testEvents = `initialType,finalType1,finalType2,totalEnergy,zenith,azimuth,radius,x,y,z
NuMu,MuMinus,Hadrons,5000,1.0,0.5,100,10,10,0
NuMu,MuMinus,Hadrons,50,1.0,0.5,100,10,10,0
NuMu,MuMinus,Hadrons,500,2.5,0.5,100,10,10,0
`

func testProfile(t *testing.T) *Profile {
	t.Helper()
	dir := t.TempDir()
	p := NewProfile()
	p.Description = writeFile(t, dir, "gen.yaml", testDescription)
	p.Events = writeFile(t, dir, "events.csv", testEvents)
	p.XSec.Constant = 1e-35
	p.Fluxes = []FluxProfile{{Type: FluxPowerLaw, Normalization: 1e-18, Index: -2, Scale: 1e5}}
	p.Workers = 2
	return p
}

func TestRunWeight_WritesEverySink(t *testing.T) {
	// GIVEN a profile with CSV, SQLite and metrics sinks
	p := testProfile(t)
	dir := t.TempDir()
	p.Output = filepath.Join(dir, "weights.csv")
	p.DB = filepath.Join(dir, "runs.db")
	p.MetricsFile = filepath.Join(dir, "lw.prom")

	// WHEN the run executes
	summary, err := runWeight(context.Background(), p)
	require.NoError(t, err)

	// THEN the below-range event fails and the others are weighted
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Weighted)
	assert.Equal(t, map[string]int{"zero_support": 1}, summary.FailedByKind)

	out, err := os.ReadFile(p.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "index,weight,oneweight,error", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "1,,,event NuMu E=50 GeV"), lines[2])
	assert.True(t, strings.HasSuffix(lines[2], "zero generation support"), lines[2])

	s, err := store.Open(p.DB)
	require.NoError(t, err)
	defer s.Close()
	stored := storedRuns(t, s, p.DB)
	require.Len(t, stored, 3)
	assert.Equal(t, "zero_support", stored[1].ErrorKind)

	prom, err := os.ReadFile(p.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "leptonweighter_events_weighted_total 2")
}

// storedRuns returns the per-event rows of the single run recorded in the database.
func storedRuns(t *testing.T, s *store.Store, path string) []store.StoredResult {
	t.Helper()
	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1, path)
	assert.Equal(t, 3, runs[0].Events)
	assert.False(t, runs[0].FinishedAt.IsZero())
	rows, err := s.RunWeights(context.Background(), runs[0].ID)
	require.NoError(t, err)
	return rows
}

func TestRunWeight_OverlappingGeneratorsMatchDirectWeighting(t *testing.T) {
	p := testProfile(t)
	w, err := buildWeighter(p)
	require.NoError(t, err)
	assert.Equal(t, 2, w.NumGenerators())

	events, err := eventio.ReadFile(p.Events)
	require.NoError(t, err)
	summary, err := runWeight(context.Background(), p)
	require.NoError(t, err)

	want, err := w.Weight(events[0])
	require.NoError(t, err)
	want2, err := w.Weight(events[2])
	require.NoError(t, err)
	assert.InEpsilon(t, want+want2, summary.SumWeights, 1e-12)
}

func TestRunWeight_AbortPolicy(t *testing.T) {
	// GIVEN an abort policy and an event below every generator's range
	p := testProfile(t)
	p.OnError = OnErrorAbort
	p.Output = filepath.Join(t.TempDir(), "weights.csv")

	// WHEN the run executes
	_, err := runWeight(context.Background(), p)

	// THEN the run fails naming the event and writes nothing
	assert.ErrorIs(t, err, lw.ErrZeroSupport)
	assert.Contains(t, err.Error(), "event 1")
	assert.NoFileExists(t, p.Output)
}

func TestRunWeight_OneWeightsWithoutFlux(t *testing.T) {
	p := testProfile(t)
	p.Fluxes = nil
	summary, err := runWeight(context.Background(), p)
	require.NoError(t, err)

	withFlux := testProfile(t)
	w, err := buildWeighter(withFlux)
	require.NoError(t, err)
	events, err := eventio.ReadFile(withFlux.Events)
	require.NoError(t, err)
	ow0, err := w.OneWeight(events[0])
	require.NoError(t, err)
	ow2, err := w.OneWeight(events[2])
	require.NoError(t, err)
	assert.InEpsilon(t, ow0+ow2, summary.SumWeights, 1e-12)
}

func TestRunWeight_BadInputs(t *testing.T) {
	p := testProfile(t)
	p.Description = filepath.Join(t.TempDir(), "absent.yaml")
	_, err := runWeight(context.Background(), p)
	assert.Error(t, err)

	p = testProfile(t)
	p.XSec = XSecProfile{NuCC: filepath.Join(t.TempDir(), "absent.csv")}
	_, err = runWeight(context.Background(), p)
	assert.ErrorIs(t, err, lw.ErrInvalidConfiguration)

	p = testProfile(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runWeight(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, lw.Summarize([]lw.Result{
		{Index: 0, Weight: 2},
		{Index: 1, Err: lw.ErrZeroSupport},
	}))
	out := buf.String()
	assert.Contains(t, out, "=== Weighting Summary ===")
	assert.Contains(t, out, "zero_support")
	assert.Contains(t, out, "Effective N          : 1.00")
}

func TestRunInspect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "gen.yaml", testDescription)
	var buf bytes.Buffer
	require.NoError(t, runInspect(path, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "numu-cc")
	assert.Contains(t, lines[0], "radius=800 endcap=600")
	assert.Contains(t, lines[0], "zenith=[0.0000, 3.1416]")
	assert.Contains(t, lines[1], "height=1000")
	assert.Contains(t, lines[1], "kinematics=uniform")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "generators:\n  - name: x\n    geometry: sphere\n")
	assert.ErrorIs(t, runInspect(bad, &buf), lw.ErrInvalidConfiguration)
}
