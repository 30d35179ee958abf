package eventio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leptonweighter/leptonweighter/lw"
)

const eventsCSV = `initialType,finalType1,finalType2,totalEnergy,zenith,azimuth,finalStateX,finalStateY,totalColumnDepth,radius,x,y,z
14,13,-2000001006,10000,1.2,3.4,0.1,0.5,2e5,120,1,2,3
NuEBar,NuEBar,Hadrons,500,0.3,0.1,0.01,0.9,1e4,0,-5,6,-7
`

func TestReader_ReadAll(t *testing.T) {
	r, err := NewReader(strings.NewReader(eventsCSV))
	require.NoError(t, err)
	events, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, lw.Event{
		PrimaryType: lw.NuMu, FinalState0: lw.MuMinus, FinalState1: lw.Hadrons,
		Energy: 10000, Zenith: 1.2, Azimuth: 3.4,
		InteractionX: 0.1, InteractionY: 0.5,
		TotalColumnDepth: 2e5, Radius: 120,
		X: 1, Y: 2, Z: 3,
	}, events[0])
	assert.Equal(t, lw.NuEBar, events[1].PrimaryType)
	assert.Equal(t, -7.0, events[1].Z)
}

func TestReader_ColumnOrderAndOptionalColumns(t *testing.T) {
	in := "# produced by a test\nzenith,AZIMUTH,totalEnergy,finalType2,finalType1,initialType\n0.5,1,100,Hadrons,MuPlus,NuMuBar\n"
	r, err := NewReader(strings.NewReader(in))
	require.NoError(t, err)

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, lw.NuMuBar, ev.PrimaryType)
	assert.Equal(t, lw.MuPlus, ev.FinalState0)
	assert.Equal(t, 100.0, ev.Energy)
	assert.Equal(t, 1.0, ev.Azimuth)
	assert.Zero(t, ev.TotalColumnDepth)

	_, err = r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReader_MissingRequiredColumn(t *testing.T) {
	_, err := NewReader(strings.NewReader("initialType,finalType1,finalType2,zenith,azimuth\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "totalenergy")

	_, err = NewReader(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReader_BadRowReportsLine(t *testing.T) {
	in := "initialType,finalType1,finalType2,totalEnergy,zenith,azimuth\n14,13,Hadrons,1e3,0,0\n14,13,Hadrons,lots,0,0\n"
	r, err := NewReader(strings.NewReader(in))
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(path, []byte(eventsCSV), 0644))
	events, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	_, err = ReadFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestResultWriter(t *testing.T) {
	var buf bytes.Buffer
	rw, err := NewResultWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, rw.Write(lw.Result{Index: 0, Weight: 1.5e-12, OneWeight: 3e6}))
	require.NoError(t, rw.Write(lw.Result{Index: 1, Err: fmt.Errorf("event: %w", lw.ErrZeroSupport)}))
	require.NoError(t, rw.Flush())

	assert.Equal(t, "index,weight,oneweight,error\n0,1.5e-12,3e+06,\n1,,,event: zero generation support\n", buf.String())
}

func TestWriteResultsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteResultsFile(path, []lw.Result{{Index: 7, Weight: 2, OneWeight: 4}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "index,weight,oneweight,error\n7,2,4,\n", string(data))
}
