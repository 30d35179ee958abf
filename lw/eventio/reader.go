// Package eventio reads event batches from CSV and writes weighting results back out.
package eventio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/leptonweighter/leptonweighter/lw"
	"github.com/leptonweighter/leptonweighter/lw/internal/tabular"
)

// Event CSV column names, following the LeptonInjector event record fields.
const (
	ColInitialType      = "initialtype"
	ColFinalType1       = "finaltype1"
	ColFinalType2       = "finaltype2"
	ColTotalEnergy      = "totalenergy"
	ColZenith           = "zenith"
	ColAzimuth          = "azimuth"
	ColFinalStateX      = "finalstatex"
	ColFinalStateY      = "finalstatey"
	ColTotalColumnDepth = "totalcolumndepth"
	ColRadius           = "radius"
	ColX                = "x"
	ColY                = "y"
	ColZ                = "z"
)

var requiredColumns = []string{ColInitialType, ColFinalType1, ColFinalType2, ColTotalEnergy, ColZenith, ColAzimuth}

var knownColumns = []string{
	ColInitialType, ColFinalType1, ColFinalType2, ColTotalEnergy, ColZenith, ColAzimuth,
	ColFinalStateX, ColFinalStateY, ColTotalColumnDepth, ColRadius, ColX, ColY, ColZ,
}

// Reader streams events from a CSV with a header row. Column order is free; headers are
// case-insensitive. Optional columns default to 0.
type Reader struct {
	csv    *csv.Reader
	header tabular.Header
	line   int
}

// NewReader consumes the header row of r.
func NewReader(r io.Reader) (*Reader, error) {
	cr := tabular.NewReader(r)
	record, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("event csv: missing header")
		}
		return nil, fmt.Errorf("event csv header: %w", err)
	}
	h, err := tabular.NewHeader(record)
	if err != nil {
		return nil, fmt.Errorf("event csv header: %w", err)
	}
	if err := h.Require(requiredColumns...); err != nil {
		return nil, fmt.Errorf("event csv header: %w", err)
	}
	h.WarnUnknown("event csv", knownColumns...)
	return &Reader{csv: cr, header: h, line: 1}, nil
}

// Next returns the next event, or io.EOF after the last one.
func (r *Reader) Next() (lw.Event, error) {
	record, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return lw.Event{}, io.EOF
		}
		return lw.Event{}, fmt.Errorf("event csv: %w", err)
	}
	r.line++
	ev, err := r.parse(record)
	if err != nil {
		return lw.Event{}, fmt.Errorf("event csv line %d: %w", r.line, err)
	}
	return ev, nil
}

// ReadAll reads every remaining event.
func (r *Reader) ReadAll() ([]lw.Event, error) {
	var events []lw.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
}

func (r *Reader) parse(record []string) (lw.Event, error) {
	var ev lw.Event
	for _, p := range []struct {
		col string
		dst *lw.ParticleType
	}{{ColInitialType, &ev.PrimaryType}, {ColFinalType1, &ev.FinalState0}, {ColFinalType2, &ev.FinalState1}} {
		s, _ := r.header.Field(record, p.col)
		pt, err := lw.ParseParticleType(s)
		if err != nil {
			return lw.Event{}, fmt.Errorf("%s: %w", p.col, err)
		}
		*p.dst = pt
	}
	for _, f := range []struct {
		col string
		dst *float64
	}{
		{ColTotalEnergy, &ev.Energy},
		{ColZenith, &ev.Zenith},
		{ColAzimuth, &ev.Azimuth},
		{ColFinalStateX, &ev.InteractionX},
		{ColFinalStateY, &ev.InteractionY},
		{ColTotalColumnDepth, &ev.TotalColumnDepth},
		{ColRadius, &ev.Radius},
		{ColX, &ev.X},
		{ColY, &ev.Y},
		{ColZ, &ev.Z},
	} {
		v, err := r.header.Float(record, f.col, 0)
		if err != nil {
			return lw.Event{}, err
		}
		*f.dst = v
	}
	return ev, nil
}

// ReadFile loads every event of a CSV file.
func ReadFile(path string) ([]lw.Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	defer file.Close()

	r, err := NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	events, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}
