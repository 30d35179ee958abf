package eventio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/leptonweighter/leptonweighter/lw"
)

var resultColumns = []string{"index", "weight", "oneweight", "error"}

// ResultWriter writes one CSV row per weighted event. Failed events carry empty weight
// columns and the error text.
type ResultWriter struct {
	w *csv.Writer
}

// NewResultWriter writes the header row to w.
func NewResultWriter(w io.Writer) (*ResultWriter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultColumns); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	return &ResultWriter{w: cw}, nil
}

// Write appends one result row.
func (rw *ResultWriter) Write(r lw.Result) error {
	row := []string{strconv.Itoa(r.Index), "", "", ""}
	if r.Err != nil {
		row[3] = r.Err.Error()
	} else {
		row[1] = strconv.FormatFloat(r.Weight, 'g', -1, 64)
		row[2] = strconv.FormatFloat(r.OneWeight, 'g', -1, 64)
	}
	if err := rw.w.Write(row); err != nil {
		return fmt.Errorf("writing CSV row %d: %w", r.Index, err)
	}
	return nil
}

// Flush writes buffered rows and reports any write error.
func (rw *ResultWriter) Flush() error {
	rw.w.Flush()
	return rw.w.Error()
}

// WriteResultsFile writes all results to path, replacing it.
func WriteResultsFile(path string, results []lw.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer func() { _ = file.Close() }()

	rw, err := NewResultWriter(file)
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := rw.Write(r); err != nil {
			return err
		}
	}
	if err := rw.Flush(); err != nil {
		return fmt.Errorf("flushing results: %w", err)
	}
	return file.Close()
}
