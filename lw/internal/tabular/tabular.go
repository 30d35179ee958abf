// Package tabular reads header-keyed CSV files shared by the flux, cross-section and
// event loaders.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Header maps column names to their positions. Names are matched case-insensitively
// after trimming whitespace.
type Header map[string]int

// NewHeader indexes a header record. Duplicate names are an error.
func NewHeader(record []string) (Header, error) {
	h := make(Header, len(record))
	for i, name := range record {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := h[key]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		h[key] = i
	}
	return h, nil
}

// Require returns an error naming every column of names that h lacks.
func (h Header) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// WarnUnknown logs columns outside known, once per file.
func (h Header) WarnUnknown(source string, known ...string) {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	for name := range h {
		if !set[name] {
			logrus.Warnf("%s: ignoring unknown column %q", source, name)
		}
	}
}

// Field returns the trimmed value of column name in record, and whether the column exists.
func (h Header) Field(record []string, name string) (string, bool) {
	i, ok := h[name]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

// Float parses column name as a float64. Absent columns yield def.
func (h Header) Float(record []string, name string, def float64) (float64, error) {
	s, ok := h.Field(record, name)
	if !ok || s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

// NewReader returns a csv.Reader that tolerates '#' comment lines and ragged rows; the
// Header decides which fields are read.
func NewReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	return cr
}

// ReadFile reads a whole CSV file and splits off its header.
func ReadFile(path string) (Header, [][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	records, err := NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("%s: empty or missing header", path)
	}
	h, err := NewHeader(records[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, records[1:], nil
}
