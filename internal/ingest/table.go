package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when a required source column is absent
// under every accepted alias.
var ErrMissingColumn = errors.New("missing required column")

// Table is a CSV file held in memory as strings. Cells are trimmed.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// ReadCSV reads a comma-separated file with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Table{index: map[string]int{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: reading header: %w", err)
	}

	t := &Table{index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		t.Header = append(t.Header, h)
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: reading row %d: %w", len(t.Rows)+1, err)
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Has reports whether the header contains column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Resolve returns the first alias present in the header.
func (t *Table) Resolve(aliases ...string) (string, bool) {
	for _, a := range aliases {
		if t.Has(a) {
			return a, true
		}
	}
	return "", false
}

// Cell returns the value of column in row, or "" when either is missing.
func (t *Table) Cell(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// isNull matches the null spellings written by the upstream exporters.
func isNull(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "null", "none", "na", "n/a":
		return true
	}
	return false
}

// parseFloat parses a number written either with a dot decimal separator or
// in the Brazilian "1.234,56" form. Null cells yield NaN and ok=true; cells
// that are not finite numbers ("abc", "inf", "1e999") yield NaN and ok=false.
func parseFloat(s string) (float64, bool) {
	if isNull(s) {
		return math.NaN(), true
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return finite(v)
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return finite(v)
		}
	}
	return math.NaN(), false
}

func finite(v float64) (float64, bool) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return math.NaN(), false
	}
	return v, true
}

// parseInt accepts integer cells written as floats ("2024.0").
func parseInt(s string) (int, bool) {
	if isNull(s) {
		return 0, false
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, true
	}
	f, ok := parseFloat(s)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// cleanText returns s unless it is a null spelling.
func cleanText(s string) string {
	if isNull(s) {
		return ""
	}
	return s
}
