// Package dataset reads and writes the joined training table as gzip
// compressed CSV.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/internal/join"
)

// FileName is the name of the training table inside the output directory.
const FileName = "model_training_dataset.csv.gz"

// TimeLayout is the layout of the time column. Fractional seconds are
// written only when present.
const TimeLayout = "2006-01-02 15:04:05.999999999"

var (
	// ErrEmptyTable is returned by WriteFile for a table without rows.
	ErrEmptyTable = errors.New("table has no rows")

	// ErrBadHeader is returned when a file does not start with the fixed
	// leading columns or end with the fixed trailing ones.
	ErrBadHeader = errors.New("unexpected header")
)

// Write encodes t as gzip CSV. Missing values become empty cells.
func Write(w io.Writer, t *join.Table) error {
	zw := gzip.NewWriter(w)
	cw := csv.NewWriter(zw)

	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, 0, len(t.Sources)+6)
	for i, r := range t.Rows {
		rec = rec[:0]
		rec = append(rec,
			r.Time.UTC().Format(TimeLayout),
			formatFloat(r.Lat),
			formatFloat(r.Lon),
		)
		for _, v := range r.Values {
			rec = append(rec, formatFloat(v))
		}
		rec = append(rec,
			formatFloat(r.DaySin),
			formatFloat(r.DayCos),
			strconv.Itoa(r.Label),
		)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return zw.Close()
}

// WriteFile replaces path with the encoded table. The file is written next
// to path and renamed into place.
func WriteFile(path string, t *join.Table) error {
	if t == nil || len(t.Rows) == 0 {
		return ErrEmptyTable
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, t); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// Read decodes a table written by Write.
func Read(r io.Reader) (*join.Table, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer zr.Close()

	cr := csv.NewReader(zr)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	sources, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	t := &join.Table{Sources: sources}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		row, err := parseRow(rec, len(sources))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// ReadFile decodes the table stored at path.
func ReadFile(path string) (*join.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

var (
	leading  = []string{join.ColTime, join.ColLat, join.ColLon}
	trailing = []string{join.ColDaySin, join.ColDayCos, join.ColPresence}
)

func parseHeader(h []string) ([]string, error) {
	if len(h) < len(leading)+len(trailing) {
		return nil, fmt.Errorf("%w: %d columns", ErrBadHeader, len(h))
	}
	for i, name := range leading {
		if h[i] != name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, h[i], name)
		}
	}
	tail := h[len(h)-len(trailing):]
	for i, name := range trailing {
		if tail[i] != name {
			return nil, fmt.Errorf("%w: column %q, want %q", ErrBadHeader, tail[i], name)
		}
	}
	return append([]string(nil), h[len(leading):len(h)-len(trailing)]...), nil
}

func parseRow(rec []string, nsrc int) (join.Row, error) {
	var row join.Row
	t, err := time.Parse(TimeLayout, rec[0])
	if err != nil {
		return row, fmt.Errorf("time: %w", err)
	}
	row.Time = t.UTC()

	floats := make([]float64, len(rec)-2)
	for i, s := range rec[1 : len(rec)-1] {
		if floats[i], err = parseFloat(s); err != nil {
			return row, fmt.Errorf("column %d: %w", i+1, err)
		}
	}
	row.Lat, row.Lon = floats[0], floats[1]
	row.Values = floats[2 : 2+nsrc]
	row.DaySin, row.DayCos = floats[2+nsrc], floats[3+nsrc]

	label, err := strconv.Atoi(rec[len(rec)-1])
	if err != nil || (label != field.Presence && label != field.PseudoAbsence) {
		return row, fmt.Errorf("presence: invalid label %q", rec[len(rec)-1])
	}
	row.Label = label
	return row, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
