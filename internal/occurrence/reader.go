// Package occurrence reads species occurrence records exported from
// biodiversity portals as delimited text.
package occurrence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
)

// Default Darwin Core column names.
const (
	DefaultTimeColumn = "eventDate"
	DefaultLatColumn  = "decimalLatitude"
	DefaultLonColumn  = "decimalLongitude"
)

// Options configure a Reader. Zero Start or End leave that side of the
// window open.
type Options struct {
	Delimiter  rune
	TimeColumn string
	LatColumn  string
	LonColumn  string
	Start      time.Time
	End        time.Time
}

// DefaultOptions reads tab-separated Darwin Core exports.
func DefaultOptions() Options {
	return Options{
		Delimiter:  '\t',
		TimeColumn: DefaultTimeColumn,
		LatColumn:  DefaultLatColumn,
		LonColumn:  DefaultLonColumn,
	}
}

// Stats counts what happened to the input rows.
type Stats struct {
	Rows       int
	Malformed  int // unreadable lines or too few fields
	BadValues  int // unparsable date or coordinate
	OutOfRange int // outside the time window
	Kept       int
}

// Dropped returns the number of rows that did not become points.
func (s Stats) Dropped() int { return s.Rows - s.Kept }

// Reader turns occurrence rows into presence points.
type Reader struct {
	opts   Options
	logger *slog.Logger
}

// NewReader creates a Reader, filling empty options with defaults.
func NewReader(opts Options) *Reader {
	def := DefaultOptions()
	if opts.Delimiter == 0 {
		opts.Delimiter = def.Delimiter
	}
	if opts.TimeColumn == "" {
		opts.TimeColumn = def.TimeColumn
	}
	if opts.LatColumn == "" {
		opts.LatColumn = def.LatColumn
	}
	if opts.LonColumn == "" {
		opts.LonColumn = def.LonColumn
	}
	return &Reader{opts: opts, logger: slog.Default()}
}

// WithLogger sets a custom logger for the reader.
func (r *Reader) WithLogger(logger *slog.Logger) *Reader {
	r.logger = logger
	return r
}

// ReadFile reads the occurrence file at path. A missing file is an error.
func (r *Reader) ReadFile(path string) ([]field.Point, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open occurrence file: %w", err)
	}
	defer f.Close()

	points, stats, err := r.Read(f)
	if err != nil {
		return nil, stats, fmt.Errorf("read %s: %w", path, err)
	}
	return points, stats, nil
}

// Read parses delimited occurrence records with a header row. Bad rows are
// counted and skipped; only a missing header column is an error.
func (r *Reader) Read(in io.Reader) ([]field.Point, Stats, error) {
	cr := csv.NewReader(in)
	cr.Comma = r.opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, Stats{}, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read header: %w", err)
	}
	ti, yi, xi, err := r.columns(header)
	if err != nil {
		return nil, Stats{}, err
	}
	need := max(ti, yi, xi) + 1

	var (
		stats  Stats
		points []field.Point
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		stats.Rows++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Malformed++
				continue
			}
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows, err)
		}
		if len(rec) < need {
			stats.Malformed++
			continue
		}

		p, err := parseRow(rec[ti], rec[yi], rec[xi])
		if err != nil {
			stats.BadValues++
			continue
		}
		if !r.inWindow(p.Time) {
			stats.OutOfRange++
			continue
		}
		points = append(points, p)
	}
	stats.Kept = len(points)

	if stats.Malformed+stats.BadValues > 0 {
		r.logger.Warn("skipped bad occurrence rows",
			slog.Int("malformed", stats.Malformed),
			slog.Int("bad_values", stats.BadValues),
		)
	}
	r.logger.Info("loaded occurrences",
		slog.Int("rows", stats.Rows),
		slog.Int("kept", stats.Kept),
		slog.Int("out_of_range", stats.OutOfRange),
	)
	return points, stats, nil
}

func (r *Reader) columns(header []string) (ti, yi, xi int, err error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	var missing []string
	lookup := func(name string) int {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
		}
		return i
	}
	ti = lookup(r.opts.TimeColumn)
	yi = lookup(r.opts.LatColumn)
	xi = lookup(r.opts.LonColumn)
	if len(missing) > 0 {
		return 0, 0, 0, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return ti, yi, xi, nil
}

func (r *Reader) inWindow(t time.Time) bool {
	if !r.opts.Start.IsZero() && t.Before(r.opts.Start) {
		return false
	}
	if !r.opts.End.IsZero() && t.After(r.opts.End) {
		return false
	}
	return true
}

func parseRow(date, lat, lon string) (field.Point, error) {
	t, err := ParseEventDate(date)
	if err != nil {
		return field.Point{}, err
	}
	y, err := parseCoord(lat, 90)
	if err != nil {
		return field.Point{}, err
	}
	x, err := parseCoord(lon, 180)
	if err != nil {
		return field.Point{}, err
	}
	return field.Point{Time: t, Lat: y, Lon: x, Label: field.Presence}, nil
}

func parseCoord(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.Abs(v) > limit {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCoordinate, s)
	}
	return v, nil
}
