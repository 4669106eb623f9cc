package join

import (
	"math"
	"time"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
)

// Fixed column names of the training table.
const (
	ColTime     = "time"
	ColLat      = "lat"
	ColLon      = "lon"
	ColDaySin   = "day_sin"
	ColDayCos   = "day_cos"
	ColPresence = "presence"
)

// Row is a point with one attached value per table source and its
// cyclical day-of-year encoding. Missing values are NaN.
type Row struct {
	field.Point
	Values []float64
	DaySin float64
	DayCos float64
}

// Complete reports whether every attached value is present.
func (r Row) Complete() bool {
	for _, v := range r.Values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Table is the joined training table. Sources lists the attached columns in
// order; every Row.Values is aligned with it. Report holds one entry per
// requested source, attached or not.
type Table struct {
	Sources []string
	Rows    []Row
	Report  []SourceReport
}

// Columns returns the header: time, lat, lon, sources..., day_sin, day_cos,
// presence.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.Sources)+6)
	cols = append(cols, ColTime, ColLat, ColLon)
	cols = append(cols, t.Sources...)
	return append(cols, ColDaySin, ColDayCos, ColPresence)
}

// DropIncomplete removes rows with any missing attached value and returns
// the number removed.
func (t *Table) DropIncomplete() int {
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		if r.Complete() {
			kept = append(kept, r)
		}
	}
	dropped := len(t.Rows) - len(kept)
	t.Rows = kept
	return dropped
}

// Value returns the value of the named source for row i.
func (t *Table) Value(i int, source string) (float64, bool) {
	for k, s := range t.Sources {
		if s == source {
			v := t.Rows[i].Values[k]
			return v, !math.IsNaN(v)
		}
	}
	return math.NaN(), false
}

// DayFeatures returns sin and cos of 2*pi*doy/365 with doy the 1-based UTC
// day of year.
func DayFeatures(t time.Time) (sin, cos float64) {
	angle := 2 * math.Pi * float64(t.UTC().YearDay()) / 365
	return math.Sin(angle), math.Cos(angle)
}
