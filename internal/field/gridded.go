package field

import (
	"fmt"
	"math"
	"time"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// Field is an environmental variable that can be indexed for lookups.
// It is implemented by *GriddedField and *TrackField.
type Field interface {
	// IsGridded reports whether the field lies on a regular
	// time x lat x lon grid.
	IsGridded() bool
	// BBox returns the spatial area the field covers.
	BBox() geo.BBox
	// Len returns the number of samples (cells or track points).
	Len() int
}

// GriddedField is a variable sampled on a regular time x lat x lon grid.
// Values are stored row-major as [time][lat][lon]; NaN marks a missing cell.
type GriddedField struct {
	times  []time.Time
	timeNs []int64
	lat    Axis
	lon    Axis
	values []float64
}

// NewGriddedField validates the axes and value shape. times must be strictly
// increasing; lats and lons strictly monotonic in either direction.
func NewGriddedField(times []time.Time, lats, lons, values []float64) (*GriddedField, error) {
	lat, err := NewAxis(lats)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lon, err := NewAxis(lons)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	return NewGriddedFieldOnAxes(times, lat, lon, values)
}

// NewGriddedFieldOnAxes is NewGriddedField for axes that are already built,
// such as the cropped axes returned by Axis.Sub.
func NewGriddedFieldOnAxes(times []time.Time, lat, lon Axis, values []float64) (*GriddedField, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: empty time axis", ErrInvalidAxis)
	}
	if lat.Len() == 0 || lon.Len() == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAxis)
	}
	timeNs := make([]int64, len(times))
	for i, t := range times {
		timeNs[i] = t.UnixNano()
		if i > 0 && timeNs[i] <= timeNs[i-1] {
			return nil, fmt.Errorf("%w: time axis not strictly increasing at index %d", ErrInvalidAxis, i)
		}
	}
	if want := len(times) * lat.Len() * lon.Len(); len(values) != want {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrShapeMismatch, len(values), want)
	}
	return &GriddedField{
		times:  times,
		timeNs: timeNs,
		lat:    lat,
		lon:    lon,
		values: values,
	}, nil
}

// IsGridded implements Field.
func (g *GriddedField) IsGridded() bool { return true }

// Len implements Field.
func (g *GriddedField) Len() int { return len(g.values) }

// Times returns the time axis.
func (g *GriddedField) Times() []time.Time { return g.times }

// Lats returns the latitude axis.
func (g *GriddedField) Lats() Axis { return g.lat }

// Lons returns the longitude axis.
func (g *GriddedField) Lons() Axis { return g.lon }

// Shape returns the number of nodes along time, lat and lon.
func (g *GriddedField) Shape() (nt, nlat, nlon int) {
	return len(g.times), g.lat.Len(), g.lon.Len()
}

// At returns the value at the given axis indices.
func (g *GriddedField) At(ti, yi, xi int) float64 {
	return g.values[(ti*g.lat.Len()+yi)*g.lon.Len()+xi]
}

// BBox implements Field using the cell extents of both spatial axes.
func (g *GriddedField) BBox() geo.BBox {
	south, north := g.lat.Extent()
	west, east := g.lon.Extent()
	return geo.BBox{West: west, South: south, East: east, North: north}
}

// NearestIndex returns the per-axis nearest node indices for a point.
// Each axis is searched independently; ties resolve to the lower index.
func (g *GriddedField) NearestIndex(p Point) (ti, yi, xi int) {
	ti = nearestIndex(g.timeNs, true, p.Time.UnixNano())
	yi = g.lat.Nearest(p.Lat)
	xi = g.lon.Nearest(p.Lon)
	return ti, yi, xi
}

// Crop returns the sub-grid holding every node that can be nearest to a
// location inside b, so lookups for points within b are unchanged.
// It returns ErrNoOverlap when b misses the grid.
func (g *GriddedField) Crop(b geo.BBox) (*GriddedField, error) {
	y0, y1, ok := g.lat.Span(b.South, b.North)
	if !ok {
		return nil, ErrNoOverlap
	}
	x0, x1, ok := g.lon.Span(b.West, b.East)
	if !ok {
		return nil, ErrNoOverlap
	}
	nlat, nlon := y1-y0, x1-x0
	values := make([]float64, 0, len(g.times)*nlat*nlon)
	for ti := range g.times {
		for yi := y0; yi < y1; yi++ {
			row := (ti*g.lat.Len() + yi) * g.lon.Len()
			values = append(values, g.values[row+x0:row+x1]...)
		}
	}
	return &GriddedField{
		times:  g.times,
		timeNs: g.timeNs,
		lat:    g.lat.Sub(y0, y1),
		lon:    g.lon.Sub(x0, x1),
		values: values,
	}, nil
}

// ValidCount returns the number of non-NaN cells.
func (g *GriddedField) ValidCount() int {
	n := 0
	for _, v := range g.values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
