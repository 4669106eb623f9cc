package field

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

var t0 = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.AddDate(0, 0, n) }

// newTestGrid builds a 2x2x3 grid whose value encodes its indices as
// 100*ti + 10*yi + xi.
func newTestGrid(t *testing.T, lats, lons []float64) *GriddedField {
	t.Helper()
	times := []time.Time{day(0), day(8)}
	values := make([]float64, 0, len(times)*len(lats)*len(lons))
	for ti := range times {
		for yi := range lats {
			for xi := range lons {
				values = append(values, float64(100*ti+10*yi+xi))
			}
		}
	}
	g, err := NewGriddedField(times, lats, lons, values)
	require.NoError(t, err)
	return g
}

func TestNearestIndex(t *testing.T) {
	asc := []float64{0, 1, 2, 4}
	desc := []float64{4, 2, 1, 0}

	tests := []struct {
		name string
		axis []float64
		asc  bool
		x    float64
		want int
	}{
		{"asc exact", asc, true, 2, 2},
		{"asc below range", asc, true, -5, 0},
		{"asc above range", asc, true, 9, 3},
		{"asc midpoint tie goes low", asc, true, 0.5, 0},
		{"asc wide midpoint tie goes low", asc, true, 3, 2},
		{"asc just past midpoint", asc, true, 3.01, 3},
		{"desc exact", desc, false, 1, 2},
		{"desc midpoint tie goes low", desc, false, 3, 0},
		{"desc closer to higher index", desc, false, 0.4, 3},
		{"desc above range", desc, false, 10, 0},
		{"desc below range", desc, false, -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nearestIndex(tt.axis, tt.asc, tt.x))
		})
	}
}

func TestNewAxis(t *testing.T) {
	_, err := NewAxis(nil)
	assert.ErrorIs(t, err, ErrInvalidAxis)

	_, err = NewAxis([]float64{0, 1, 1})
	assert.ErrorIs(t, err, ErrInvalidAxis)

	_, err = NewAxis([]float64{0, 2, 1})
	assert.ErrorIs(t, err, ErrInvalidAxis)

	_, err = NewAxis([]float64{0, math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidAxis)

	a, err := NewAxis([]float64{10, 5, 0})
	require.NoError(t, err)
	assert.False(t, a.Ascending())
	lo, hi := a.Extent()
	assert.Equal(t, -2.5, lo)
	assert.Equal(t, 12.5, hi)
	assert.True(t, a.Covers(12.5))
	assert.False(t, a.Covers(12.6))
}

func TestNewGriddedField_Invariants(t *testing.T) {
	lats := []float64{0, 1}
	lons := []float64{0, 1}

	_, err := NewGriddedField([]time.Time{day(1), day(0)}, lats, lons, make([]float64, 8))
	assert.ErrorIs(t, err, ErrInvalidAxis)

	_, err = NewGriddedField([]time.Time{day(0), day(0)}, lats, lons, make([]float64, 8))
	assert.ErrorIs(t, err, ErrInvalidAxis)

	_, err = NewGriddedField([]time.Time{day(0)}, lats, lons, make([]float64, 3))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewGriddedField(nil, lats, lons, nil)
	assert.ErrorIs(t, err, ErrInvalidAxis)
}

func TestAxisNearestLookup(t *testing.T) {
	g := newTestGrid(t, []float64{10, 0}, []float64{100, 101, 102})
	l, err := NewLookup(g, Options{})
	require.NoError(t, err)

	tests := []struct {
		name string
		p    Point
		want float64
		ok   bool
	}{
		{"on node", Point{Time: day(0), Lat: 10, Lon: 101}, 1, true},
		{"time nearer second slice", Point{Time: day(5), Lat: 0, Lon: 102}, 112, true},
		{"time midpoint tie goes to first slice", Point{Time: day(4), Lat: 0, Lon: 100}, 10, true},
		{"lat midpoint tie goes to lower index", Point{Time: day(0), Lat: 5, Lon: 100}, 0, true},
		{"lon midpoint tie goes to lower index", Point{Time: day(0), Lat: 0, Lon: 100.5}, 10, true},
		{"time far outside is not range checked", Point{Time: day(400), Lat: 0, Lon: 100}, 110, true},
		{"inside half-cell margin", Point{Time: day(0), Lat: 14.9, Lon: 102.4}, 2, true},
		{"outside lat coverage", Point{Time: day(0), Lat: 20, Lon: 100}, 0, false},
		{"outside lon coverage", Point{Time: day(0), Lat: 0, Lon: 90}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := l.Value(tt.p)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, v)
			}
		})
	}
}

func TestAxisNearestLookup_MissingCell(t *testing.T) {
	values := []float64{1, math.NaN(), 3, 4}
	g, err := NewGriddedField([]time.Time{day(0)}, []float64{0, 1}, []float64{0, 1}, values)
	require.NoError(t, err)

	l, err := NewLookup(g, Options{Strategy: AxisNearest})
	require.NoError(t, err)
	_, ok := l.Value(Point{Time: day(0), Lat: 0, Lon: 1})
	assert.False(t, ok)

	// The Euclidean strategy skips the NaN cell and finds a valid neighbour.
	l, err = NewLookup(g, Options{Strategy: EuclideanNearest})
	require.NoError(t, err)
	v, ok := l.Value(Point{Time: day(0), Lat: 0, Lon: 0.9})
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestEuclideanMatchesAxisOnFullGrid(t *testing.T) {
	g := newTestGrid(t, []float64{0, 1}, []float64{0, 1, 2})
	axis, err := NewLookup(g, Options{Strategy: AxisNearest})
	require.NoError(t, err)
	euclid, err := NewLookup(g, Options{Strategy: EuclideanNearest})
	require.NoError(t, err)

	for _, p := range []Point{
		{Time: day(0), Lat: 0.1, Lon: 1.8},
		{Time: day(7), Lat: 0.9, Lon: 0.2},
		{Time: day(8), Lat: 1, Lon: 2},
	} {
		a, _ := axis.Value(p)
		e, _ := euclid.Value(p)
		assert.Equal(t, a, e, "point %+v", p)
	}
}

func TestTrackLookup_Unscaled(t *testing.T) {
	// A sits on the query's position 100 s earlier; B is 50 degrees away in
	// lat and lon but at the exact time. In raw (seconds, lat, lon) space B
	// is closer: 50^2+50^2 = 5000 < 100^2 = 10000.
	tr, err := NewTrackField(
		[]time.Time{t0, t0.Add(100 * time.Second)},
		[]float64{0, 50},
		[]float64{0, 50},
		[]float64{1, 2},
	)
	require.NoError(t, err)
	q := Point{Time: t0.Add(100 * time.Second), Lat: 0, Lon: 0}

	raw, err := NewLookup(tr, Options{})
	require.NoError(t, err)
	v, ok := raw.Value(q)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)

	// With normalization every axis spans [0, 1] and A wins.
	norm, err := NewLookup(tr, Options{Normalize: true})
	require.NoError(t, err)
	v, ok = norm.Value(q)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestTrackLookup_NaNValue(t *testing.T) {
	tr, err := NewTrackField([]time.Time{t0}, []float64{0}, []float64{0}, []float64{math.NaN()})
	require.NoError(t, err)
	l, err := NewLookup(tr, Options{})
	require.NoError(t, err)
	_, ok := l.Value(Point{Time: t0, Lat: 0, Lon: 0})
	assert.False(t, ok)
}

func TestNewTrackField_Errors(t *testing.T) {
	_, err := NewTrackField(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyField)

	_, err = NewTrackField([]time.Time{t0}, []float64{0, 1}, []float64{0}, []float64{0})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCrop_PreservesLookups(t *testing.T) {
	lats := []float64{4, 3, 2, 1, 0}
	lons := []float64{10, 11, 12, 13, 14, 15}
	g := newTestGrid(t, lats, lons)
	b := geo.BBox{West: 11.2, South: 1.4, East: 12.6, North: 2.2}

	cropped, err := g.Crop(b)
	require.NoError(t, err)
	_, nlat, nlon := cropped.Shape()
	assert.Less(t, nlat, len(lats))
	assert.Less(t, nlon, len(lons))

	full, _ := NewLookup(g, Options{})
	part, _ := NewLookup(cropped, Options{})
	for _, lat := range []float64{1.4, 1.5, 1.8, 2.0, 2.2} {
		for _, lon := range []float64{11.2, 11.5, 12.0, 12.5, 12.6} {
			p := Point{Time: day(3), Lat: lat, Lon: lon}
			want, _ := full.Value(p)
			got, ok := part.Value(p)
			require.True(t, ok)
			assert.Equal(t, want, got, "lat=%v lon=%v", lat, lon)
		}
	}
}

func TestCrop_SubCellBox(t *testing.T) {
	g := newTestGrid(t, []float64{0, 1, 2, 3}, []float64{0, 1, 2, 3})
	tests := []struct {
		name   string
		points []Point
	}{
		{"cluster inside one cell", []Point{
			{Time: day(0), Lat: 1.2, Lon: 1.3},
			{Time: day(0), Lat: 1.3, Lon: 1.4},
		}},
		{"single point", []Point{{Time: day(8), Lat: 2.1, Lon: 0.6}}},
		{"single point on first node", []Point{{Time: day(0), Lat: 0, Lon: 0}}},
		{"single point in outer half cell", []Point{{Time: day(0), Lat: 3.4, Lon: -0.4}}},
	}

	full, err := NewLookup(g, Options{})
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cropped, err := g.Crop(BBoxOf(tt.points))
			require.NoError(t, err)
			_, nlat, nlon := cropped.Shape()
			assert.Equal(t, 1, nlat)
			assert.Equal(t, 1, nlon)

			part, err := NewLookup(cropped, Options{})
			require.NoError(t, err)
			for _, p := range tt.points {
				want, wantOK := full.Value(p)
				require.True(t, wantOK)
				got, ok := part.Value(p)
				require.True(t, ok, "lat=%v lon=%v", p.Lat, p.Lon)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestAxisSub(t *testing.T) {
	a, err := NewAxis([]float64{0, 1, 3, 7})
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end int
		lo, hi     float64
	}{
		{"whole axis", 0, 4, -0.5, 9},
		{"inner node", 1, 2, 0.5, 2},
		{"non-uniform inner nodes", 1, 3, 0.5, 5},
		{"first node", 0, 1, -0.5, 0.5},
		{"last node", 3, 4, 5, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := a.Sub(tt.start, tt.end).Extent()
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}

	desc, err := NewAxis([]float64{7, 3, 1, 0})
	require.NoError(t, err)
	lo, hi := desc.Sub(1, 2).Extent()
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 5.0, hi)

	single, err := NewAxis([]float64{4})
	require.NoError(t, err)
	lo, hi = single.Extent()
	assert.Equal(t, 4.0, lo)
	assert.Equal(t, 4.0, hi)
}

func TestCrop_NoOverlap(t *testing.T) {
	g := newTestGrid(t, []float64{0, 1}, []float64{0, 1})
	_, err := g.Crop(geo.BBox{West: 50, South: 50, East: 60, North: 60})
	assert.ErrorIs(t, err, ErrNoOverlap)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Euclidean")
	require.NoError(t, err)
	assert.Equal(t, EuclideanNearest, s)
	assert.Equal(t, "euclidean", s.String())

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, AxisNearest, s)

	_, err = ParseStrategy("manhattan")
	assert.Error(t, err)
}

func TestBBoxOfAndTimeRange(t *testing.T) {
	pts := []Point{
		{Time: day(3), Lat: 1, Lon: 5},
		{Time: day(1), Lat: -2, Lon: 7},
		{Time: day(9), Lat: 4, Lon: 6},
	}
	assert.Equal(t, geo.BBox{West: 5, South: -2, East: 7, North: 4}, BBoxOf(pts))
	first, last := TimeRange(pts)
	assert.Equal(t, day(1), first)
	assert.Equal(t, day(9), last)
	assert.True(t, BBoxOf(nil).IsEmpty())
}
