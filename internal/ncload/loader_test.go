package ncload

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

func quietLoader() *Loader {
	return NewLoader().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func compositeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	// Written out of order to check sorting by time.
	writeComposite(t, dir, "AQUA_MODIS.20210309_20210316.L3m.8D.SST.sst.4km.nc", [][]int16{{2100, 2200}, {2300, 2400}})
	writeComposite(t, dir, "AQUA_MODIS.20210301_20210308.L3m.8D.SST.sst.4km.nc", [][]int16{{1100, -32767}, {1300, 1400}})
	writeGarbage(t, filepath.Join(dir, "AQUA_MODIS.20210317_20210324.L3m.8D.SST.sst.4km.nc"))
	return dir
}

func TestLoadGriddedSynthTime(t *testing.T) {
	spec := Spec{Dir: compositeDir(t), Variable: "sst", Gridded: true, SynthTime: true}
	f, err := quietLoader().Load(context.Background(), spec, geo.Empty())
	require.NoError(t, err)

	g, ok := f.(*field.GriddedField)
	require.True(t, ok)
	assert.Equal(t, []time.Time{date(2021, 3, 1), date(2021, 3, 9)}, g.Times())
	assert.Equal(t, []float64{10, 0}, g.Lats().Values())
	assert.Equal(t, []float64{100, 110}, g.Lons().Values())

	assert.InDelta(t, 11.0, g.At(0, 0, 0), 1e-6)
	assert.True(t, math.IsNaN(g.At(0, 0, 1)))
	assert.InDelta(t, 14.0, g.At(0, 1, 1), 1e-6)
	assert.InDelta(t, 23.0, g.At(1, 1, 0), 1e-6)
	assert.Equal(t, 7, g.ValidCount())
}

func TestLoadGriddedCrop(t *testing.T) {
	spec := Spec{Dir: compositeDir(t), Variable: "sst", Gridded: true, SynthTime: true}
	bounds := geo.BBox{West: 108, South: 8, East: 112, North: 12}

	f, err := quietLoader().Load(context.Background(), spec, bounds)
	require.NoError(t, err)
	g := f.(*field.GriddedField)
	nt, nlat, nlon := g.Shape()
	assert.Equal(t, [3]int{2, 1, 1}, [3]int{nt, nlat, nlon})
	assert.True(t, math.IsNaN(g.At(0, 0, 0)))
	assert.InDelta(t, 22.0, g.At(1, 0, 0), 1e-6)

	full, err := quietLoader().Load(context.Background(), spec, geo.Empty())
	require.NoError(t, err)
	fullLookup, err := field.NewLookup(full, field.Options{})
	require.NoError(t, err)
	cropLookup, err := field.NewLookup(g, field.Options{})
	require.NoError(t, err)
	for _, p := range []field.Point{
		{Time: date(2021, 3, 10), Lat: 9, Lon: 109},
		{Time: date(2021, 3, 10), Lat: 12, Lon: 112},
		{Time: date(2021, 3, 10), Lat: 8, Lon: 108},
	} {
		want, wantOK := fullLookup.Value(p)
		require.True(t, wantOK)
		got, ok := cropLookup.Value(p)
		require.True(t, ok, "lat=%v lon=%v", p.Lat, p.Lon)
		assert.Equal(t, want, got)
	}

	_, err = quietLoader().Load(context.Background(), spec, geo.BBox{West: -80, South: 20, East: -70, North: 30})
	assert.ErrorIs(t, err, ErrNoOverlap)
}

func TestLoadGriddedCFTimeLonFirst(t *testing.T) {
	dir := t.TempDir()
	// sss(time, lon, lat) on a 0..360 longitude axis.
	vars := []ncVar{
		{name: "time", values: []float64{0, 8}, dims: []string{"time"}, attrs: map[string]any{"units": "days since 2021-01-01 00:00:00"}},
		{name: "latitude", values: []float32{0, 10}, dims: []string{"latitude"}},
		{name: "longitude", values: []float32{90, 180, 270}, dims: []string{"longitude"}},
		{
			name:   "sss_smap",
			values: [][][]float32{{{1, 2}, {3, 4}, {5, 6}}, {{11, 12}, {13, 14}, {15, -9999}}},
			dims:   []string{"time", "longitude", "latitude"},
			attrs:  map[string]any{"_FillValue": []float32{-9999}},
		},
	}
	writeNC(t, filepath.Join(dir, "RSS_smap_SSS_L3_8day_running_2021_001_FNL_v05.0.nc"), vars...)

	spec := Spec{Dir: dir, Variable: "sss_smap", Gridded: true, WrapLongitude: true}
	f, err := quietLoader().Load(context.Background(), spec, geo.Empty())
	require.NoError(t, err)
	g := f.(*field.GriddedField)

	assert.Equal(t, []time.Time{date(2021, 1, 1), date(2021, 1, 9)}, g.Times())
	assert.Equal(t, []float64{0, 10}, g.Lats().Values())
	assert.Equal(t, []float64{-90, 90, 180}, g.Lons().Values())

	// (lat 0, lon -90) was raw longitude 270.
	assert.Equal(t, 5.0, g.At(0, 0, 0))
	assert.Equal(t, 1.0, g.At(0, 0, 1))
	assert.Equal(t, 4.0, g.At(0, 1, 2))
	assert.True(t, math.IsNaN(g.At(1, 1, 0)))
}

func TestLoadTrack(t *testing.T) {
	dir := t.TempDir()
	units := map[string]any{"units": "seconds since 2020-01-01"}
	writeNC(t, filepath.Join(dir, "ssha_a.nc"),
		ncVar{name: "time", values: []float64{0, 10}, dims: []string{"time"}, attrs: units},
		ncVar{name: "lat", values: []float64{1, 2}, dims: []string{"time"}},
		ncVar{name: "lon", values: []float64{3, 4}, dims: []string{"time"}},
		ncVar{name: "ssha", values: []float64{0.1, 0.2}, dims: []string{"time"}},
	)
	writeNC(t, filepath.Join(dir, "ssha_b.nc"),
		ncVar{name: "time", values: []float64{20}, dims: []string{"time"}, attrs: units},
		ncVar{name: "lat", values: []float64{5}, dims: []string{"time"}},
		ncVar{name: "lon", values: []float64{6}, dims: []string{"time"}},
		ncVar{name: "ssha", values: []float64{-1e9}, dims: []string{"time"}, attrs: map[string]any{"_FillValue": []float64{-1e9}}},
	)
	writeNC(t, filepath.Join(dir, "ssha_c.nc"),
		ncVar{name: "lat", values: []float64{5}, dims: []string{"time"}},
	)

	f, err := quietLoader().Load(context.Background(), Spec{Dir: dir, Variable: "ssha"}, geo.Empty())
	require.NoError(t, err)
	tr, ok := f.(*field.TrackField)
	require.True(t, ok)

	base := date(2020, 1, 1)
	assert.Equal(t, []time.Time{base, base.Add(10 * time.Second), base.Add(20 * time.Second)}, tr.Times)
	assert.Equal(t, []float64{1, 2, 5}, tr.Lats)
	assert.Equal(t, []float64{3, 4, 6}, tr.Lons)
	assert.Equal(t, 0.1, tr.Values[0])
	assert.True(t, math.IsNaN(tr.Values[2]))
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	_, err := quietLoader().Load(ctx, Spec{Dir: t.TempDir(), Variable: "sst", Gridded: true}, geo.Empty())
	assert.ErrorIs(t, err, ErrNoFiles)

	_, err = quietLoader().Load(ctx, Spec{Dir: filepath.Join(t.TempDir(), "missing"), Variable: "sst"}, geo.Empty())
	assert.ErrorIs(t, err, ErrNoFiles)

	dir := t.TempDir()
	writeGarbage(t, filepath.Join(dir, "a.nc"))
	_, err = quietLoader().Load(ctx, Spec{Dir: dir, Variable: "sst", Gridded: true}, geo.Empty())
	assert.ErrorIs(t, err, ErrNoValidFiles)

	// Right file, wrong variable.
	dir = t.TempDir()
	writeComposite(t, dir, "AQUA_MODIS.20210301_20210308.L3m.8D.SST.sst.4km.nc", [][]int16{{1, 2}, {3, 4}})
	_, err = quietLoader().Load(ctx, Spec{Dir: dir, Variable: "chlor_a", Gridded: true, SynthTime: true}, geo.Empty())
	assert.ErrorIs(t, err, ErrNoValidFiles)

	// No time variable and no date in the name.
	_, err = quietLoader().Load(ctx, Spec{Dir: dir, Variable: "sst", Gridded: true}, geo.Empty())
	assert.ErrorIs(t, err, ErrNoValidFiles)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = quietLoader().Load(cancelled, Spec{Dir: dir, Variable: "sst", Gridded: true, SynthTime: true}, geo.Empty())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadDuplicateTimes(t *testing.T) {
	dir := t.TempDir()
	writeComposite(t, dir, "A.20210301_20210308.L3m.nc", [][]int16{{1, 2}, {3, 4}})
	writeComposite(t, dir, "B.20210301_20210308.L3m.nc", [][]int16{{5, 6}, {7, 8}})

	f, err := quietLoader().Load(context.Background(), Spec{Dir: dir, Variable: "sst", Gridded: true, SynthTime: true}, geo.Empty())
	require.NoError(t, err)
	g := f.(*field.GriddedField)
	require.Len(t, g.Times(), 1)
	assert.InDelta(t, 0.01, g.At(0, 0, 0), 1e-6)
}
