package ncload

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		in    any
		want  []float64
		shape []int
	}{
		{"scalar", float32(2.5), []float64{2.5}, nil},
		{"vector", []int16{1, -2}, []float64{1, -2}, []int{2}},
		{"matrix", [][]uint8{{1, 2, 3}, {4, 5, 6}}, []float64{1, 2, 3, 4, 5, 6}, []int{2, 3}},
		{"cube", [][][]float64{{{1}, {2}}}, []float64{1, 2}, []int{1, 2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, shape, err := flatten(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.shape, shape)
		})
	}

	_, _, err := flatten("text")
	assert.Error(t, err)
	_, _, err = flatten([][]int32{{1, 2}, {3}})
	assert.Error(t, err)
	_, _, err = flatten([]string{"a"})
	assert.Error(t, err)
}

func TestDecoding(t *testing.T) {
	d := decoding{fill: []float64{-32767}, scale: 0.5, offset: 10, validMin: math.Inf(-1), validMax: math.Inf(1)}
	vals := []float64{2, -32767, math.NaN(), 0}
	d.apply(vals)
	assert.Equal(t, 11.0, vals[0])
	assert.True(t, math.IsNaN(vals[1]))
	assert.True(t, math.IsNaN(vals[2]))
	assert.Equal(t, 10.0, vals[3])

	bounded := decoding{scale: 1, validMin: 0, validMax: 5, hasBounds: true}
	vals = []float64{-1, 3, 6}
	bounded.apply(vals)
	assert.True(t, math.IsNaN(vals[0]))
	assert.Equal(t, 3.0, vals[1])
	assert.True(t, math.IsNaN(vals[2]))

	f32 := decoding{fill: []float64{float64(float32(9.96921e36))}, scale: 1}
	vals = []float64{float64(float32(9.96921e36))}
	f32.apply(vals)
	assert.True(t, math.IsNaN(vals[0]))
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units  string
		offset float64
		want   time.Time
	}{
		{"seconds since 1981-01-01 00:00:00", 86400, time.Date(1981, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"days since 1970-01-01", 1.5, time.Date(1970, 1, 2, 12, 0, 0, 0, time.UTC)},
		{"hours since 1900-01-01 00:00:00.0", 24, time.Date(1900, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"minutes since 2000-01-01T00:00:00Z", 90, time.Date(2000, 1, 1, 1, 30, 0, 0, time.UTC)},
		{"Days since 1992-10-05 00:00:00 UTC", 0, time.Date(1992, 10, 5, 0, 0, 0, 0, time.UTC)},
		{"seconds since 2000-1-1", 1, time.Date(2000, 1, 1, 0, 0, 1, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			u, err := ParseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(u.Time(tt.offset)), "got %v", u.Time(tt.offset))
		})
	}

	for _, bad := range []string{"", "days", "fortnights since 2000-01-01", "days since yesterday"} {
		_, err := ParseTimeUnits(bad)
		assert.ErrorIs(t, err, ErrNoTime, bad)
	}
}

func TestTimeFromFilename(t *testing.T) {
	got, err := TimeFromFilename("/data/sst/AQUA_MODIS.20210301_20210308.L3m.8D.SST.sst.4km.nc")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = TimeFromFilename("AQUA_MODIS.20210301.L3m.DAY.CHL.chlor_a.4km.nc")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = TimeFromFilename("ssha.nc")
	assert.ErrorIs(t, err, ErrNoTime)
	_, err = TimeFromFilename("RSS_smap.2021_001.v5.nc")
	assert.ErrorIs(t, err, ErrNoTime)
}
