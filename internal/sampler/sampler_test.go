package sampler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
)

var (
	start = time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
)

func observations() []field.Point {
	return []field.Point{
		{Time: start.AddDate(0, 2, 0), Lat: 20, Lon: -90, Label: field.Presence},
		{Time: start.AddDate(0, 5, 0), Lat: 30, Lon: -80, Label: field.Presence},
		{Time: start.AddDate(0, 9, 0), Lat: 25, Lon: -85, Label: field.Presence},
	}
}

func TestSampleEmpty(t *testing.T) {
	s := New(DefaultRatio, 1)
	assert.Empty(t, s.Sample(nil, start, end))
	assert.Empty(t, s.WithAbsences(nil, start, end))
}

func TestSampleBounds(t *testing.T) {
	obs := observations()
	s := New(DefaultRatio, 42)
	got := s.Sample(obs, start, end)
	require.Len(t, got, 2*len(obs))

	for _, p := range got {
		assert.Equal(t, field.PseudoAbsence, p.Label)
		assert.GreaterOrEqual(t, p.Lat, 20.0)
		assert.LessOrEqual(t, p.Lat, 30.0)
		assert.GreaterOrEqual(t, p.Lon, -90.0)
		assert.LessOrEqual(t, p.Lon, -80.0)
		assert.False(t, p.Time.Before(start))
		assert.True(t, p.Time.Before(end))
		assert.Zero(t, p.Time.Nanosecond())
	}
}

func TestSampleRatio(t *testing.T) {
	obs := observations()
	assert.Len(t, New(5, 1).Sample(obs, start, end), 15)
	assert.Len(t, New(0, 1).Sample(obs, start, end), 6)
	assert.Equal(t, DefaultRatio, New(-3, 1).Ratio())
}

func TestSampleReproducible(t *testing.T) {
	obs := observations()
	a := New(DefaultRatio, 7).Sample(obs, start, end)
	b := New(DefaultRatio, 7).Sample(obs, start, end)
	c := New(DefaultRatio, 8).Sample(obs, start, end)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSampleEmptyWindow(t *testing.T) {
	got := New(DefaultRatio, 3).Sample(observations(), end, start)
	for _, p := range got {
		assert.True(t, p.Time.Equal(end))
	}
}

func TestWithAbsences(t *testing.T) {
	obs := observations()
	all := New(DefaultRatio, 9).WithAbsences(obs, start, end)
	require.Len(t, all, 9)
	assert.Equal(t, obs, all[:3])
	for _, p := range all[3:] {
		assert.Equal(t, field.PseudoAbsence, p.Label)
	}
}
