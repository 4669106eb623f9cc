package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
)

func TestScatter(t *testing.T) {
	now := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	points := []field.Point{
		{Time: now, Lat: 10, Lon: -70, Label: field.Presence},
		{Time: now, Lat: 12, Lon: -72, Label: field.PseudoAbsence},
		{Time: now, Lat: 14, Lon: -68, Label: field.PseudoAbsence},
	}

	p, err := Scatter(points, "training set")
	require.NoError(t, err)
	assert.Equal(t, "training set", p.Title.Text)
	assert.LessOrEqual(t, p.X.Min, -72.0)
	assert.GreaterOrEqual(t, p.X.Max, -68.0)

	path := filepath.Join(t.TempDir(), "plots", "points.png")
	require.NoError(t, SaveScatter(path, points, "training set"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestScatter_Empty(t *testing.T) {
	_, err := Scatter(nil, "empty")
	assert.ErrorIs(t, err, ErrNoPoints)
	assert.ErrorIs(t, SaveScatter(filepath.Join(t.TempDir(), "x.png"), nil, "empty"), ErrNoPoints)
}
