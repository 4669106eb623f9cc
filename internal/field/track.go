package field

import (
	"fmt"
	"time"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// TrackField is an irregular set of (time, lat, lon, value) samples, such as
// altimeter ground tracks. No ordering is required.
type TrackField struct {
	Times  []time.Time
	Lats   []float64
	Lons   []float64
	Values []float64
}

// NewTrackField checks that the four slices are parallel and non-empty.
func NewTrackField(times []time.Time, lats, lons, values []float64) (*TrackField, error) {
	n := len(times)
	if n == 0 {
		return nil, ErrEmptyField
	}
	if len(lats) != n || len(lons) != n || len(values) != n {
		return nil, fmt.Errorf("%w: times=%d lats=%d lons=%d values=%d",
			ErrShapeMismatch, n, len(lats), len(lons), len(values))
	}
	return &TrackField{Times: times, Lats: lats, Lons: lons, Values: values}, nil
}

// IsGridded implements Field.
func (t *TrackField) IsGridded() bool { return false }

// Len implements Field.
func (t *TrackField) Len() int { return len(t.Values) }

// BBox implements Field.
func (t *TrackField) BBox() geo.BBox {
	b := geo.Empty()
	for i := range t.Lats {
		b = b.Extend(t.Lats[i], t.Lons[i])
	}
	return b
}
