// Package field holds the environmental data models (gridded fields and
// along-track samples) and the nearest-neighbour lookups used to attach
// their values to occurrence points.
package field

import (
	"time"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// Labels used for Point.Label.
const (
	PseudoAbsence = 0
	Presence      = 1
)

// Point is a labelled occurrence location in space and time.
type Point struct {
	Time  time.Time
	Lat   float64
	Lon   float64
	Label int
}

// BBoxOf returns the bounding box of the given points. It is empty when
// points is empty.
func BBoxOf(points []Point) geo.BBox {
	b := geo.Empty()
	for _, p := range points {
		b = b.Extend(p.Lat, p.Lon)
	}
	return b
}

// TimeRange returns the earliest and latest timestamps among points.
func TimeRange(points []Point) (first, last time.Time) {
	for i, p := range points {
		if i == 0 || p.Time.Before(first) {
			first = p.Time
		}
		if i == 0 || p.Time.After(last) {
			last = p.Time
		}
	}
	return first, last
}
