// Package geo provides a geographic bounding box and the small amount of
// GeoJSON geometry needed to describe one.
package geo

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// BBox is an axis-aligned longitude/latitude box in degrees.
// The zero value is not a valid box; use Empty to start accumulating.
type BBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Empty returns a box that contains nothing and grows with Extend.
func Empty() BBox {
	return BBox{
		West:  math.Inf(1),
		South: math.Inf(1),
		East:  math.Inf(-1),
		North: math.Inf(-1),
	}
}

// FromPoints computes the bounding box of parallel latitude/longitude slices.
// NaN coordinates are ignored.
func FromPoints(lats, lons []float64) (BBox, error) {
	if len(lats) != len(lons) {
		return BBox{}, fmt.Errorf("latitude and longitude lengths differ: %d != %d", len(lats), len(lons))
	}
	b := Empty()
	for i := range lats {
		b = b.Extend(lats[i], lons[i])
	}
	if b.IsEmpty() {
		return BBox{}, fmt.Errorf("failed to compute bounding box: no valid coordinates found")
	}
	return b, nil
}

// Extend returns the smallest box containing b and the given point.
func (b BBox) Extend(lat, lon float64) BBox {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return b
	}
	b.West = math.Min(b.West, lon)
	b.East = math.Max(b.East, lon)
	b.South = math.Min(b.South, lat)
	b.North = math.Max(b.North, lat)
	return b
}

// IsEmpty reports whether the box contains no points.
func (b BBox) IsEmpty() bool {
	return b.West > b.East || b.South > b.North
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.South && lat <= b.North && lon >= b.West && lon <= b.East
}

// Overlaps reports whether two boxes share any area or edge.
func (b BBox) Overlaps(o BBox) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return b.West <= o.East && o.West <= b.East && b.South <= o.North && o.South <= b.North
}

// Intersect returns the overlapping part of two boxes. The result is empty
// when they do not overlap.
func (b BBox) Intersect(o BBox) BBox {
	if !b.Overlaps(o) {
		return Empty()
	}
	return BBox{
		West:  math.Max(b.West, o.West),
		South: math.Max(b.South, o.South),
		East:  math.Min(b.East, o.East),
		North: math.Min(b.North, o.North),
	}
}

// Slice returns the box as [west, south, east, north].
func (b BBox) Slice() []float64 {
	return []float64{b.West, b.South, b.East, b.North}
}

// String formats the box as "west,south,east,north", the form CMR expects
// for its bounding_box parameter.
func (b BBox) String() string {
	parts := make([]string, 0, 4)
	for _, v := range b.Slice() {
		parts = append(parts, formatFloat(v))
	}
	return strings.Join(parts, ",")
}

// ParseBBox parses "west,south,east,north".
func ParseBBox(s string) (BBox, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return BBox{}, fmt.Errorf("bbox must have 4 values [west, south, east, north], got %d", len(fields))
	}
	var v [4]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("invalid bbox value %q: %w", f, err)
		}
		v[i] = x
	}
	b := BBox{West: v[0], South: v[1], East: v[2], North: v[3]}
	if b.IsEmpty() {
		return BBox{}, fmt.Errorf("bbox %q is inverted", s)
	}
	return b, nil
}

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Polygon builds the closed rectangular GeoJSON polygon of the box.
func (b BBox) Polygon() (*Geometry, error) {
	if b.IsEmpty() {
		return nil, fmt.Errorf("cannot build polygon from empty bbox")
	}
	coords := [][][]float64{
		{
			{b.West, b.South},
			{b.East, b.South},
			{b.East, b.North},
			{b.West, b.North},
			{b.West, b.South},
		},
	}

	coordsJSON, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}

	return &Geometry{
		Type:        "Polygon",
		Coordinates: coordsJSON,
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
