package field

import (
	"fmt"
	"math"
	"strings"
)

// Strategy selects how a gridded field is searched.
type Strategy int

const (
	// AxisNearest picks the nearest node on each axis independently. The
	// time axis is never range-checked, so a coarse time axis can attach a
	// value from far away.
	AxisNearest Strategy = iota
	// EuclideanNearest searches all valid cells with a k-d tree in
	// (seconds, lat, lon) space and so skips over missing cells.
	EuclideanNearest
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case AxisNearest:
		return "axis"
	case EuclideanNearest:
		return "euclidean"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "axis" or "euclidean".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "axis":
		return AxisNearest, nil
	case "euclidean":
		return EuclideanNearest, nil
	default:
		return 0, fmt.Errorf("unknown lookup strategy %q, must be one of: axis, euclidean", s)
	}
}

// Options configure NewLookup.
type Options struct {
	// Strategy applies to gridded fields only. Track fields always use a
	// k-d tree.
	Strategy Strategy
	// Normalize rescales every k-d tree coordinate by the extent of the
	// reference samples on that axis. Off by default: raw seconds are mixed
	// with degrees.
	Normalize bool
}

// Lookup returns the value attached to a point. ok is false when the field
// has no usable value for it.
type Lookup interface {
	Value(p Point) (v float64, ok bool)
}

// NewLookup builds the search structure for f.
func NewLookup(f Field, opts Options) (Lookup, error) {
	if f == nil || f.Len() == 0 {
		return nil, ErrEmptyField
	}
	switch f := f.(type) {
	case *GriddedField:
		if opts.Strategy == EuclideanNearest {
			return newGridTree(f, opts.Normalize)
		}
		return axisLookup{f}, nil
	case *TrackField:
		return newTrackTree(f, opts.Normalize)
	default:
		return nil, fmt.Errorf("unsupported field type %T", f)
	}
}

type axisLookup struct {
	g *GriddedField
}

func (l axisLookup) Value(p Point) (float64, bool) {
	if !l.g.lat.Covers(p.Lat) || !l.g.lon.Covers(p.Lon) {
		return math.NaN(), false
	}
	v := l.g.At(l.g.NearestIndex(p))
	return v, !math.IsNaN(v)
}
