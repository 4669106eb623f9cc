package field

import (
	"fmt"
	"math"
	"sort"
)

type ordinal interface {
	~int64 | ~float64
}

// nearestIndex returns the index of the value in a strictly monotonic axis
// closest to x. Ties resolve to the lower index. Values outside the axis
// clamp to the nearest end.
func nearestIndex[T ordinal](axis []T, ascending bool, x T) int {
	n := len(axis)
	var i int
	if ascending {
		i = sort.Search(n, func(k int) bool { return axis[k] >= x })
	} else {
		i = sort.Search(n, func(k int) bool { return axis[k] <= x })
	}
	switch {
	case i == 0:
		return 0
	case i == n:
		return n - 1
	}
	// axis[i-1] is on the far side of x from axis[i].
	before := x - axis[i-1]
	after := axis[i] - x
	if !ascending {
		before, after = -before, -after
	}
	if after < before {
		return i
	}
	return i - 1
}

// Axis is a strictly monotonic coordinate axis (latitude or longitude).
// padFirst and padLast widen the first and last node into a cell.
type Axis struct {
	values    []float64
	ascending bool
	padFirst  float64
	padLast   float64
}

// NewAxis validates values and wraps them as an Axis. The slice is not
// copied.
func NewAxis(values []float64) (Axis, error) {
	if len(values) == 0 {
		return Axis{}, fmt.Errorf("%w: empty", ErrInvalidAxis)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Axis{}, fmt.Errorf("%w: non-finite value", ErrInvalidAxis)
		}
	}
	ascending := len(values) == 1 || values[1] > values[0]
	for i := 1; i < len(values); i++ {
		if ascending && values[i] <= values[i-1] || !ascending && values[i] >= values[i-1] {
			return Axis{}, fmt.Errorf("%w: not strictly monotonic at index %d", ErrInvalidAxis, i)
		}
	}
	a := Axis{values: values, ascending: ascending}
	if n := len(values); n > 1 {
		a.padFirst = math.Abs(values[1]-values[0]) / 2
		a.padLast = math.Abs(values[n-1]-values[n-2]) / 2
	}
	return a, nil
}

// Sub returns nodes [start, end) as an axis whose extent is the union of
// those nodes' cells in a. A coordinate inside the sub-axis extent has the
// same nearest node in both axes.
func (a Axis) Sub(start, end int) Axis {
	sub := Axis{
		values:    a.values[start:end],
		ascending: a.ascending,
		padFirst:  a.padFirst,
		padLast:   a.padLast,
	}
	if start > 0 {
		sub.padFirst = math.Abs(a.values[start]-a.values[start-1]) / 2
	}
	if end < len(a.values) {
		sub.padLast = math.Abs(a.values[end]-a.values[end-1]) / 2
	}
	return sub
}

// Len returns the number of nodes.
func (a Axis) Len() int { return len(a.values) }

// Values returns the node coordinates.
func (a Axis) Values() []float64 { return a.values }

// Ascending reports the axis direction.
func (a Axis) Ascending() bool { return a.ascending }

// Nearest returns the index of the node closest to x, ties to the lower index.
func (a Axis) Nearest(x float64) int {
	return nearestIndex(a.values, a.ascending, x)
}

// Extent returns the interval covered by the axis cells: the outermost nodes
// widened by half the spacing of their neighbouring cell. A single-node axis
// built by NewAxis covers exactly its node; one cut by Sub keeps the cell it
// had in the parent axis.
func (a Axis) Extent() (lo, hi float64) {
	first, last := a.values[0], a.values[len(a.values)-1]
	if a.ascending {
		return first - a.padFirst, last + a.padLast
	}
	return last - a.padLast, first + a.padFirst
}

// Covers reports whether x falls inside Extent.
func (a Axis) Covers(x float64) bool {
	lo, hi := a.Extent()
	return x >= lo && x <= hi
}

// Span returns the half-open index range [start, end) of nodes that can be
// nearest to some coordinate in [lo, hi]. ok is false when [lo, hi] does not
// intersect the axis extent.
func (a Axis) Span(lo, hi float64) (start, end int, ok bool) {
	elo, ehi := a.Extent()
	if hi < elo || lo > ehi {
		return 0, 0, false
	}
	i, j := a.Nearest(lo), a.Nearest(hi)
	if i > j {
		i, j = j, i
	}
	return i, j + 1, true
}
