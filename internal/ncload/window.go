package ncload

import (
	"fmt"
	"slices"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// window is the crop applied to every file of a grid source. Rows are a
// contiguous latitude range; columns are raw longitude indices in output
// order, which differs from file order once longitudes are wrapped.
type window struct {
	rawLat, rawLon int
	y0, y1         int
	cols           []int
	lat, lon       field.Axis
}

// newWindow computes the crop of a grid with the given axes. An empty
// bounds keeps the whole grid. The cropped axes keep the cell extents they
// had in the full grid.
func newWindow(lats, lons []float64, bounds geo.BBox, wrap bool) (*window, error) {
	w := &window{rawLat: len(lats), rawLon: len(lons)}

	latAxis, err := field.NewAxis(lats)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	w.y0, w.y1 = 0, len(lats)

	order := make([]int, len(lons))
	for i := range order {
		order[i] = i
	}
	sorted := slices.Clone(lons)
	if wrap && slices.Max(lons) > 180 {
		for i := range sorted {
			sorted[i] = wrapLon(sorted[i])
		}
		slices.SortStableFunc(order, func(a, b int) int {
			switch {
			case sorted[a] < sorted[b]:
				return -1
			case sorted[a] > sorted[b]:
				return 1
			}
			return 0
		})
		wrapped := make([]float64, len(order))
		for i, k := range order {
			wrapped[i] = sorted[k]
		}
		sorted = wrapped
	}
	lonAxis, err := field.NewAxis(sorted)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	x0, x1 := 0, len(sorted)

	if !bounds.IsEmpty() {
		var ok bool
		if w.y0, w.y1, ok = latAxis.Span(bounds.South, bounds.North); !ok {
			return nil, ErrNoOverlap
		}
		if x0, x1, ok = lonAxis.Span(bounds.West, bounds.East); !ok {
			return nil, ErrNoOverlap
		}
	}
	w.lat = latAxis.Sub(w.y0, w.y1)
	w.lon = lonAxis.Sub(x0, x1)
	w.cols = slices.Clone(order[x0:x1])
	return w, nil
}

func (w *window) nlat() int { return w.rawLat }
func (w *window) nlon() int { return w.rawLon }

// colRange returns the smallest raw longitude range holding every column.
func (w *window) colRange() (int64, int64) {
	return int64(slices.Min(w.cols)), int64(slices.Max(w.cols)) + 1
}

// cut extracts the window from a plane of raw values laid out as rows of
// width stride starting at raw row rowOff. With lonFirst the rows are
// longitudes and the result is transposed to latitude-major.
func (w *window) cut(raw []float64, stride, rowOff int, lonFirst bool) []float64 {
	out := make([]float64, 0, (w.y1-w.y0)*len(w.cols))
	for y := w.y0; y < w.y1; y++ {
		for _, x := range w.cols {
			if lonFirst {
				out = append(out, raw[(x-rowOff)*stride+y])
			} else {
				out = append(out, raw[(y-rowOff)*stride+x])
			}
		}
	}
	return out
}

func wrapLon(x float64) float64 {
	if x > 180 {
		return x - 360
	}
	return x
}
