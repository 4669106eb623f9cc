package field

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// sample is a k-d tree node in (seconds, lat, lon) space carrying its value.
type sample struct {
	coord [3]float64
	value float64
}

func (s sample) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return s.coord[d] - c.(sample).coord[d]
}

func (s sample) Dims() int { return len(s.coord) }

func (s sample) Distance(c kdtree.Comparable) float64 {
	q := c.(sample)
	var sum float64
	for i := range s.coord {
		d := s.coord[i] - q.coord[i]
		sum += d * d
	}
	return sum
}

type samples []sample

func (s samples) Index(i int) kdtree.Comparable         { return s[i] }
func (s samples) Len() int                              { return len(s) }
func (s samples) Pivot(d kdtree.Dim) int                { return plane{Dim: d, samples: s}.Pivot() }
func (s samples) Slice(start, end int) kdtree.Interface { return s[start:end] }

type plane struct {
	kdtree.Dim
	samples
}

func (p plane) Less(i, j int) bool { return p.samples[i].coord[p.Dim] < p.samples[j].coord[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Swap(i, j int)      { p.samples[i], p.samples[j] = p.samples[j], p.samples[i] }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.samples = p.samples[start:end]
	return p
}

// scaling maps raw coordinates into tree space.
type scaling struct {
	offset [3]float64
	scale  [3]float64
}

func identity() scaling {
	return scaling{scale: [3]float64{1, 1, 1}}
}

// extentScaling divides each axis by the extent of the reference samples.
func extentScaling(s samples) scaling {
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, x := range s {
		for d := range x.coord {
			lo[d] = math.Min(lo[d], x.coord[d])
			hi[d] = math.Max(hi[d], x.coord[d])
		}
	}
	sc := scaling{offset: lo}
	for d := range sc.scale {
		sc.scale[d] = hi[d] - lo[d]
		if sc.scale[d] == 0 {
			sc.scale[d] = 1
		}
	}
	return sc
}

func (sc scaling) apply(c [3]float64) [3]float64 {
	for d := range c {
		c[d] = (c[d] - sc.offset[d]) / sc.scale[d]
	}
	return c
}

// treeLookup answers single-nearest-neighbour queries.
type treeLookup struct {
	tree *kdtree.Tree
	sc   scaling
}

func newTree(s samples, normalize bool) (*treeLookup, error) {
	if len(s) == 0 {
		return nil, ErrEmptyField
	}
	sc := identity()
	if normalize {
		sc = extentScaling(s)
		for i := range s {
			s[i].coord = sc.apply(s[i].coord)
		}
	}
	return &treeLookup{tree: kdtree.New(s, false), sc: sc}, nil
}

func pointCoord(p Point) [3]float64 {
	return [3]float64{float64(p.Time.Unix()), p.Lat, p.Lon}
}

func (l *treeLookup) Value(p Point) (float64, bool) {
	got, _ := l.tree.Nearest(sample{coord: l.sc.apply(pointCoord(p))})
	if got == nil {
		return math.NaN(), false
	}
	v := got.(sample).value
	return v, !math.IsNaN(v)
}

func newTrackTree(t *TrackField, normalize bool) (*treeLookup, error) {
	s := make(samples, 0, t.Len())
	for i := range t.Values {
		if math.IsNaN(t.Lats[i]) || math.IsNaN(t.Lons[i]) {
			continue
		}
		s = append(s, sample{
			coord: [3]float64{float64(t.Times[i].Unix()), t.Lats[i], t.Lons[i]},
			value: t.Values[i],
		})
	}
	return newTree(s, normalize)
}

func newGridTree(g *GriddedField, normalize bool) (*treeLookup, error) {
	nt, nlat, nlon := g.Shape()
	s := make(samples, 0, g.ValidCount())
	for ti := 0; ti < nt; ti++ {
		secs := float64(g.times[ti].Unix())
		for yi := 0; yi < nlat; yi++ {
			for xi := 0; xi < nlon; xi++ {
				v := g.At(ti, yi, xi)
				if math.IsNaN(v) {
					continue
				}
				s = append(s, sample{
					coord: [3]float64{secs, g.lat.values[yi], g.lon.values[xi]},
					value: v,
				})
			}
		}
	}
	return newTree(s, normalize)
}
