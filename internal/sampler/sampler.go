// Package sampler draws pseudo-absence points as background contrast for
// observed occurrences.
package sampler

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
)

// DefaultRatio is the number of pseudo-absences drawn per observation.
const DefaultRatio = 2

// Sampler draws uniform points over the observations' bounding box and a
// time window. It is not safe for concurrent use.
type Sampler struct {
	ratio int
	src   rand.Source
	rng   *rand.Rand
}

// New returns a sampler seeded with seed. A ratio below 1 falls back to
// DefaultRatio.
func New(ratio int, seed uint64) *Sampler {
	if ratio < 1 {
		ratio = DefaultRatio
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Sampler{ratio: ratio, src: src, rng: rand.New(src)}
}

// Ratio returns the configured pseudo-absence ratio.
func (s *Sampler) Ratio() int { return s.ratio }

// Sample returns Ratio*len(observed) points labelled PseudoAbsence. Lat and
// lon are uniform over the observed bounding box; time is a whole second
// drawn uniformly from [t0, t1). An empty window pins every time to t0.
func (s *Sampler) Sample(observed []field.Point, t0, t1 time.Time) []field.Point {
	if len(observed) == 0 {
		return nil
	}
	b := field.BBoxOf(observed)
	lat := distuv.Uniform{Min: b.South, Max: b.North, Src: s.src}
	lon := distuv.Uniform{Min: b.West, Max: b.East, Src: s.src}

	start := t0.UTC().Unix()
	span := t1.UTC().Unix() - start

	n := s.ratio * len(observed)
	out := make([]field.Point, n)
	for i := range out {
		sec := start
		if span > 0 {
			sec += s.rng.Int64N(span)
		}
		out[i] = field.Point{
			Time:  time.Unix(sec, 0).UTC(),
			Lat:   lat.Rand(),
			Lon:   lon.Rand(),
			Label: field.PseudoAbsence,
		}
	}
	return out
}

// WithAbsences returns observed followed by a fresh sample.
func (s *Sampler) WithAbsences(observed []field.Point, t0, t1 time.Time) []field.Point {
	absences := s.Sample(observed, t0, t1)
	out := make([]field.Point, 0, len(observed)+len(absences))
	out = append(out, observed...)
	return append(out, absences...)
}
