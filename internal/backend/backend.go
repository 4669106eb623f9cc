// Package backend provides an abstraction over the services that list
// remote granules for download (OceanColor, CMR).
package backend

import (
	"context"
	"encoding/json"
	"time"

	"github.com/robert-malhotra/sharkhabitat/internal/download"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// TargetSource lists the granules of a collection over a time range.
// Both the OceanColor and CMR sources implement this interface.
type TargetSource interface {
	// Granules lists granules matching req.
	Granules(ctx context.Context, req *Request) ([]Granule, error)

	// Name returns the source name (e.g., "oceancolor", "cmr").
	Name() string
}

// Request selects granules. Its fields are backend-agnostic and translated
// by each source.
type Request struct {
	// Collection is an OceanColor product key (sst, chlor_a) or a CMR
	// collection short name.
	Collection string

	// Temporal filter, both ends inclusive.
	Start time.Time
	End   time.Time

	// Spatial filter. Nil means global.
	BBox *geo.BBox

	// Composite is the OceanColor binning ("8D" or "DAY").
	Composite string

	// Every thins daily OceanColor requests to one day in Every.
	Every int

	// Verify asks the source to drop granules it cannot confirm exist.
	Verify bool
}

// Granule is one remote file and its coverage.
type Granule struct {
	ID         string
	Collection string
	URL        string
	Name       string
	Start      time.Time
	End        time.Time
	BBox       *geo.BBox

	// Item is an optional STAC item describing the granule, stored with it
	// in the granule index.
	Item json.RawMessage
}

// Target returns the download target of g.
func (g Granule) Target() download.Target {
	return download.Target{URL: g.URL, Name: g.Name}
}

// Targets converts granules into download targets.
func Targets(gs []Granule) []download.Target {
	out := make([]download.Target, len(gs))
	for i, g := range gs {
		out[i] = g.Target()
	}
	return out
}

// Dedupe drops granules whose URL was already seen, keeping the first.
func Dedupe(gs []Granule) []Granule {
	seen := make(map[string]bool, len(gs))
	out := gs[:0]
	for _, g := range gs {
		if seen[g.URL] {
			continue
		}
		seen[g.URL] = true
		out = append(out, g)
	}
	return out
}
