package cmr

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// UMMSearchResponse represents a CMR UMM-G search response.
type UMMSearchResponse struct {
	Hits  int             `json:"hits"`
	Took  int             `json:"took"`
	Items []UMMResultItem `json:"items"`
}

// UMMResultItem wraps a UMM granule with metadata.
type UMMResultItem struct {
	Meta UMMMeta    `json:"meta"`
	UMM  UMMGranule `json:"umm"`
}

// UMMMeta contains metadata about a CMR result item.
type UMMMeta struct {
	ConceptID    string    `json:"concept-id"`
	RevisionID   int       `json:"revision-id"`
	NativeID     string    `json:"native-id"`
	ProviderID   string    `json:"provider-id"`
	FormatString string    `json:"format"`
	RevisionDate time.Time `json:"revision-date"`
}

// UMMGranule is the subset of a UMM-G record the fetcher reads.
type UMMGranule struct {
	// ConceptID is copied from the result metadata.
	ConceptID string `json:"-"`

	GranuleUR           string              `json:"GranuleUR"`
	CollectionReference CollectionReference `json:"CollectionReference"`
	RelatedUrls         []RelatedURL        `json:"RelatedUrls,omitempty"`
	DataGranule         *DataGranule        `json:"DataGranule,omitempty"`
	TemporalExtent      *TemporalExtent     `json:"TemporalExtent,omitempty"`
	SpatialExtent       *SpatialExtent      `json:"SpatialExtent,omitempty"`
	Platforms           []Platform          `json:"Platforms,omitempty"`
}

// CollectionReference identifies the parent collection.
type CollectionReference struct {
	ShortName string `json:"ShortName"`
	Version   string `json:"Version"`
}

// RelatedURL is one link of a granule. Type is e.g. "GET DATA" or
// "GET RELATED VISUALIZATION".
type RelatedURL struct {
	URL         string `json:"URL"`
	Type        string `json:"Type"`
	Subtype     string `json:"Subtype,omitempty"`
	Description string `json:"Description,omitempty"`
	MimeType    string `json:"MimeType,omitempty"`
}

// DataGranule carries production information.
type DataGranule struct {
	ProductionDateTime string `json:"ProductionDateTime,omitempty"`
}

// TemporalExtent contains temporal information.
type TemporalExtent struct {
	RangeDateTime  *RangeDateTime `json:"RangeDateTime,omitempty"`
	SingleDateTime string         `json:"SingleDateTime,omitempty"`
}

// RangeDateTime represents a time range.
type RangeDateTime struct {
	BeginningDateTime string `json:"BeginningDateTime"`
	EndingDateTime    string `json:"EndingDateTime"`
}

// SpatialExtent contains spatial information.
type SpatialExtent struct {
	HorizontalSpatialDomain *HorizontalSpatialDomain `json:"HorizontalSpatialDomain,omitempty"`
}

// HorizontalSpatialDomain contains horizontal spatial domain information.
type HorizontalSpatialDomain struct {
	Geometry *Geometry `json:"Geometry,omitempty"`
}

// Geometry contains geometry information.
type Geometry struct {
	GPolygons          []GPolygon          `json:"GPolygons,omitempty"`
	BoundingRectangles []BoundingRectangle `json:"BoundingRectangles,omitempty"`
	Points             []Point             `json:"Points,omitempty"`
}

// GPolygon represents a polygon geometry.
type GPolygon struct {
	Boundary Boundary `json:"Boundary"`
}

// Boundary contains boundary points.
type Boundary struct {
	Points []Point `json:"Points"`
}

// Point represents a geographic point.
type Point struct {
	Longitude float64 `json:"Longitude"`
	Latitude  float64 `json:"Latitude"`
}

// BoundingRectangle represents a bounding box.
type BoundingRectangle struct {
	WestBoundingCoordinate  float64 `json:"WestBoundingCoordinate"`
	NorthBoundingCoordinate float64 `json:"NorthBoundingCoordinate"`
	EastBoundingCoordinate  float64 `json:"EastBoundingCoordinate"`
	SouthBoundingCoordinate float64 `json:"SouthBoundingCoordinate"`
}

// Platform contains platform/instrument information.
type Platform struct {
	ShortName   string       `json:"ShortName"`
	Instruments []Instrument `json:"Instruments,omitempty"`
}

// Instrument contains instrument information.
type Instrument struct {
	ShortName string `json:"ShortName"`
}

// Span returns the temporal extent of the granule. A single date time is
// both start and end; a granule without temporal extent has zero times.
func (g *UMMGranule) Span() (start, end time.Time, err error) {
	te := g.TemporalExtent
	if te == nil {
		return time.Time{}, time.Time{}, nil
	}
	if te.RangeDateTime == nil {
		if te.SingleDateTime == "" {
			return time.Time{}, time.Time{}, nil
		}
		t, err := parseTime(te.SingleDateTime)
		return t, t, err
	}

	if s := te.RangeDateTime.BeginningDateTime; s != "" {
		if start, err = parseTime(s); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start: %w", err)
		}
	}
	if s := te.RangeDateTime.EndingDateTime; s != "" {
		if end, err = parseTime(s); err != nil {
			return start, time.Time{}, fmt.Errorf("end: %w", err)
		}
	}
	return start, end, nil
}

// DataLinks returns the NetCDF download links of the granule: "GET DATA"
// URLs whose path ends in .nc or whose MIME type names NetCDF.
func (g *UMMGranule) DataLinks() []string {
	var out []string
	for _, u := range g.RelatedUrls {
		if u.Type != "GET DATA" || u.URL == "" {
			continue
		}
		if isNetCDFLink(u.URL, u.MimeType) {
			out = append(out, u.URL)
		}
	}
	return out
}

func isNetCDFLink(href, mimeType string) bool {
	mt := strings.ToLower(mimeType)
	if strings.Contains(mt, "netcdf") {
		return true
	}
	p := href
	if u, _, ok := strings.Cut(href, "?"); ok {
		p = u
	}
	return strings.EqualFold(path.Ext(p), ".nc")
}

// DataURL returns the first NetCDF link, or the first "GET DATA" link.
func (g *UMMGranule) DataURL() string {
	if links := g.DataLinks(); len(links) > 0 {
		return links[0]
	}
	return g.firstURL("GET DATA")
}

// BrowseURL returns the first browse image link.
func (g *UMMGranule) BrowseURL() string {
	return g.firstURL("GET RELATED VISUALIZATION")
}

func (g *UMMGranule) firstURL(typ string) string {
	for _, u := range g.RelatedUrls {
		if u.Type == typ {
			return u.URL
		}
	}
	return ""
}

// BBox returns the spatial extent of the granule, or nil when it carries
// no horizontal geometry.
func (g *UMMGranule) BBox() *geo.BBox {
	if g.SpatialExtent == nil || g.SpatialExtent.HorizontalSpatialDomain == nil {
		return nil
	}
	geom := g.SpatialExtent.HorizontalSpatialDomain.Geometry
	if geom == nil {
		return nil
	}

	b := geo.Empty()
	for _, r := range geom.BoundingRectangles {
		b = b.Extend(r.SouthBoundingCoordinate, r.WestBoundingCoordinate)
		b = b.Extend(r.NorthBoundingCoordinate, r.EastBoundingCoordinate)
	}
	for _, poly := range geom.GPolygons {
		for _, pt := range poly.Boundary.Points {
			b = b.Extend(pt.Latitude, pt.Longitude)
		}
	}
	for _, pt := range geom.Points {
		b = b.Extend(pt.Latitude, pt.Longitude)
	}
	if b.IsEmpty() {
		return nil
	}
	return &b
}

// Footprint returns the granule geometry as GeoJSON: the first polygon
// (ring closed), else the first bounding rectangle, else the first point.
// It is nil without horizontal geometry.
func (g *UMMGranule) Footprint() (json.RawMessage, error) {
	if g.SpatialExtent == nil || g.SpatialExtent.HorizontalSpatialDomain == nil {
		return nil, nil
	}
	geom := g.SpatialExtent.HorizontalSpatialDomain.Geometry
	if geom == nil {
		return nil, nil
	}

	switch {
	case len(geom.GPolygons) > 0:
		pts := geom.GPolygons[0].Boundary.Points
		ring := make([][]float64, 0, len(pts)+1)
		for _, pt := range pts {
			ring = append(ring, []float64{pt.Longitude, pt.Latitude})
		}
		if n := len(ring); n > 0 && (ring[0][0] != ring[n-1][0] || ring[0][1] != ring[n-1][1]) {
			ring = append(ring, ring[0])
		}
		return json.Marshal(map[string]any{"type": "Polygon", "coordinates": [][][]float64{ring}})

	case len(geom.BoundingRectangles) > 0:
		r := geom.BoundingRectangles[0]
		poly, err := geo.BBox{
			West:  r.WestBoundingCoordinate,
			South: r.SouthBoundingCoordinate,
			East:  r.EastBoundingCoordinate,
			North: r.NorthBoundingCoordinate,
		}.Polygon()
		if err != nil {
			return nil, err
		}
		return json.Marshal(poly)

	case len(geom.Points) > 0:
		pt := geom.Points[0]
		return json.Marshal(map[string]any{"type": "Point", "coordinates": []float64{pt.Longitude, pt.Latitude}})
	}
	return nil, nil
}

// parseTime parses a CMR timestamp string.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time: %s", s)
}
