// Package stac provides STAC API types and utilities, wrapping planetlabs/go-stac
// for core types and adding the few API-specific types the granule catalog needs.
package stac

import (
	"fmt"
	"time"

	gostac "github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// Version is the STAC version written into every document.
const Version = "1.0.0"

// Re-export core types from planetlabs/go-stac for convenience
type (
	Item       = gostac.Item
	Collection = gostac.Collection
	Catalog    = gostac.Catalog
	Asset      = gostac.Asset
	Link       = gostac.Link
	Provider   = gostac.Provider
	Extent     = gostac.Extent
)

// Media types used in links and assets.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeGeoJSON = "application/geo+json"
	MediaTypeNetCDF  = "application/x-netcdf"
)

// ItemCollection represents a STAC ItemCollection (GeoJSON FeatureCollection).
type ItemCollection struct {
	Type           string         `json:"type"` // "FeatureCollection"
	Features       []*gostac.Item `json:"features"`
	Links          []*gostac.Link `json:"links"`
	NumberMatched  *int           `json:"numberMatched,omitempty"`
	NumberReturned int            `json:"numberReturned"`
}

// NewItemCollection creates a new ItemCollection with the given items.
func NewItemCollection(items []*gostac.Item) *ItemCollection {
	if items == nil {
		items = []*gostac.Item{}
	}
	return &ItemCollection{
		Type:           "FeatureCollection",
		Features:       items,
		Links:          make([]*gostac.Link, 0),
		NumberReturned: len(items),
	}
}

// AddLink adds a link to the ItemCollection.
func (ic *ItemCollection) AddLink(rel, href, mediaType string) {
	ic.Links = append(ic.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// NewItem creates a new STAC Item with the given ID and collection.
func NewItem(id, collection, version string) *gostac.Item {
	return &gostac.Item{
		Version:    version,
		Id:         id,
		Collection: collection,
		Properties: make(map[string]any),
		Assets:     make(map[string]*gostac.Asset),
		Links:      make([]*gostac.Link, 0),
	}
}

// GranuleItem describes one remote data file for NewGranuleItem.
type GranuleItem struct {
	ID         string
	Collection string
	Start      time.Time
	End        time.Time
	BBox       *geo.BBox
	DataURL    string
	LocalPath  string
}

// NewGranuleItem builds a STAC Item for a granule with a start/end datetime
// range, a polygon footprint when the box is known, a NetCDF data asset and
// the standard self/parent/collection/root links under baseURL.
func NewGranuleItem(g GranuleItem, baseURL, version string) (*gostac.Item, error) {
	if g.ID == "" {
		return nil, fmt.Errorf("granule has no ID")
	}
	item := NewItem(g.ID, g.Collection, version)

	if g.BBox != nil && !g.BBox.IsEmpty() {
		poly, err := g.BBox.Polygon()
		if err != nil {
			return nil, fmt.Errorf("failed to build footprint: %w", err)
		}
		item.Geometry = poly
		item.Bbox = g.BBox.Slice()
	}

	switch {
	case !g.Start.IsZero():
		end := g.End
		if end.IsZero() {
			end = g.Start
		}
		item.Properties["datetime"] = nil
		item.Properties["start_datetime"] = g.Start.UTC().Format(time.RFC3339)
		item.Properties["end_datetime"] = end.UTC().Format(time.RFC3339)
	case !g.End.IsZero():
		item.Properties["datetime"] = g.End.UTC().Format(time.RFC3339)
	default:
		item.Properties["datetime"] = nil
	}

	if g.DataURL != "" {
		item.Assets["data"] = &gostac.Asset{
			Href:  g.DataURL,
			Title: "Data",
			Type:  MediaTypeNetCDF,
			Roles: []string{"data"},
		}
	}
	if g.LocalPath != "" {
		item.Assets["local"] = &gostac.Asset{
			Href:  g.LocalPath,
			Title: "Downloaded copy",
			Type:  MediaTypeNetCDF,
			Roles: []string{"data", "local"},
		}
	}

	collURL := fmt.Sprintf("%s/collections/%s", baseURL, g.Collection)
	item.Links = append(item.Links,
		&gostac.Link{Rel: "self", Href: collURL + "/items/" + g.ID, Type: MediaTypeGeoJSON},
		&gostac.Link{Rel: "parent", Href: collURL, Type: MediaTypeJSON},
		&gostac.Link{Rel: "collection", Href: collURL, Type: MediaTypeJSON},
		&gostac.Link{Rel: "root", Href: baseURL + "/", Type: MediaTypeJSON},
	)
	return item, nil
}

// NewCollection creates a new STAC Collection with the given ID.
func NewCollection(id, title, description, version string) *gostac.Collection {
	return &gostac.Collection{
		Version:     version,
		Id:          id,
		Title:       title,
		Description: description,
		License:     "proprietary",
		Links:       make([]*gostac.Link, 0),
		Assets:      make(map[string]*gostac.Asset),
		Summaries:   make(map[string]any),
	}
}

// CollectionsList represents a list of collections response.
type CollectionsList struct {
	Collections []*gostac.Collection `json:"collections"`
	Links       []*gostac.Link       `json:"links"`
}

// NewCollectionsList creates a new CollectionsList.
func NewCollectionsList(collections []*gostac.Collection) *CollectionsList {
	if collections == nil {
		collections = []*gostac.Collection{}
	}
	return &CollectionsList{
		Collections: collections,
		Links:       make([]*gostac.Link, 0),
	}
}

// LandingPage represents the STAC API landing page response.
type LandingPage struct {
	Type        string         `json:"type"` // "Catalog"
	Id          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	StacVersion string         `json:"stac_version"`
	ConformsTo  []string       `json:"conformsTo,omitempty"`
	Links       []*gostac.Link `json:"links"`
}

// NewLandingPage creates a new landing page response.
func NewLandingPage(id, title, description, version string, conformsTo []string) *LandingPage {
	return &LandingPage{
		Type:        "Catalog",
		Id:          id,
		Title:       title,
		Description: description,
		StacVersion: version,
		ConformsTo:  conformsTo,
		Links:       make([]*gostac.Link, 0),
	}
}

// AddLink adds a link to the landing page.
func (lp *LandingPage) AddLink(rel, href, mediaType string) {
	lp.Links = append(lp.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// Standard STAC conformance URIs
const (
	ConformanceCore           = "https://api.stacspec.org/v1.0.0/core"
	ConformanceOGCFeatures    = "https://api.stacspec.org/v1.0.0/ogcapi-features"
	ConformanceOGCFeatCore    = "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/core"
	ConformanceOGCFeatGeoJSON = "http://www.opengis.net/spec/ogcapi-features-1/1.0/conf/geojson"
)

// DefaultConformance returns the conformance classes of the granule catalog.
func DefaultConformance() []string {
	return []string{
		ConformanceCore,
		ConformanceOGCFeatures,
		ConformanceOGCFeatCore,
		ConformanceOGCFeatGeoJSON,
	}
}
