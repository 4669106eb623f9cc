package cmr

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gostac "github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/sharkhabitat/internal/stac"
)

// TranslateGranuleToItem converts a CMR UMM-G granule to a STAC Item.
func TranslateGranuleToItem(granule *UMMGranule, collectionID, baseURL, stacVersion string) (*stac.Item, error) {
	if granule.GranuleUR == "" {
		return nil, fmt.Errorf("granule has no GranuleUR")
	}

	startTime, endTime, err := granule.Span()
	if err != nil {
		return nil, fmt.Errorf("invalid temporal extent: %w", err)
	}

	item, err := stac.NewGranuleItem(stac.GranuleItem{
		ID:         granule.GranuleUR,
		Collection: collectionID,
		Start:      startTime,
		End:        endTime,
		BBox:       granule.BBox(),
		DataURL:    granule.DataURL(),
	}, baseURL, stacVersion)
	if err != nil {
		return nil, err
	}

	// Polygons carry more detail than the box footprint.
	geom, err := granule.Footprint()
	if err != nil {
		return nil, fmt.Errorf("failed to get geometry: %w", err)
	}
	if geom != nil {
		item.Geometry = json.RawMessage(geom)
	}

	if len(granule.Platforms) > 0 {
		platform := granule.Platforms[0]
		item.Properties["platform"] = strings.ToLower(platform.ShortName)

		if len(platform.Instruments) > 0 {
			instruments := make([]string, len(platform.Instruments))
			for i, inst := range platform.Instruments {
				instruments[i] = strings.ToLower(inst.ShortName)
			}
			item.Properties["instruments"] = instruments
		}
	}

	if granule.CollectionReference.ShortName != "" {
		item.Properties["cmr:short_name"] = granule.CollectionReference.ShortName
	}
	if granule.ConceptID != "" {
		item.Properties["cmr:concept_id"] = granule.ConceptID
	}
	if granule.DataGranule != nil && granule.DataGranule.ProductionDateTime != "" {
		if t, err := parseTime(granule.DataGranule.ProductionDateTime); err == nil {
			item.Properties["processing:datetime"] = t.Format(time.RFC3339)
		}
	}

	addAssets(granule, item)
	return item, nil
}

// addAssets adds browse and auxiliary links to the item. The NetCDF data
// asset is set by stac.NewGranuleItem.
func addAssets(granule *UMMGranule, item *stac.Item) {
	if browseURL := granule.BrowseURL(); browseURL != "" {
		item.Assets["thumbnail"] = &gostac.Asset{
			Href:  browseURL,
			Title: "Thumbnail",
			Type:  "image/png",
			Roles: []string{"thumbnail"},
		}
	}

	for _, relURL := range granule.RelatedUrls {
		if relURL.Type == "GET DATA" || relURL.Type == "GET RELATED VISUALIZATION" {
			continue
		}

		key := strings.ToLower(strings.ReplaceAll(relURL.Type, " ", "_"))
		if _, exists := item.Assets[key]; exists {
			continue
		}

		mimeType := relURL.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}

		item.Assets[key] = &gostac.Asset{
			Href:        relURL.URL,
			Title:       relURL.Description,
			Type:        mimeType,
			Description: relURL.Description,
		}
	}
}
