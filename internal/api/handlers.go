package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	gostac "github.com/planetlabs/go-stac"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/internal/granules"
	"github.com/robert-malhotra/sharkhabitat/internal/join"
	"github.com/robert-malhotra/sharkhabitat/internal/pipeline"
	intstac "github.com/robert-malhotra/sharkhabitat/internal/stac"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// MaxSamplePoints caps the points of one sample request.
const MaxSamplePoints = 10000

// GranuleIndex is the read side of the granule index.
type GranuleIndex interface {
	List(ctx context.Context, f granules.Filter) ([]granules.Record, error)
	Count(ctx context.Context, f granules.Filter) (int, error)
	Get(ctx context.Context, collection, id string) (*granules.Record, error)
	Collections(ctx context.Context) ([]granules.CollectionSummary, error)
}

// Options describe the catalog.
type Options struct {
	BaseURL     string
	Title       string
	Description string
	Version     string
}

// Handlers contains all HTTP handlers of the service.
type Handlers struct {
	opts   Options
	index  GranuleIndex
	layers []pipeline.Layer
	logger *slog.Logger
}

// NewHandlers creates a new Handlers instance. index may be nil, in which
// case the catalog has no collections.
func NewHandlers(opts Options, index GranuleIndex, layers []pipeline.Layer, logger *slog.Logger) *Handlers {
	if opts.Version == "" {
		opts.Version = intstac.Version
	}
	if opts.Title == "" {
		opts.Title = "Shark habitat granules"
	}
	if opts.Description == "" {
		opts.Description = "Environmental granules indexed for the shark habitat training set"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{opts: opts, index: index, layers: layers, logger: logger}
}

// Health reports liveness and what the server has loaded.
// GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"layers": len(h.layers),
		"index":  h.index != nil,
	})
}

// LandingPage returns the root catalog.
// GET /
func (h *Handlers) LandingPage(w http.ResponseWriter, r *http.Request) {
	baseURL := h.opts.BaseURL

	landing := intstac.NewLandingPage(
		"sharkhabitat",
		h.opts.Title,
		h.opts.Description,
		h.opts.Version,
		intstac.DefaultConformance(),
	)

	landing.AddLink("self", baseURL+"/", intstac.MediaTypeJSON)
	landing.AddLink("root", baseURL+"/", intstac.MediaTypeJSON)
	landing.AddLink("conformance", baseURL+"/conformance", intstac.MediaTypeJSON)
	landing.AddLink("data", baseURL+"/collections", intstac.MediaTypeJSON)
	landing.AddLink("sources", baseURL+"/sources", intstac.MediaTypeJSON)
	landing.Links = append(landing.Links, &gostac.Link{
		Rel:    "sample",
		Href:   baseURL + "/sample",
		Type:   intstac.MediaTypeJSON,
		Method: http.MethodPost,
	})

	WriteJSON(w, http.StatusOK, landing)
}

// Conformance returns the conformance classes supported by this API.
// GET /conformance
func (h *Handlers) Conformance(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{
		"conformsTo": intstac.DefaultConformance(),
	})
}

// SourceInfo describes one loaded layer.
type SourceInfo struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Samples   int       `json:"samples"`
	BBox      []float64 `json:"bbox,omitempty"`
	Strategy  string    `json:"strategy"`
	Normalize bool      `json:"normalize"`
}

// Sources lists the layers available to /sample.
// GET /sources
func (h *Handlers) Sources(w http.ResponseWriter, r *http.Request) {
	out := make([]SourceInfo, len(h.layers))
	for i, l := range h.layers {
		out[i] = SourceInfo{
			Name:      l.Name,
			Kind:      l.Kind(),
			Samples:   l.Field.Len(),
			Strategy:  l.Options.Strategy.String(),
			Normalize: l.Options.Normalize,
		}
		if b := l.Field.BBox(); !b.IsEmpty() {
			out[i].BBox = b.Slice()
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sources": out})
}

// SamplePoint is one requested location.
type SamplePoint struct {
	Time time.Time `json:"time"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
}

// SampleRequest is the body of POST /sample.
type SampleRequest struct {
	Points []SamplePoint `json:"points"`
}

// SampleRow holds the values attached to one point. A nil value means the
// source had no usable value there.
type SampleRow struct {
	SamplePoint
	Values map[string]*float64 `json:"values"`
	DaySin float64             `json:"day_sin"`
	DayCos float64             `json:"day_cos"`
}

// SampleResponse is the body returned by POST /sample.
type SampleResponse struct {
	Sources []string          `json:"sources"`
	Skipped map[string]string `json:"skipped,omitempty"`
	Rows    []SampleRow       `json:"rows"`
}

// Sample attaches the nearest value of every layer to the requested points.
// POST /sample
func (h *Handlers) Sample(w http.ResponseWriter, r *http.Request) {
	if len(h.layers) == 0 {
		WriteUnavailable(w, "no environmental sources are loaded")
		return
	}

	var req SampleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteBadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if len(req.Points) == 0 {
		WriteInvalidParameter(w, "points must not be empty")
		return
	}
	if len(req.Points) > MaxSamplePoints {
		WriteInvalidParameter(w, fmt.Sprintf("at most %d points per request, got %d", MaxSamplePoints, len(req.Points)))
		return
	}

	points := make([]field.Point, len(req.Points))
	for i, p := range req.Points {
		if p.Time.IsZero() {
			WriteInvalidParameter(w, fmt.Sprintf("point %d: time is required", i))
			return
		}
		if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 || math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
			WriteInvalidParameter(w, fmt.Sprintf("point %d: coordinates out of range", i))
			return
		}
		points[i] = field.Point{Time: p.Time.UTC(), Lat: p.Lat, Lon: p.Lon, Label: field.Presence}
	}

	joiner := join.New(join.Options{DropIncomplete: false, Parallel: 1}).WithLogger(h.logger)
	table, err := joiner.Join(r.Context(), points, pipeline.LayerSources(h.layers))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "sample failed",
			slog.String("request_id", GetRequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		WriteInternalError(w, "failed to sample sources")
		return
	}

	resp := SampleResponse{Sources: table.Sources, Rows: make([]SampleRow, len(table.Rows))}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}
	for _, rep := range table.Report {
		if rep.Status == join.StatusSkipped {
			if resp.Skipped == nil {
				resp.Skipped = make(map[string]string)
			}
			resp.Skipped[rep.Name] = rep.Error.Error()
		}
	}
	for i, row := range table.Rows {
		values := make(map[string]*float64, len(table.Sources))
		for k, name := range table.Sources {
			if v := row.Values[k]; !math.IsNaN(v) {
				values[name] = &v
			} else {
				values[name] = nil
			}
		}
		resp.Rows[i] = SampleRow{
			SamplePoint: req.Points[i],
			Values:      values,
			DaySin:      row.DaySin,
			DayCos:      row.DayCos,
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// Collections returns every indexed collection.
// GET /collections
func (h *Handlers) Collections(w http.ResponseWriter, r *http.Request) {
	baseURL := h.opts.BaseURL

	var summaries []granules.CollectionSummary
	if h.index != nil {
		var err error
		summaries, err = h.index.Collections(r.Context())
		if err != nil {
			h.logger.ErrorContext(r.Context(), "failed to list collections", slog.String("error", err.Error()))
			WriteInternalError(w, "failed to list collections")
			return
		}
	}

	collections := make([]*gostac.Collection, 0, len(summaries))
	for _, s := range summaries {
		collections = append(collections, h.buildCollection(s))
	}

	response := intstac.NewCollectionsList(collections)
	response.Links = append(response.Links,
		&gostac.Link{Rel: "self", Href: baseURL + "/collections", Type: intstac.MediaTypeJSON},
		&gostac.Link{Rel: "root", Href: baseURL + "/", Type: intstac.MediaTypeJSON},
	)

	WriteJSON(w, http.StatusOK, response)
}

// Collection returns a single collection by ID.
// GET /collections/{collectionId}
func (h *Handlers) Collection(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.findCollection(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, h.buildCollection(*summary))
}

// Items returns one page of granule items of a collection.
// GET /collections/{collectionId}/items
func (h *Handlers) Items(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.findCollection(w, r)
	if !ok {
		return
	}

	q, err := intstac.ParseItemsQuery(r)
	if err != nil {
		WriteInvalidParameter(w, err.Error())
		return
	}

	filter := granules.Filter{
		Collection: summary.Collection,
		Start:      q.Start,
		End:        q.End,
		BBox:       q.BBox,
	}
	total, err := h.index.Count(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to count granules", slog.String("error", err.Error()))
		WriteInternalError(w, "failed to count granules")
		return
	}

	filter.Limit, filter.Offset = q.Limit, q.Offset()
	records, err := h.index.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list granules", slog.String("error", err.Error()))
		WriteInternalError(w, "failed to list granules")
		return
	}

	items := make([]*gostac.Item, 0, len(records))
	for i := range records {
		item, err := h.recordItem(&records[i])
		if err != nil {
			h.logger.WarnContext(r.Context(), "skipping granule",
				slog.String("url", records[i].URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		items = append(items, item)
	}

	itemsURL := fmt.Sprintf("%s/collections/%s/items", h.opts.BaseURL, summary.Collection)
	ic := intstac.NewItemCollection(items)
	ic.NumberMatched = &total
	ic.AddLink("self", itemsURL, intstac.MediaTypeGeoJSON)
	ic.AddLink("collection", fmt.Sprintf("%s/collections/%s", h.opts.BaseURL, summary.Collection), intstac.MediaTypeJSON)
	ic.AddLink("root", h.opts.BaseURL+"/", intstac.MediaTypeJSON)
	ic.Links = append(ic.Links, intstac.BuildPaginationLinks(intstac.PaginationInfo{
		BaseURL:       itemsURL,
		CurrentPage:   q.Page,
		Limit:         q.Limit,
		TotalCount:    &total,
		ReturnedCount: len(items),
		QueryParams:   r.URL.Query(),
	})...)

	WriteGeoJSON(w, http.StatusOK, ic)
}

// Item returns a single granule item.
// GET /collections/{collectionId}/items/{itemId}
func (h *Handlers) Item(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.findCollection(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemId")

	rec, err := h.index.Get(r.Context(), summary.Collection, itemID)
	if errors.Is(err, granules.ErrNotFound) {
		WriteNotFound(w, fmt.Sprintf("item %q not found", itemID))
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to get granule", slog.String("error", err.Error()))
		WriteInternalError(w, "failed to get granule")
		return
	}

	item, err := h.recordItem(rec)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build item", slog.String("error", err.Error()))
		WriteInternalError(w, "failed to build item")
		return
	}
	WriteGeoJSON(w, http.StatusOK, item)
}

// findCollection resolves the collectionId URL parameter, writing the error
// response itself when it fails.
func (h *Handlers) findCollection(w http.ResponseWriter, r *http.Request) (*granules.CollectionSummary, bool) {
	collectionID := chi.URLParam(r, "collectionId")
	if collectionID == "" {
		WriteBadRequest(w, "collection ID is required")
		return nil, false
	}
	if h.index == nil {
		WriteNotFound(w, fmt.Sprintf("collection %q not found", collectionID))
		return nil, false
	}

	summaries, err := h.index.Collections(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list collections", slog.String("error", err.Error()))
		WriteInternalError(w, "failed to list collections")
		return nil, false
	}
	for i := range summaries {
		if summaries[i].Collection == collectionID {
			return &summaries[i], true
		}
	}
	WriteNotFound(w, fmt.Sprintf("collection %q not found", collectionID))
	return nil, false
}

func (h *Handlers) buildCollection(s granules.CollectionSummary) *gostac.Collection {
	baseURL := h.opts.BaseURL
	c := intstac.NewCollection(s.Collection, s.Collection, fmt.Sprintf("Granules of %s", s.Collection), h.opts.Version)

	interval := []any{nil, nil}
	if !s.Start.IsZero() {
		interval[0] = s.Start.UTC().Format(time.RFC3339)
	}
	if !s.End.IsZero() {
		interval[1] = s.End.UTC().Format(time.RFC3339)
	}
	c.Extent = &gostac.Extent{
		Spatial:  &gostac.SpatialExtent{Bbox: [][]float64{{-180, -90, 180, 90}}},
		Temporal: &gostac.TemporalExtent{Interval: [][]any{interval}},
	}
	c.Summaries["granules"] = s.Total
	c.Summaries["downloaded"] = s.Downloaded
	c.Summaries["missing"] = s.Missing

	collURL := baseURL + "/collections/" + s.Collection
	c.Links = append(c.Links,
		&gostac.Link{Rel: "self", Href: collURL, Type: intstac.MediaTypeJSON},
		&gostac.Link{Rel: "items", Href: collURL + "/items", Type: intstac.MediaTypeGeoJSON},
		&gostac.Link{Rel: "parent", Href: baseURL + "/", Type: intstac.MediaTypeJSON},
		&gostac.Link{Rel: "root", Href: baseURL + "/", Type: intstac.MediaTypeJSON},
	)
	return c
}

// recordItem returns the stored STAC item of a record, or builds one from
// its columns. A downloaded record gains a local asset.
func (h *Handlers) recordItem(rec *granules.Record) (*gostac.Item, error) {
	if len(rec.Item) > 0 {
		item := &gostac.Item{}
		if err := json.Unmarshal(rec.Item, item); err != nil {
			return nil, fmt.Errorf("decode stored item: %w", err)
		}
		if rec.LocalPath != "" {
			if item.Assets == nil {
				item.Assets = make(map[string]*gostac.Asset)
			}
			item.Assets["local"] = &gostac.Asset{
				Href:  rec.LocalPath,
				Title: "Downloaded copy",
				Type:  intstac.MediaTypeNetCDF,
				Roles: []string{"data", "local"},
			}
		}
		setStatus(item, rec)
		return item, nil
	}

	item, err := intstac.NewGranuleItem(intstac.GranuleItem{
		ID:         rec.ID,
		Collection: rec.Collection,
		Start:      rec.Start,
		End:        rec.End,
		BBox:       boxOrNil(rec.BBox),
		DataURL:    rec.URL,
		LocalPath:  rec.LocalPath,
	}, h.opts.BaseURL, h.opts.Version)
	if err != nil {
		return nil, err
	}
	setStatus(item, rec)
	return item, nil
}

func setStatus(item *gostac.Item, rec *granules.Record) {
	if item.Properties == nil {
		item.Properties = make(map[string]any)
	}
	item.Properties["sharkhabitat:status"] = string(rec.Status)
	if rec.Reason != "" {
		item.Properties["sharkhabitat:reason"] = rec.Reason
	}
}

func boxOrNil(b *geo.BBox) *geo.BBox {
	if b == nil || b.IsEmpty() {
		return nil
	}
	return b
}
