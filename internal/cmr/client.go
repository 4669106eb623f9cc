// Package cmr provides a client for NASA's Common Metadata Repository (CMR) API.
package cmr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

const (
	// DefaultBaseURL is the default CMR API base URL.
	DefaultBaseURL = "https://cmr.earthdata.nasa.gov/search"

	// DefaultProvider is the PO.DAAC cloud provider hosting the salinity
	// and sea surface height collections.
	DefaultProvider = "POCLOUD"

	// DefaultPageSize is the default number of results per page.
	DefaultPageSize = 200

	// MaxPageSize is the maximum page size supported by CMR.
	MaxPageSize = 2000

	// CMRSearchAfterHeader is the header used for cursor-based pagination.
	CMRSearchAfterHeader = "CMR-Search-After"

	// TemporalLayout formats both ends of a temporal filter.
	TemporalLayout = "2006-01-02T15:04:05Z"
)

// Client handles communication with the CMR API.
type Client struct {
	baseURL    string
	provider   string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new CMR API client.
func NewClient(baseURL, provider string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if provider == "" {
		provider = DefaultProvider
	}

	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		provider:  provider,
		userAgent: "sharkhabitat/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithUserAgent overrides the User-Agent header sent with each search.
func (c *Client) WithUserAgent(ua string) *Client {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// Provider returns the provider every search is restricted to.
func (c *Client) Provider() string {
	return c.provider
}

// SearchResult contains the results of a CMR search.
type SearchResult struct {
	Granules    []UMMGranule
	Hits        int
	SearchAfter string // Cursor for next page
	TookMs      int
}

// Search performs a granule search against CMR.
func (c *Client) Search(ctx context.Context, params *SearchParams) (*SearchResult, error) {
	searchURL := c.baseURL + "/granules.umm_json"

	queryParams := params.ToURLValues()
	queryParams.Set("provider", c.provider)

	c.logger.DebugContext(ctx, "executing CMR search",
		slog.String("url", searchURL),
		slog.String("params", queryParams.Encode()),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+queryParams.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.nasa.cmr.umm_results+json")
	req.Header.Set("User-Agent", c.userAgent)
	if params.SearchAfter != "" {
		req.Header.Set(CMRSearchAfterHeader, params.SearchAfter)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "CMR API request failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("CMR API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "CMR API returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("CMR API returned status %d: %s", resp.StatusCode, string(body))
	}

	var cmrResp UMMSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&cmrResp); err != nil {
		c.logger.ErrorContext(ctx, "failed to decode CMR response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to decode CMR response: %w", err)
	}

	granules := make([]UMMGranule, 0, len(cmrResp.Items))
	for _, item := range cmrResp.Items {
		g := item.UMM
		if g.ConceptID == "" {
			g.ConceptID = item.Meta.ConceptID
		}
		granules = append(granules, g)
	}

	searchAfter := resp.Header.Get(CMRSearchAfterHeader)

	c.logger.DebugContext(ctx, "CMR search completed",
		slog.Int("hits", cmrResp.Hits),
		slog.Int("returned", len(granules)),
		slog.Bool("has_next", searchAfter != ""),
	)

	return &SearchResult{
		Granules:    granules,
		Hits:        cmrResp.Hits,
		SearchAfter: searchAfter,
		TookMs:      cmrResp.Took,
	}, nil
}

// SearchAll follows the CMR-Search-After cursor until every hit has been
// returned. A page shorter than the page size also ends the walk.
func (c *Client) SearchAll(ctx context.Context, params *SearchParams) ([]UMMGranule, error) {
	p := *params
	p.SearchAfter = ""
	pageSize := p.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var all []UMMGranule
	for page := 1; ; page++ {
		result, err := c.Search(ctx, &p)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		all = append(all, result.Granules...)

		if result.SearchAfter == "" || len(result.Granules) < pageSize || len(all) >= result.Hits {
			break
		}
		p.SearchAfter = result.SearchAfter
	}
	return all, nil
}

// SearchParams represents parameters for CMR granule searches.
type SearchParams struct {
	ShortName []string // Collection short names

	BoundingBox string // west,south,east,north
	Temporal    string // start,end in ISO 8601 format

	// Pagination
	PageSize    int
	SearchAfter string // CMR-Search-After cursor

	// Sorting
	SortKey string // CMR sort key (e.g., "start_date")
}

// ToURLValues converts SearchParams to URL query parameters.
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}

	for _, sn := range p.ShortName {
		values.Add("short_name", sn)
	}

	if p.BoundingBox != "" {
		values.Set("bounding_box", p.BoundingBox)
	}
	if p.Temporal != "" {
		values.Set("temporal", p.Temporal)
	}

	if p.PageSize > 0 {
		values.Set("page_size", strconv.Itoa(min(p.PageSize, MaxPageSize)))
	} else {
		values.Set("page_size", strconv.Itoa(DefaultPageSize))
	}

	// Oldest first so a resumed download walks the archive in order.
	if p.SortKey != "" {
		values.Set("sort_key", p.SortKey)
	} else {
		values.Set("sort_key", "start_date")
	}

	return values
}

// SetBBox restricts the search to b.
func (p *SearchParams) SetBBox(b geo.BBox) {
	p.BoundingBox = b.String()
}

// Temporal formats an inclusive [start, end] filter.
func Temporal(start, end time.Time) string {
	return start.UTC().Format(TemporalLayout) + "," + end.UTC().Format(TemporalLayout)
}

// Window is one calendar month of a temporal range.
type Window struct {
	Start time.Time
	End   time.Time
}

// String formats the window as a CMR temporal filter.
func (w Window) String() string {
	return Temporal(w.Start, w.End)
}

// MonthWindows splits [start, end] into calendar-month windows. The first
// window starts on the first of start's month and the last is clipped to end.
func MonthWindows(start, end time.Time) []Window {
	start, end = start.UTC(), end.UTC()
	var out []Window
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		next := cur.AddDate(0, 1, 0)
		w := Window{Start: cur, End: next.Add(-time.Second)}
		if w.End.After(end) {
			w.End = end
		}
		out = append(out, w)
		cur = next
	}
	return out
}
