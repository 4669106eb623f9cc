// Package oceancolor builds download targets for NASA OceanColor Level-3
// mapped products and queries the OceanColor file search service.
package oceancolor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL serves files by name.
	DefaultBaseURL = "https://oceandata.sci.gsfc.nasa.gov/ob/getfile/"

	// DefaultSearchURL is the file search service.
	DefaultSearchURL = "https://oceandata.sci.gsfc.nasa.gov/api/file_search"
)

// Client builds file URLs and searches for published files.
type Client struct {
	baseURL    string
	searchURL  string
	platform   string
	resolution string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new OceanColor client.
func NewClient(baseURL, searchURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL:    baseURL,
		searchURL:  searchURL,
		platform:   DefaultPlatform,
		resolution: DefaultResolution,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
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

// WithPlatform overrides the platform prefix and resolution of file names.
func (c *Client) WithPlatform(platform, resolution string) *Client {
	if platform != "" {
		c.platform = platform
	}
	if resolution != "" {
		c.resolution = resolution
	}
	return c
}

// URL returns the download URL of a file name.
func (c *Client) URL(name string) string {
	return c.baseURL + name
}

// File is one expected product file.
type File struct {
	Name   string
	URL    string
	Period Period
}

// Request selects the files of one product.
type Request struct {
	Product   string
	Composite Composite
	Start     time.Time
	End       time.Time
	// Every thins daily requests to one day in Every.
	Every int
}

// Files synthesises the file names of a request from the composite
// calendar. Files are not checked for existence.
func (c *Client) Files(req Request) ([]File, error) {
	p, err := LookupProduct(req.Product)
	if err != nil {
		return nil, err
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("end %s is before start %s", req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	}

	var periods []Period
	switch req.Composite {
	case Daily:
		periods = DailyPeriods(req.Start, req.End, req.Every)
	case EightDay, "":
		req.Composite = EightDay
		periods = EightDayPeriods(req.Start, req.End)
	default:
		return nil, fmt.Errorf("unsupported composite %q", req.Composite)
	}

	files := make([]File, len(periods))
	for i, period := range periods {
		name := FileName(c.platform, req.Composite, p, period, c.resolution)
		files[i] = File{Name: name, URL: c.URL(name), Period: period}
	}
	return files, nil
}

// SearchParams are the file search query parameters.
type SearchParams struct {
	// Pattern is a file name pattern with * wildcards.
	Pattern string
	Start   time.Time
	End     time.Time
}

// ToURLValues converts SearchParams to query parameters.
func (p *SearchParams) ToURLValues() url.Values {
	values := url.Values{}
	values.Set("search", p.Pattern)
	if !p.Start.IsZero() {
		values.Set("sdate", p.Start.UTC().Format(time.DateOnly))
	}
	if !p.End.IsZero() {
		values.Set("edate", p.End.UTC().Format(time.DateOnly))
	}
	values.Set("results_as_file", "1")
	values.Set("std_only", "1")
	return values
}

// Search returns the names of published files matching params.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]string, error) {
	searchURL := c.searchURL + "?" + params.ToURLValues().Encode()

	c.logger.DebugContext(ctx, "executing OceanColor file search",
		slog.String("url", searchURL),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", "sharkhabitat/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "OceanColor search request failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("OceanColor search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.ErrorContext(ctx, "OceanColor search returned non-200 status",
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(body)),
		)
		return nil, fmt.Errorf("OceanColor search returned status %d: %s", resp.StatusCode, string(body))
	}

	var names []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "No Results") {
			continue
		}
		// Lines may carry a checksum before the name.
		fields := strings.Fields(line)
		names = append(names, fields[len(fields)-1])
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	c.logger.DebugContext(ctx, "OceanColor search completed",
		slog.Int("file_count", len(names)),
	)
	return names, nil
}

// Published filters files down to those the search service knows about.
func (c *Client) Published(ctx context.Context, req Request, files []File) ([]File, error) {
	if len(files) == 0 {
		return nil, nil
	}
	p, err := LookupProduct(req.Product)
	if err != nil {
		return nil, err
	}
	composite := req.Composite
	if composite == "" {
		composite = EightDay
	}
	pattern := fmt.Sprintf("%s.*.L3m.%s.%s.%s.%s.nc", c.platform, composite, p.Suite, p.Variable, c.resolution)
	names, err := c.Search(ctx, SearchParams{
		Pattern: pattern,
		Start:   files[0].Period.Start,
		End:     files[len(files)-1].Period.End,
	})
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	var out []File
	for _, f := range files {
		if known[f.Name] {
			out = append(out, f)
		} else {
			c.logger.DebugContext(ctx, "file not published", slog.String("file", f.Name))
		}
	}
	return out, nil
}
