package cmr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/robert-malhotra/sharkhabitat/internal/backend"
	"github.com/robert-malhotra/sharkhabitat/internal/stac"
)

// CMRSource implements backend.TargetSource for NASA's CMR API. Requests are
// split into calendar months and each month is paged to exhaustion.
type CMRSource struct {
	client  *Client
	baseURL string
	pause   time.Duration
	logger  *slog.Logger
}

// NewCMRSource creates a new CMR source. baseURL roots the links of the
// STAC items attached to each granule.
func NewCMRSource(client *Client, baseURL string, logger *slog.Logger) *CMRSource {
	return &CMRSource{
		client:  client,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// WithPause sets a delay between monthly window queries.
func (s *CMRSource) WithPause(d time.Duration) *CMRSource {
	s.pause = d
	return s
}

// Name returns the source name.
func (s *CMRSource) Name() string {
	return "cmr"
}

// Granules lists the NetCDF links of req.Collection, a CMR short name. A
// window whose query fails is logged and skipped with whatever pages it
// returned; the call fails only when every window fails.
func (s *CMRSource) Granules(ctx context.Context, req *backend.Request) ([]backend.Granule, error) {
	if req.Collection == "" {
		return nil, fmt.Errorf("CMR search needs a collection short name")
	}
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("end %s is before start %s", req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	}

	windows := MonthWindows(req.Start, req.End)
	s.logger.InfoContext(ctx, "querying CMR",
		slog.String("short_name", req.Collection),
		slog.String("provider", s.client.Provider()),
		slog.Int("windows", len(windows)),
	)

	var (
		out    []backend.Granule
		failed int
		errs   []error
	)
	for i, w := range windows {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.pause):
			}
		}

		params := &SearchParams{
			ShortName: []string{req.Collection},
			Temporal:  w.String(),
			PageSize:  DefaultPageSize,
		}
		if req.BBox != nil {
			params.SetBBox(*req.BBox)
		}

		found, err := s.client.SearchAll(ctx, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed++
			errs = append(errs, fmt.Errorf("window %s: %w", w, err))
			s.logger.WarnContext(ctx, "CMR window query failed",
				slog.String("window", w.String()),
				slog.Int("partial", len(found)),
				slog.String("error", err.Error()),
			)
		}
		if len(found) == 0 && err == nil {
			s.logger.DebugContext(ctx, "no granules in window", slog.String("window", w.String()))
		}

		for i := range found {
			out = append(out, s.toGranules(ctx, req.Collection, &found[i])...)
		}
	}

	if failed == len(windows) && len(windows) > 0 {
		return nil, fmt.Errorf("all CMR queries failed: %w", errors.Join(errs...))
	}

	total := len(out)
	out = backend.Dedupe(out)
	s.logger.InfoContext(ctx, "CMR search finished",
		slog.Int("links", total),
		slog.Int("unique", len(out)),
		slog.Int("failed_windows", failed),
	)
	return out, nil
}

// toGranules returns one granule per NetCDF link of g.
func (s *CMRSource) toGranules(ctx context.Context, collection string, g *UMMGranule) []backend.Granule {
	links := g.DataLinks()
	if len(links) == 0 {
		s.logger.DebugContext(ctx, "granule has no NetCDF link", slog.String("granule_ur", g.GranuleUR))
		return nil
	}

	start, end, err := g.Span()
	if err != nil {
		s.logger.WarnContext(ctx, "bad granule temporal extent",
			slog.String("granule_ur", g.GranuleUR),
			slog.String("error", err.Error()),
		)
	}

	var raw json.RawMessage
	if item, err := TranslateGranuleToItem(g, collection, s.baseURL, stac.Version); err == nil {
		raw, _ = json.Marshal(item)
	} else {
		s.logger.WarnContext(ctx, "failed to translate granule",
			slog.String("granule_ur", g.GranuleUR),
			slog.String("error", err.Error()),
		)
	}

	bbox := g.BBox()
	out := make([]backend.Granule, 0, len(links))
	for _, href := range links {
		out = append(out, backend.Granule{
			ID:         g.GranuleUR,
			Collection: collection,
			URL:        href,
			Name:       linkName(href),
			Start:      start,
			End:        end,
			BBox:       bbox,
			Item:       raw,
		})
	}
	return out
}

func linkName(href string) string {
	if u, _, ok := strings.Cut(href, "?"); ok {
		href = u
	}
	return path.Base(href)
}
