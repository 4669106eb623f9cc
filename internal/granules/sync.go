package granules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/sharkhabitat/internal/backend"
	"github.com/robert-malhotra/sharkhabitat/internal/download"
)

// Fetcher downloads one target. *download.Downloader implements it.
type Fetcher interface {
	Fetch(ctx context.Context, t download.Target) (download.Result, error)
}

// SyncOptions tune Sync.
type SyncOptions struct {
	// IndexOnly lists and records granules without downloading them.
	IndexOnly bool
	// RetryMissing also fetches granules an earlier run marked missing.
	RetryMissing bool
}

// SyncStats counts what one Sync did.
type SyncStats struct {
	Listed     int
	New        int
	Downloaded int
	Cached     int
	Missing    int
}

// Sync lists the granules of req from src, records them in the index and
// fetches every granule of req.Collection that is not downloaded yet. The
// download state is written after each file, so a cancelled Sync resumes
// from the remaining granules.
func (s *Store) Sync(ctx context.Context, src backend.TargetSource, req *backend.Request, f Fetcher, opts SyncOptions) (SyncStats, error) {
	var stats SyncStats
	logger := s.logger.With(
		slog.String("backend", src.Name()),
		slog.String("collection", req.Collection),
	)

	found, err := src.Granules(ctx, req)
	if err != nil {
		return stats, fmt.Errorf("failed to list %s granules: %w", req.Collection, err)
	}
	found = backend.Dedupe(found)
	stats.Listed = len(found)

	for _, g := range found {
		isNew, err := s.Upsert(ctx, g)
		if err != nil {
			return stats, err
		}
		if isNew {
			stats.New++
		}
	}
	logger.InfoContext(ctx, "granules indexed",
		slog.Int("listed", stats.Listed),
		slog.Int("new", stats.New),
	)

	if opts.IndexOnly {
		return stats, nil
	}

	todo, err := s.Pending(ctx, req.Collection)
	if err != nil {
		return stats, err
	}
	if opts.RetryMissing {
		missing, err := s.List(ctx, Filter{Collection: req.Collection, Status: StatusMissing})
		if err != nil {
			return stats, err
		}
		todo = append(todo, missing...)
	}

	for i, rec := range todo {
		res, err := f.Fetch(ctx, rec.Target())
		if err != nil {
			return stats, err
		}
		switch res.Status {
		case download.StatusDownloaded:
			stats.Downloaded++
		case download.StatusCached:
			stats.Cached++
		default:
			stats.Missing++
		}

		if res.OK() {
			err = s.MarkDownloaded(ctx, rec.URL, res.Path)
		} else {
			err = s.MarkMissing(ctx, rec.URL, res.Reason)
		}
		if err != nil {
			return stats, err
		}
		logger.DebugContext(ctx, "progress", slog.Int("done", i+1), slog.Int("total", len(todo)))
	}

	logger.InfoContext(ctx, "granules synced",
		slog.Int("downloaded", stats.Downloaded),
		slog.Int("cached", stats.Cached),
		slog.Int("missing", stats.Missing),
	)
	return stats, nil
}
