package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/sharkhabitat/internal/backend"
	"github.com/robert-malhotra/sharkhabitat/internal/cmr"
	"github.com/robert-malhotra/sharkhabitat/internal/config"
	"github.com/robert-malhotra/sharkhabitat/internal/download"
	"github.com/robert-malhotra/sharkhabitat/internal/granules"
	"github.com/robert-malhotra/sharkhabitat/internal/oceancolor"
)

type fetchFlags struct {
	start        string
	end          string
	sources      []string
	indexOnly    bool
	retryMissing bool
	verify       bool
}

func newFetchCmd(a *app) *cobra.Command {
	f := &fetchFlags{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Index and download source granules",
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&f.start, "start", "", "first day to fetch (default BUILD_START)")
	pf.StringVar(&f.end, "end", "", "last day to fetch (default BUILD_END)")
	pf.StringSliceVar(&f.sources, "source", nil, "restrict to these catalog sources")
	pf.BoolVar(&f.indexOnly, "index-only", false, "record granules in the index without downloading")
	pf.BoolVar(&f.retryMissing, "retry-missing", false, "retry granules an earlier run marked missing")

	oc := &cobra.Command{
		Use:   "oceancolor",
		Short: "Fetch MODIS composites from the OceanColor archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("verify") {
				f.verify = a.cfg.OceanColor.Verify
			}
			client := oceancolor.NewClient(a.cfg.OceanColor.BaseURL, a.cfg.OceanColor.SearchURL, a.cfg.OceanColor.Timeout).
				WithLogger(a.logger).
				WithPlatform(a.cfg.OceanColor.Platform, a.cfg.OceanColor.Resolution)
			return a.fetch(cmd.Context(), backend.NewOceanColorSource(client, a.logger), config.FetchOceanColor, f)
		},
	}
	oc.Flags().BoolVar(&f.verify, "verify", false, "keep only files the archive search lists (default OCEANCOLOR_VERIFY)")

	cm := &cobra.Command{
		Use:   "cmr",
		Short: "Fetch granules found through NASA CMR",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := cmr.NewClient(a.cfg.CMR.BaseURL, a.cfg.CMR.Provider, a.cfg.CMR.Timeout).
				WithLogger(a.logger).
				WithUserAgent(a.cfg.Download.UserAgent)
			src := cmr.NewCMRSource(client, a.cfg.CMR.BaseURL, a.logger).WithPause(a.cfg.CMR.WindowPause)
			return a.fetch(cmd.Context(), src, config.FetchCMR, f)
		},
	}

	cmd.AddCommand(oc, cm)
	return cmd
}

// fetch syncs every catalog source served by backendName. A failing source
// is logged and the others continue; cancellation stops everything.
func (a *app) fetch(ctx context.Context, src backend.TargetSource, backendName string, f *fetchFlags) error {
	if f.start != "" {
		a.cfg.Build.Start = f.start
	}
	if f.end != "" {
		a.cfg.Build.End = f.end
	}
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	start, end, err := a.cfg.Build.Window()
	if err != nil {
		return err
	}

	sources, err := a.selectSources(backendName, f.sources)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		a.logger.WarnContext(ctx, "no catalog source uses this backend", slog.String("backend", backendName))
		return nil
	}

	creds, err := a.cfg.Earthdata.Credentials()
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}
	if creds.IsZero() {
		a.logger.WarnContext(ctx, "no Earthdata credentials, protected downloads will fail")
	}

	if err := os.MkdirAll(filepath.Dir(a.cfg.Paths.IndexDB), 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	store, err := granules.Open(a.cfg.Paths.IndexDB, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := granules.SyncOptions{IndexOnly: f.indexOnly, RetryMissing: f.retryMissing}
	var errs []error
	for _, sc := range sources {
		logger := a.logger.With(slog.String("source", sc.Name))

		req, err := sc.Request(start, end, f.verify)
		if err != nil {
			return err
		}
		dl, err := download.New(a.cfg.Download.Config(sc.Path(a.cfg.Paths.DataDir), creds, a.cfg.Earthdata.Host))
		if err != nil {
			return err
		}
		dl.WithLogger(logger)

		stats, err := store.Sync(ctx, src, req, dl, opts)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.ErrorContext(ctx, "source fetch failed", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", sc.Name, err))
			continue
		}
		logger.InfoContext(ctx, "source fetched",
			slog.Int("listed", stats.Listed),
			slog.Int("new", stats.New),
			slog.Int("downloaded", stats.Downloaded),
			slog.Int("cached", stats.Cached),
			slog.Int("missing", stats.Missing),
			slog.String("dir", dl.Dir()),
		)
	}
	return errors.Join(errs...)
}

// selectSources returns the catalog sources of backendName, restricted to
// names when given.
func (a *app) selectSources(backendName string, names []string) ([]*config.SourceConfig, error) {
	all := a.catalog.Fetchable(backendName)
	if len(names) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		if !a.catalog.Has(n) {
			return nil, fmt.Errorf("unknown source %q", n)
		}
		want[n] = true
	}
	var out []*config.SourceConfig
	for _, s := range all {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}
