// Package pipeline builds the training set: occurrences are read, padded
// with pseudo-absences, joined against every environmental source and
// written as a gzip CSV.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/robert-malhotra/sharkhabitat/internal/dataset"
	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/internal/join"
	"github.com/robert-malhotra/sharkhabitat/internal/ncload"
	"github.com/robert-malhotra/sharkhabitat/internal/occurrence"
	"github.com/robert-malhotra/sharkhabitat/internal/report"
	"github.com/robert-malhotra/sharkhabitat/internal/sampler"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// ErrNoOccurrences is returned when no occurrence survives parsing and the
// time window. Nothing is written.
var ErrNoOccurrences = errors.New("no usable occurrences")

// Source is one environmental variable read from a directory of NetCDF files.
type Source struct {
	Name    string
	Spec    ncload.Spec
	Options field.Options
}

// Config describes one build.
type Config struct {
	// OccurrenceFile is the tabular occurrence export.
	OccurrenceFile string
	// Occurrence configures parsing. Its Start and End are overridden by
	// the build window.
	Occurrence occurrence.Options

	// Start and End bound the occurrences and the pseudo-absence times.
	Start time.Time
	End   time.Time

	// Ratio is the number of pseudo-absences per presence.
	Ratio int
	// Seed makes pseudo-absence draws reproducible.
	Seed uint64

	Sources []Source
	Join    join.Options

	// OutputDir receives dataset.FileName.
	OutputDir string
	// ReportPath, when set, receives a scatter plot of the final rows.
	ReportPath string
}

// Result summarises a build.
type Result struct {
	RunID       string
	Occurrences occurrence.Stats
	Presences   int
	Absences    int
	Table       *join.Table
	// OutputPath is empty when the final table had no rows.
	OutputPath string
	ReportPath string
	Duration   time.Duration
}

// Pipeline runs builds.
type Pipeline struct {
	cfg    Config
	loader *ncload.Loader
	logger *slog.Logger
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Ratio <= 0 {
		cfg.Ratio = sampler.DefaultRatio
	}
	return &Pipeline{
		cfg:    cfg,
		loader: ncload.NewLoader(),
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the pipeline and its loader.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.logger = logger
	p.loader.WithLogger(logger)
	return p
}

// Run executes one build.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logger := p.logger.With(slog.String("run_id", res.RunID))

	opts := p.cfg.Occurrence
	opts.Start, opts.End = p.cfg.Start, p.cfg.End
	presences, stats, err := occurrence.NewReader(opts).WithLogger(logger).ReadFile(p.cfg.OccurrenceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read occurrences: %w", err)
	}
	res.Occurrences = stats
	logger.InfoContext(ctx, "loaded occurrences",
		slog.Int("rows", stats.Rows),
		slog.Int("kept", stats.Kept),
		slog.Int("dropped", stats.Dropped()),
	)
	if len(presences) == 0 {
		return res, ErrNoOccurrences
	}

	s := sampler.New(p.cfg.Ratio, p.cfg.Seed)
	points := s.WithAbsences(presences, p.cfg.Start, p.cfg.End)
	res.Presences = len(presences)
	res.Absences = len(points) - len(presences)
	logger.InfoContext(ctx, "generated pseudo-absences",
		slog.Int("presences", res.Presences),
		slog.Int("absences", res.Absences),
	)

	table, err := join.New(p.cfg.Join).WithLogger(logger).Join(ctx, points, p.sources())
	if err != nil {
		return nil, fmt.Errorf("join failed: %w", err)
	}
	res.Table = table
	for _, r := range table.Report {
		attrs := []any{
			slog.String("source", r.Name),
			slog.String("status", string(r.Status)),
			slog.Int("samples", r.Samples),
			slog.Int("attached", r.Attached),
		}
		if r.Error != nil {
			attrs = append(attrs, slog.String("error", r.Error.Error()))
		}
		logger.InfoContext(ctx, "source processed", attrs...)
	}

	if len(table.Rows) == 0 {
		logger.WarnContext(ctx, "final dataset is empty, no file written")
	} else {
		out := filepath.Join(p.cfg.OutputDir, dataset.FileName)
		if err := dataset.WriteFile(out, table); err != nil {
			return nil, fmt.Errorf("failed to write dataset: %w", err)
		}
		res.OutputPath = out
		logger.InfoContext(ctx, "wrote dataset",
			slog.String("path", out),
			slog.Int("rows", len(table.Rows)),
			slog.Any("columns", table.Columns()),
		)

		if p.cfg.ReportPath != "" {
			rows := make([]field.Point, len(table.Rows))
			for i, r := range table.Rows {
				rows[i] = r.Point
			}
			title := fmt.Sprintf("Training set %s (%d rows)", res.RunID[:8], len(rows))
			if err := report.SaveScatter(p.cfg.ReportPath, rows, title); err != nil {
				// The dataset is already written.
				logger.WarnContext(ctx, "failed to write report", slog.String("error", err.Error()))
			} else {
				res.ReportPath = p.cfg.ReportPath
			}
		}
	}

	res.Duration = time.Since(started)
	logger.InfoContext(ctx, "build finished", slog.Duration("duration", res.Duration))
	return res, nil
}

func (p *Pipeline) sources() []join.Source {
	out := make([]join.Source, len(p.cfg.Sources))
	for i, src := range p.cfg.Sources {
		spec := src.Spec
		out[i] = join.Source{
			Name:    src.Name,
			Options: src.Options,
			Load: func(ctx context.Context, bounds geo.BBox) (field.Field, error) {
				return p.loader.Load(ctx, spec, bounds)
			},
		}
	}
	return out
}
