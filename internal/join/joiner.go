// Package join attaches environmental values to labelled points by
// nearest-neighbour lookup in space and time.
package join

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// ErrNoPoints is returned by Join when there is nothing to join.
var ErrNoPoints = errors.New("no points to join")

// LoadFunc loads a source, optionally cropped to bounds.
type LoadFunc func(ctx context.Context, bounds geo.BBox) (field.Field, error)

// Source is one environmental variable to attach.
type Source struct {
	Name    string
	Load    LoadFunc
	Options field.Options
}

// Status describes what happened to a source during a join.
type Status string

const (
	StatusAttached Status = "attached"
	StatusSkipped  Status = "skipped"
)

// SourceReport summarises one source.
type SourceReport struct {
	Name     string
	Status   Status
	Error    error
	Samples  int // field size after loading
	Attached int // points that received a value
}

// Options configure a Joiner.
type Options struct {
	// DropIncomplete removes rows missing any attached value.
	DropIncomplete bool
	// Parallel is the number of sources extracted concurrently. Values
	// below 2 process sources one after another.
	Parallel int
}

// DefaultOptions matches the reference behaviour: sequential, hard drop.
func DefaultOptions() Options {
	return Options{DropIncomplete: true, Parallel: 1}
}

// Joiner performs the spatiotemporal join.
type Joiner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Joiner.
func New(opts Options) *Joiner {
	return &Joiner{opts: opts, logger: slog.Default()}
}

// WithLogger sets a custom logger for the joiner.
func (j *Joiner) WithLogger(logger *slog.Logger) *Joiner {
	j.logger = logger
	return j
}

// Join attaches the nearest value of every source to every point. A source
// that fails to load, does not overlap the points, or cannot be indexed is
// skipped and contributes no column. Only an empty point set or context
// cancellation produce an error.
func (j *Joiner) Join(ctx context.Context, points []field.Point, sources []Source) (*Table, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	bounds := field.BBoxOf(points)

	columns := make([][]float64, len(sources))
	reports := make([]SourceReport, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	if j.opts.Parallel > 1 {
		g.SetLimit(j.opts.Parallel)
	} else {
		g.SetLimit(1)
	}
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			columns[i], reports[i] = j.extract(gctx, src, points, bounds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := &Table{Rows: make([]Row, len(points)), Report: reports}
	var kept [][]float64
	for i, r := range reports {
		if r.Status == StatusAttached {
			table.Sources = append(table.Sources, r.Name)
			kept = append(kept, columns[i])
		}
	}
	for i, p := range points {
		row := Row{Point: p, Values: make([]float64, len(kept))}
		for k, col := range kept {
			row.Values[k] = col[i]
		}
		row.DaySin, row.DayCos = DayFeatures(p.Time)
		table.Rows[i] = row
	}

	if j.opts.DropIncomplete {
		dropped := table.DropIncomplete()
		j.logger.InfoContext(ctx, "dropped incomplete rows",
			slog.Int("original", len(points)),
			slog.Int("dropped", dropped),
			slog.Int("complete", len(table.Rows)),
		)
	}
	return table, nil
}

// extract loads, indexes and queries one source. Every failure, including a
// panic inside a decoder, is converted into a skipped report.
func (j *Joiner) extract(ctx context.Context, src Source, points []field.Point, bounds geo.BBox) (values []float64, rep SourceReport) {
	rep = SourceReport{Name: src.Name, Status: StatusSkipped}
	logger := j.logger.With(slog.String("source", src.Name))

	defer func() {
		if rec := recover(); rec != nil {
			values = nil
			rep.Status = StatusSkipped
			rep.Error = fmt.Errorf("panic while processing source: %v", rec)
		}
		if rep.Status == StatusSkipped {
			logger.WarnContext(ctx, "source skipped", slog.Any("error", rep.Error))
		}
	}()

	if src.Load == nil {
		rep.Error = fmt.Errorf("source %q has no loader", src.Name)
		return nil, rep
	}
	f, err := src.Load(ctx, bounds)
	if err != nil {
		rep.Error = fmt.Errorf("load %s: %w", src.Name, err)
		return nil, rep
	}
	if f == nil || f.Len() == 0 {
		rep.Error = fmt.Errorf("load %s: %w", src.Name, field.ErrEmptyField)
		return nil, rep
	}
	rep.Samples = f.Len()
	if !f.BBox().Overlaps(bounds) {
		rep.Error = fmt.Errorf("source %s covers %s, points cover %s: %w",
			src.Name, f.BBox(), bounds, field.ErrNoOverlap)
		return nil, rep
	}

	lookup, err := field.NewLookup(f, src.Options)
	if err != nil {
		rep.Error = fmt.Errorf("index %s: %w", src.Name, err)
		return nil, rep
	}
	logger.DebugContext(ctx, "extracting values",
		slog.Bool("gridded", f.IsGridded()),
		slog.String("strategy", src.Options.Strategy.String()),
		slog.Int("samples", f.Len()),
	)

	values = make([]float64, len(points))
	for i, p := range points {
		v, ok := lookup.Value(p)
		if !ok {
			v = math.NaN()
		} else {
			rep.Attached++
		}
		values[i] = v
	}
	rep.Status = StatusAttached
	logger.InfoContext(ctx, "source attached",
		slog.Int("attached", rep.Attached),
		slog.Int("points", len(points)),
	)
	return values, rep
}
