package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/internal/join"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// Layer is a source held in memory for repeated joins.
type Layer struct {
	Name    string
	Field   field.Field
	Options field.Options
}

// NewLayer wraps a loaded field.
func NewLayer(name string, f field.Field, opts field.Options) Layer {
	return Layer{Name: name, Field: f, Options: opts}
}

// Kind returns "gridded" or "track".
func (l Layer) Kind() string {
	if l.Field.IsGridded() {
		return "gridded"
	}
	return "track"
}

// Source returns a join source that serves the loaded field.
func (l Layer) Source() join.Source {
	f := l.Field
	return join.Source{
		Name:    l.Name,
		Options: l.Options,
		Load: func(context.Context, geo.BBox) (field.Field, error) {
			return f, nil
		},
	}
}

// LayerSources converts layers for join.Joiner.
func LayerSources(layers []Layer) []join.Source {
	out := make([]join.Source, len(layers))
	for i, l := range layers {
		out[i] = l.Source()
	}
	return out
}

// Preload reads every configured source without cropping. A source that
// fails to load is logged and left out.
func (p *Pipeline) Preload(ctx context.Context) ([]Layer, error) {
	var layers []Layer
	for _, src := range p.cfg.Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := p.loader.Load(ctx, src.Spec, geo.Empty())
		if err == nil && (f == nil || f.Len() == 0) {
			err = field.ErrEmptyField
		}
		if err != nil {
			p.logger.WarnContext(ctx, "source not loaded",
				slog.String("source", src.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		layers = append(layers, NewLayer(src.Name, f, src.Options))
		p.logger.InfoContext(ctx, "source loaded",
			slog.String("source", src.Name),
			slog.Int("samples", f.Len()),
		)
	}
	if len(layers) == 0 && len(p.cfg.Sources) > 0 {
		return nil, fmt.Errorf("none of %d sources could be loaded", len(p.cfg.Sources))
	}
	return layers, nil
}
