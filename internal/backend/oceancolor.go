package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robert-malhotra/sharkhabitat/internal/oceancolor"
)

// OceanColorSource implements TargetSource for OceanColor Level-3 products.
// File names are synthesised from the composite calendar.
type OceanColorSource struct {
	client *oceancolor.Client
	logger *slog.Logger
}

// NewOceanColorSource creates a new OceanColor source.
func NewOceanColorSource(client *oceancolor.Client, logger *slog.Logger) *OceanColorSource {
	return &OceanColorSource{client: client, logger: logger}
}

// Name returns the source name.
func (s *OceanColorSource) Name() string {
	return "oceancolor"
}

// Granules lists the expected files of req.Collection. With req.Verify the
// list is filtered through the file search service.
func (s *OceanColorSource) Granules(ctx context.Context, req *Request) ([]Granule, error) {
	composite, err := oceancolor.ParseComposite(req.Composite)
	if err != nil {
		return nil, err
	}
	ocReq := oceancolor.Request{
		Product:   req.Collection,
		Composite: composite,
		Start:     req.Start,
		End:       req.End,
		Every:     req.Every,
	}

	files, err := s.client.Files(ocReq)
	if err != nil {
		return nil, fmt.Errorf("failed to build OceanColor file list: %w", err)
	}
	if req.Verify {
		total := len(files)
		if files, err = s.client.Published(ctx, ocReq, files); err != nil {
			return nil, fmt.Errorf("OceanColor file search failed: %w", err)
		}
		s.logger.InfoContext(ctx, "verified OceanColor files",
			slog.Int("expected", total),
			slog.Int("published", len(files)),
		)
	}

	granules := make([]Granule, len(files))
	for i, f := range files {
		granules[i] = Granule{
			ID:         f.Name,
			Collection: req.Collection,
			URL:        f.URL,
			Name:       f.Name,
			Start:      f.Period.Start,
			End:        f.Period.End.Add(24*time.Hour - time.Second),
		}
	}
	return granules, nil
}
