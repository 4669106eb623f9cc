// Package server provides a public API for embedding the shark habitat
// service in another application.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/robert-malhotra/sharkhabitat/internal/api"
	"github.com/robert-malhotra/sharkhabitat/internal/config"
	"github.com/robert-malhotra/sharkhabitat/internal/granules"
	"github.com/robert-malhotra/sharkhabitat/internal/pipeline"
)

// Options configures the server.
type Options struct {
	// BaseURL is the public-facing URL for self-referential links (required).
	// Example: "https://api.example.com/habitat" or "http://localhost:8080"
	BaseURL string

	// IndexPath is the granule index written by the fetch commands.
	// Default: "" (no collections are served)
	IndexPath string

	// CatalogPath is the source catalog file.
	// Default: "" (uses built-in sources)
	CatalogPath string

	// DataDir holds one directory per source.
	// Default: "./data"
	DataDir string

	// Title is the STAC catalog title.
	Title string

	// Description is the STAC catalog description.
	Description string

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Server is a shark habitat server that can be embedded in another application.
type Server struct {
	router chi.Router
	store  *granules.Store
	layers []pipeline.Layer
}

// New loads the sources and opens the granule index. A missing index file
// leaves the catalog empty; sources that fail to load are left out of
// /sample.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if opts.DataDir == "" {
		opts.DataDir = "./data"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	catalog, err := config.LoadCatalog(opts.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load source catalog: %w", err)
	}
	sources, err := catalog.PipelineSources(opts.DataDir)
	if err != nil {
		return nil, err
	}

	layers, err := pipeline.New(pipeline.Config{Sources: sources}).
		WithLogger(opts.Logger).
		Preload(ctx)
	if err != nil {
		opts.Logger.Warn("serving without sample layers", slog.Any("error", err))
	}

	s := &Server{layers: layers}
	var index api.GranuleIndex
	if opts.IndexPath != "" {
		if _, err := os.Stat(opts.IndexPath); errors.Is(err, fs.ErrNotExist) {
			opts.Logger.Warn("granule index not found, serving no collections",
				slog.String("path", opts.IndexPath),
			)
		} else {
			s.store, err = granules.Open(opts.IndexPath, opts.Logger)
			if err != nil {
				return nil, err
			}
			index = s.store
		}
	}

	handlers := api.NewHandlers(api.Options{
		BaseURL:     opts.BaseURL,
		Title:       opts.Title,
		Description: opts.Description,
	}, index, layers, opts.Logger)

	s.router = api.NewRouter(handlers, opts.Logger)
	return s, nil
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// Layers returns the loaded sources.
func (s *Server) Layers() []pipeline.Layer {
	return s.layers
}

// Close closes the granule index.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
