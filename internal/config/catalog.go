package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/robert-malhotra/sharkhabitat/internal/backend"
	"github.com/robert-malhotra/sharkhabitat/internal/ncload"
	"github.com/robert-malhotra/sharkhabitat/internal/oceancolor"
	"github.com/robert-malhotra/sharkhabitat/internal/pipeline"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// Source kinds.
const (
	KindGridded = "gridded"
	KindTrack   = "track"
)

// Fetch backends.
const (
	FetchOceanColor = "oceancolor"
	FetchCMR        = "cmr"
)

// SourceConfig describes one environmental variable: where its files live,
// how to read them and, optionally, where to fetch them from.
type SourceConfig struct {
	// Name is the output column.
	Name string `mapstructure:"name"`
	// Dir is relative to the data directory unless absolute. Defaults to Name.
	Dir           string `mapstructure:"dir"`
	Variable      string `mapstructure:"variable"`
	Kind          string `mapstructure:"kind"`
	SynthTime     bool   `mapstructure:"synth_time"`
	WrapLongitude bool   `mapstructure:"wrap_longitude"`
	// Strategy is "axis" or "euclidean"; it applies to gridded sources.
	Strategy  string      `mapstructure:"strategy"`
	Normalize bool        `mapstructure:"normalize"`
	Fetch     FetchConfig `mapstructure:"fetch"`
}

// FetchConfig selects the remote files of a source. An empty Backend means
// the files are provided by hand.
type FetchConfig struct {
	Backend   string `mapstructure:"backend"`
	Product   string `mapstructure:"product"`
	Composite string `mapstructure:"composite"`
	Every     int    `mapstructure:"every"`
	ShortName string `mapstructure:"short_name"`
	// BBox is "west,south,east,north". Empty means global.
	BBox string `mapstructure:"bbox"`
}

// Catalog holds the configured sources in file order.
type Catalog struct {
	sources []*SourceConfig
	byName  map[string]*SourceConfig
}

type catalogFile struct {
	Sources []SourceConfig `mapstructure:"sources"`
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*SourceConfig)}
}

// LoadCatalog reads a sources.yaml file. An empty path yields the built-in
// catalog: chlor_a, sst, ssha and sss.
func LoadCatalog(path string) (*Catalog, error) {
	v := viper.New()
	setCatalogDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
	}

	var file catalogFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, fmt.Errorf("catalog %q defines no sources", path)
	}

	c := NewCatalog()
	for i := range file.Sources {
		if err := c.Add(file.Sources[i]); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
	}
	return c, nil
}

func setCatalogDefaults(v *viper.Viper) {
	v.SetDefault("sources", []map[string]any{
		{
			"name":       "chlor_a",
			"dir":        "chlorophyll_data_8day",
			"variable":   "chlor_a",
			"kind":       KindGridded,
			"synth_time": true,
			"fetch":      map[string]any{"backend": FetchOceanColor, "product": "chlor_a", "composite": "8D"},
		},
		{
			"name":       "sst",
			"dir":        "sst_data_8day",
			"variable":   "sst",
			"kind":       KindGridded,
			"synth_time": true,
			"fetch":      map[string]any{"backend": FetchOceanColor, "product": "sst", "composite": "8D"},
		},
		{
			"name":     "ssha",
			"dir":      "SSHA_New",
			"variable": "ssha",
			"kind":     KindTrack,
		},
		{
			"name":           "sss",
			"dir":            "SSS_New",
			"variable":       "sss_smap",
			"kind":           KindGridded,
			"wrap_longitude": true,
			"fetch":          map[string]any{"backend": FetchCMR, "short_name": "SMAP_RSS_L3_SSS_SMI_8DAY-RUNNINGMEAN_V5"},
		},
	})
}

// Add validates a source and appends it. Names must be unique.
func (c *Catalog) Add(s SourceConfig) error {
	if s.Dir == "" {
		s.Dir = s.Name
	}
	if s.Kind == "" {
		s.Kind = KindGridded
	}
	if err := validateSource(&s); err != nil {
		return err
	}
	if _, exists := c.byName[s.Name]; exists {
		return fmt.Errorf("source %q already exists", s.Name)
	}
	c.sources = append(c.sources, &s)
	c.byName[s.Name] = &s
	return nil
}

func validateSource(s *SourceConfig) error {
	if s.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if s.Variable == "" {
		return fmt.Errorf("source %q: variable is required", s.Name)
	}
	if s.Kind != KindGridded && s.Kind != KindTrack {
		return fmt.Errorf("source %q: kind must be %q or %q, got %q", s.Name, KindGridded, KindTrack, s.Kind)
	}
	if _, err := lookupOptions(s.Strategy, s.Normalize); err != nil {
		return fmt.Errorf("source %q: %w", s.Name, err)
	}
	if s.Fetch.BBox != "" {
		if _, err := geo.ParseBBox(s.Fetch.BBox); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
	}

	switch s.Fetch.Backend {
	case "":
	case FetchOceanColor:
		if _, err := oceancolor.LookupProduct(s.Fetch.Product); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if _, err := oceancolor.ParseComposite(s.Fetch.Composite); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if s.Fetch.Every < 0 {
			return fmt.Errorf("source %q: every must not be negative", s.Name)
		}
	case FetchCMR:
		if s.Fetch.ShortName == "" {
			return fmt.Errorf("source %q: cmr fetch needs a short_name", s.Name)
		}
	default:
		return fmt.Errorf("source %q: fetch backend must be %q or %q, got %q", s.Name, FetchOceanColor, FetchCMR, s.Fetch.Backend)
	}
	return nil
}

// Get retrieves a source by name.
// Returns nil if the source does not exist.
func (c *Catalog) Get(name string) *SourceConfig {
	return c.byName[name]
}

// Has checks if a source with the given name exists.
func (c *Catalog) Has(name string) bool {
	_, exists := c.byName[name]
	return exists
}

// All returns the sources in catalog order.
func (c *Catalog) All() []*SourceConfig {
	return append([]*SourceConfig(nil), c.sources...)
}

// Names returns the source names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name
	}
	return names
}

// Count returns the number of sources.
func (c *Catalog) Count() int {
	return len(c.sources)
}

// Fetchable returns the sources with a fetch backend.
func (c *Catalog) Fetchable(backendName string) []*SourceConfig {
	var out []*SourceConfig
	for _, s := range c.sources {
		if s.Fetch.Backend == backendName {
			out = append(out, s)
		}
	}
	return out
}

// Path returns the directory of the source under dataDir.
func (s *SourceConfig) Path(dataDir string) string {
	if filepath.IsAbs(s.Dir) {
		return s.Dir
	}
	return filepath.Join(dataDir, s.Dir)
}

// PipelineSource converts the source for a build.
func (s *SourceConfig) PipelineSource(dataDir string) (pipeline.Source, error) {
	opts, err := lookupOptions(s.Strategy, s.Normalize)
	if err != nil {
		return pipeline.Source{}, err
	}
	return pipeline.Source{
		Name: s.Name,
		Spec: ncload.Spec{
			Dir:           s.Path(dataDir),
			Variable:      s.Variable,
			Gridded:       s.Kind == KindGridded,
			SynthTime:     s.SynthTime,
			WrapLongitude: s.WrapLongitude,
		},
		Options: opts,
	}, nil
}

// Request builds the granule request of the source for [start, end].
func (s *SourceConfig) Request(start, end time.Time, verify bool) (*backend.Request, error) {
	req := &backend.Request{
		Start:     start,
		End:       end,
		Composite: s.Fetch.Composite,
		Every:     s.Fetch.Every,
		Verify:    verify,
	}
	switch s.Fetch.Backend {
	case FetchOceanColor:
		req.Collection = s.Fetch.Product
	case FetchCMR:
		req.Collection = s.Fetch.ShortName
	default:
		return nil, fmt.Errorf("source %q has no fetch backend", s.Name)
	}
	if s.Fetch.BBox != "" {
		b, err := geo.ParseBBox(s.Fetch.BBox)
		if err != nil {
			return nil, err
		}
		req.BBox = &b
	}
	return req, nil
}

// PipelineSources converts every source for a build.
func (c *Catalog) PipelineSources(dataDir string) ([]pipeline.Source, error) {
	out := make([]pipeline.Source, 0, len(c.sources))
	for _, s := range c.sources {
		ps, err := s.PipelineSource(dataDir)
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}
