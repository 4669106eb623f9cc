// Package config provides configuration management for the training-set
// builder: environment settings plus a YAML catalog of environmental sources.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/robert-malhotra/sharkhabitat/internal/download"
	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/internal/join"
	"github.com/robert-malhotra/sharkhabitat/internal/occurrence"
)

// Config holds the complete application configuration loaded from environment variables.
type Config struct {
	Paths      PathsConfig      `envPrefix:"PATHS_"`
	Build      BuildConfig      `envPrefix:"BUILD_"`
	Join       JoinConfig       `envPrefix:"JOIN_"`
	Download   DownloadConfig   `envPrefix:"DOWNLOAD_"`
	Earthdata  EarthdataConfig  `envPrefix:"EARTHDATA_"`
	CMR        CMRConfig        `envPrefix:"CMR_"`
	OceanColor OceanColorConfig `envPrefix:"OCEANCOLOR_"`
	Server     ServerConfig     `envPrefix:"SERVER_"`
	Logging    LoggingConfig    `envPrefix:"LOG_"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	// DataDir is the root of the per-source directories.
	DataDir        string `env:"DATA_DIR" envDefault:"./data"`
	OutputDir      string `env:"OUTPUT_DIR" envDefault:"./final_model_data"`
	OccurrenceFile string `env:"OCCURRENCE_FILE" envDefault:"./Occurrence.tsv"`
	// Catalog is a sources.yaml file. Empty uses the built-in catalog.
	Catalog string `env:"CATALOG" envDefault:""`
	// IndexDB is the SQLite granule index.
	IndexDB string `env:"INDEX_DB" envDefault:"./data/granules.db"`
	// Report receives a scatter plot of the final rows. Empty disables it.
	Report string `env:"REPORT" envDefault:""`
}

// BuildConfig contains the training-set window and sampling settings.
type BuildConfig struct {
	Start string `env:"START" envDefault:"2020-01-01"`
	End   string `env:"END" envDefault:"2025-06-10"`
	Ratio int    `env:"RATIO" envDefault:"2"`
	Seed  uint64 `env:"SEED" envDefault:"42"`
	// Delimiter of the occurrence file: "tab" or "comma".
	Delimiter string `env:"DELIMITER" envDefault:"tab"`
}

// JoinConfig contains joiner settings.
type JoinConfig struct {
	KeepIncomplete bool `env:"KEEP_INCOMPLETE" envDefault:"false"`
	Parallel       int  `env:"PARALLEL" envDefault:"1"`
}

// DownloadConfig contains downloader settings.
type DownloadConfig struct {
	MinSize   int64         `env:"MIN_SIZE" envDefault:"10000"`
	Attempts  int           `env:"ATTEMPTS" envDefault:"3"`
	Delay     time.Duration `env:"DELAY" envDefault:"5s"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"90s"`
	UserAgent string        `env:"USER_AGENT" envDefault:"sharkhabitat/1.0"`
}

// EarthdataConfig holds Earthdata Login credentials. When none are set the
// netrc file is consulted.
type EarthdataConfig struct {
	Username string `env:"USERNAME" envDefault:""`
	Password string `env:"PASSWORD" envDefault:""`
	Token    string `env:"TOKEN" envDefault:""`
	Netrc    string `env:"NETRC" envDefault:""`
	Host     string `env:"HOST" envDefault:"urs.earthdata.nasa.gov"`
}

// CMRConfig contains CMR API client configuration.
type CMRConfig struct {
	BaseURL  string        `env:"BASE_URL" envDefault:"https://cmr.earthdata.nasa.gov/search"`
	Provider string        `env:"PROVIDER" envDefault:"POCLOUD"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// WindowPause is the delay between monthly queries.
	WindowPause time.Duration `env:"WINDOW_PAUSE" envDefault:"1s"`
}

// OceanColorConfig contains OceanColor file service configuration.
type OceanColorConfig struct {
	BaseURL    string        `env:"BASE_URL" envDefault:"https://oceandata.sci.gsfc.nasa.gov/ob/getfile/"`
	SearchURL  string        `env:"SEARCH_URL" envDefault:"https://oceandata.sci.gsfc.nasa.gov/api/file_search"`
	Platform   string        `env:"PLATFORM" envDefault:"AQUA_MODIS"`
	Resolution string        `env:"RESOLUTION" envDefault:"4km"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"30s"`
	Verify     bool          `env:"VERIFY" envDefault:"false"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	// BaseURL is the public-facing URL used in STAC links.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load parses configuration from environment variables.
// It returns an error if required fields are missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}

	opts := env.Options{
		RequiredIfNoDef: true,
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}

	start, end, err := c.Build.Window()
	if err != nil {
		return err
	}
	if !end.After(start) {
		return fmt.Errorf("build end %s must be after start %s", c.Build.End, c.Build.Start)
	}
	if c.Build.Ratio < 1 {
		return fmt.Errorf("pseudo-absence ratio must be at least 1, got %d", c.Build.Ratio)
	}
	if _, err := c.Build.DelimiterRune(); err != nil {
		return err
	}

	if c.Join.Parallel < 1 {
		return fmt.Errorf("join parallelism must be at least 1, got %d", c.Join.Parallel)
	}

	if c.Download.MinSize < 0 {
		return fmt.Errorf("download min size must not be negative, got %d", c.Download.MinSize)
	}
	if c.Download.Attempts < 1 {
		return fmt.Errorf("download attempts must be at least 1, got %d", c.Download.Attempts)
	}
	if c.Download.Delay < 0 {
		return fmt.Errorf("download delay must not be negative, got %s", c.Download.Delay)
	}
	if c.Download.Timeout <= 0 {
		return fmt.Errorf("download timeout must be positive, got %s", c.Download.Timeout)
	}

	if (c.Earthdata.Username == "") != (c.Earthdata.Password == "") {
		return fmt.Errorf("earthdata username and password must be set together")
	}

	if c.CMR.BaseURL == "" {
		return fmt.Errorf("CMR base URL is required")
	}
	if c.CMR.Timeout <= 0 {
		return fmt.Errorf("CMR timeout must be positive, got %s", c.CMR.Timeout)
	}
	if c.CMR.WindowPause < 0 {
		return fmt.Errorf("CMR window pause must not be negative, got %s", c.CMR.WindowPause)
	}

	if c.OceanColor.BaseURL == "" {
		return fmt.Errorf("OceanColor base URL is required")
	}
	if c.OceanColor.Timeout <= 0 {
		return fmt.Errorf("OceanColor timeout must be positive, got %s", c.OceanColor.Timeout)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server base URL is required")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, text", c.Logging.Format)
	}

	return nil
}

// Address returns the server listen address in the format "host:port".
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Window parses Start and End as dates or RFC3339 times.
func (b *BuildConfig) Window() (time.Time, time.Time, error) {
	start, err := parseDate(b.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid build start: %w", err)
	}
	end, err := parseDate(b.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid build end: %w", err)
	}
	return start, end, nil
}

// DelimiterRune maps the delimiter name to its rune.
func (b *BuildConfig) DelimiterRune() (rune, error) {
	switch b.Delimiter {
	case "tab", "\t", "":
		return '\t', nil
	case "comma", ",":
		return ',', nil
	default:
		return 0, fmt.Errorf("invalid occurrence delimiter %q, must be one of: tab, comma", b.Delimiter)
	}
}

// Occurrence returns the occurrence reader options.
func (b *BuildConfig) Occurrence() occurrence.Options {
	opts := occurrence.DefaultOptions()
	if r, err := b.DelimiterRune(); err == nil {
		opts.Delimiter = r
	}
	return opts
}

// Options returns the joiner options.
func (j *JoinConfig) Options() join.Options {
	return join.Options{DropIncomplete: !j.KeepIncomplete, Parallel: j.Parallel}
}

// Config returns downloader settings for dir.
func (d *DownloadConfig) Config(dir string, creds download.Credentials, authHost string) download.Config {
	return download.Config{
		Dir:         dir,
		MinSize:     d.MinSize,
		Attempts:    d.Attempts,
		Delay:       d.Delay,
		Timeout:     d.Timeout,
		UserAgent:   d.UserAgent,
		Credentials: creds,
		AuthHost:    authHost,
	}
}

// Credentials returns the configured credentials, falling back to the netrc
// entry for Host. A missing netrc file or entry yields no credentials.
func (e *EarthdataConfig) Credentials() (download.Credentials, error) {
	c := download.Credentials{Username: e.Username, Password: e.Password, Token: e.Token}
	if !c.IsZero() {
		return c, nil
	}

	path := e.Netrc
	if path == "" {
		path = download.DefaultNetrcPath()
	}
	if path == "" {
		return download.Credentials{}, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return download.Credentials{}, nil
	}

	c, err := download.LoadNetrc(path, e.Host)
	if errors.Is(err, download.ErrNoCredentials) {
		return download.Credentials{}, nil
	}
	if err != nil {
		return download.Credentials{}, err
	}
	return c, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date (YYYY-MM-DD) or RFC3339 time", s)
}

// lookupOptions builds field options from catalog strings.
func lookupOptions(strategy string, normalize bool) (field.Options, error) {
	s, err := field.ParseStrategy(strategy)
	if err != nil {
		return field.Options{}, err
	}
	return field.Options{Strategy: s, Normalize: normalize}, nil
}
