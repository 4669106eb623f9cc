// Package download fetches remote data files into a local directory with
// caching, bounded retries and a log of files that could not be fetched.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMinSize is the size a file must exceed to count as complete.
	DefaultMinSize = 10000

	// DefaultAttempts is the number of tries per file.
	DefaultAttempts = 3

	// DefaultDelay is the pause between tries.
	DefaultDelay = 5 * time.Second

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 90 * time.Second

	// MissingLogName is the file, inside the download directory, listing
	// files that could not be fetched.
	MissingLogName = "missing_files.txt"
)

var (
	errNotFound = errors.New("404 Not Found")
	errHTML     = errors.New("HTML response, bad filename or login page")
	errTooSmall = errors.New("too small")
)

// Config configures a Downloader. Zero Attempts, Timeout, UserAgent and
// AuthHost take their defaults; MinSize and Delay are used as given.
type Config struct {
	Dir         string
	MinSize     int64
	Attempts    int
	Delay       time.Duration
	Timeout     time.Duration
	UserAgent   string
	Credentials Credentials
	// AuthHost receives basic auth credentials. Defaults to URSHost.
	AuthHost string
}

// DefaultConfig returns the reference settings for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:       dir,
		MinSize:   DefaultMinSize,
		Attempts:  DefaultAttempts,
		Delay:     DefaultDelay,
		Timeout:   DefaultTimeout,
		UserAgent: "sharkhabitat/1.0",
		AuthHost:  URSHost,
	}
}

// Target is one remote file. Name overrides the local file name, which
// otherwise is the last element of the URL path.
type Target struct {
	URL  string
	Name string
}

// Status is the outcome of a fetch.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusCached     Status = "cached"
	StatusMissing    Status = "missing"
)

// Result describes one fetched target.
type Result struct {
	Target Target
	Path   string
	Status Status
	Reason string
	Size   int64
}

// OK reports whether the file is available locally.
func (r Result) OK() bool { return r.Status != StatusMissing }

// Summary counts results.
type Summary struct {
	Downloaded int
	Cached     int
	Missing    int
}

// Downloader fetches files. It is safe for concurrent use.
type Downloader struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a Downloader with its own cookie jar, so an Earthdata login
// redirect is only followed once per session.
func New(cfg Config) (*Downloader, error) {
	def := DefaultConfig(cfg.Dir)
	if cfg.Dir == "" {
		return nil, errors.New("download directory is required")
	}
	if cfg.MinSize < 0 {
		cfg.MinSize = 0
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.AuthHost == "" {
		cfg.AuthHost = def.AuthHost
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	var transport http.RoundTripper = base
	if !cfg.Credentials.IsZero() {
		transport = &authTransport{creds: cfg.Credentials, host: cfg.AuthHost, next: base}
	}

	return &Downloader{
		cfg:    cfg,
		client: &http.Client{Jar: jar, Transport: transport},
		logger: slog.Default(),
	}, nil
}

// WithLogger sets a custom logger for the downloader.
func (d *Downloader) WithLogger(logger *slog.Logger) *Downloader {
	d.logger = logger
	return d
}

// Dir returns the download directory.
func (d *Downloader) Dir() string { return d.cfg.Dir }

// EnsureDownloaded makes the file behind rawURL available locally. ok is
// false when it could not be fetched; the reason is in the missing log.
// err is reserved for cancellation and local filesystem failures.
func (d *Downloader) EnsureDownloaded(ctx context.Context, rawURL string) (string, bool, error) {
	r, err := d.Fetch(ctx, Target{URL: rawURL})
	return r.Path, r.OK(), err
}

// Fetch downloads t unless a complete copy already exists.
func (d *Downloader) Fetch(ctx context.Context, t Target) (Result, error) {
	name, err := localName(t)
	if err != nil {
		return Result{Target: t, Status: StatusMissing, Reason: err.Error()}, nil
	}
	dest := filepath.Join(d.cfg.Dir, name)
	res := Result{Target: t, Path: dest}
	logger := d.logger.With(slog.String("file", name))

	if fi, err := os.Stat(dest); err == nil && fi.Size() > d.cfg.MinSize {
		logger.DebugContext(ctx, "already downloaded", slog.Int64("size", fi.Size()))
		res.Status, res.Size = StatusCached, fi.Size()
		return res, nil
	}
	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return res, fmt.Errorf("create download directory: %w", err)
	}

	attempt := 0
	op := func() error {
		attempt++
		logger.InfoContext(ctx, "downloading", slog.Int("attempt", attempt))
		size, err := d.get(ctx, t.URL, dest)
		res.Size = size
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.WarnContext(ctx, "download attempt failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			slog.Any("error", err),
		)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.cfg.Delay), uint64(d.cfg.Attempts-1)),
		ctx,
	)
	err = backoff.RetryNotify(op, policy, notify)

	switch {
	case err == nil:
		res.Status = StatusDownloaded
		logger.InfoContext(ctx, "download complete", slog.Int64("size", res.Size))
		return res, nil
	case ctx.Err() != nil:
		return res, ctx.Err()
	case errors.Is(err, errNotFound), errors.Is(err, errHTML), errors.Is(err, errTooSmall):
		res.Reason = unwrapReason(err)
	default:
		res.Reason = "Max retries reached"
		logger.ErrorContext(ctx, "all download attempts failed", slog.Any("error", err))
	}
	res.Status = StatusMissing
	if err := d.logMissing(name, res.Reason); err != nil {
		return res, err
	}
	logger.WarnContext(ctx, "file missing", slog.String("reason", res.Reason))
	return res, nil
}

// get performs one request and stores a successful body at dest. Errors
// wrapped in backoff.Permanent are not retried.
func (d *Downloader) get(ctx context.Context, rawURL, dest string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if isHTML(resp.Header.Get("Content-Type")) {
		return 0, backoff.Permanent(errHTML)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, backoff.Permanent(errNotFound)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return size, fmt.Errorf("write body: %w", err)
	}
	if size <= d.cfg.MinSize {
		return size, backoff.Permanent(errTooSmall)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return size, backoff.Permanent(fmt.Errorf("rename: %w", err))
	}
	return size, nil
}

// DownloadAll fetches targets one after another.
func (d *Downloader) DownloadAll(ctx context.Context, targets []Target) ([]Result, Summary, error) {
	results := make([]Result, 0, len(targets))
	var sum Summary
	for i, t := range targets {
		r, err := d.Fetch(ctx, t)
		if err != nil {
			return results, sum, err
		}
		results = append(results, r)
		switch r.Status {
		case StatusDownloaded:
			sum.Downloaded++
		case StatusCached:
			sum.Cached++
		default:
			sum.Missing++
		}
		d.logger.DebugContext(ctx, "progress", slog.Int("done", i+1), slog.Int("total", len(targets)))
	}
	d.logger.InfoContext(ctx, "downloads processed",
		slog.Int("downloaded", sum.Downloaded),
		slog.Int("cached", sum.Cached),
		slog.Int("missing", sum.Missing),
		slog.String("missing_log", filepath.Join(d.cfg.Dir, MissingLogName)),
	)
	return results, sum, nil
}

// Paths returns the local paths of available results.
func Paths(results []Result) []string {
	var out []string
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Path)
		}
	}
	return out
}

func (d *Downloader) logMissing(name, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(d.cfg.Dir, MissingLogName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open missing log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s (%s)\n", name, reason); err != nil {
		f.Close()
		return fmt.Errorf("write missing log: %w", err)
	}
	return f.Close()
}

func localName(t Target) (string, error) {
	if t.Name != "" {
		return filepath.Base(t.Name), nil
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", t.URL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", t.URL)
	}
	return name, nil
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}

func unwrapReason(err error) string {
	for _, sentinel := range []error{errNotFound, errHTML, errTooSmall} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
