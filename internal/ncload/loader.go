// Package ncload loads environmental variables from directories of NetCDF
// files into gridded or along-track fields.
package ncload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

// Coordinate variable names, preferred first.
var (
	latNames  = []string{"lat", "latitude"}
	lonNames  = []string{"lon", "longitude"}
	timeNames = []string{"time"}
)

// Spec describes one source directory.
type Spec struct {
	// Dir holds the *.nc files of the source.
	Dir string
	// Variable is the data variable to read.
	Variable string
	// Gridded selects a time x lat x lon grid; otherwise the files hold a
	// one-dimensional along-track series.
	Gridded bool
	// SynthTime takes each file's time from the start date in its name
	// instead of a time variable.
	SynthTime bool
	// WrapLongitude converts a 0..360 longitude axis to -180..180.
	WrapLongitude bool
}

// Loader reads NetCDF sources.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader() *Loader {
	return &Loader{logger: slog.Default()}
}

// WithLogger sets a custom logger for the loader.
func (l *Loader) WithLogger(logger *slog.Logger) *Loader {
	l.logger = logger
	return l
}

// Files returns the sorted *.nc files of dir.
func Files(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.nc"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every file of spec.Dir. Gridded sources are cropped to bounds
// unless bounds is empty; track sources are never cropped. Files that fail
// to open or decode are skipped with a warning.
func (l *Loader) Load(ctx context.Context, spec Spec, bounds geo.BBox) (field.Field, error) {
	files, err := Files(spec.Dir)
	if err != nil {
		return nil, err
	}
	logger := l.logger.With(slog.String("dir", spec.Dir), slog.String("variable", spec.Variable))
	logger.DebugContext(ctx, "loading source", slog.Int("files", len(files)), slog.Bool("gridded", spec.Gridded))

	if spec.Gridded {
		return l.loadGrid(ctx, logger, files, spec, bounds)
	}
	return l.loadTrack(ctx, logger, files, spec)
}

type timeSlice struct {
	time   time.Time
	values []float64
}

func (l *Loader) loadGrid(ctx context.Context, logger *slog.Logger, files []string, spec Spec, bounds geo.BBox) (field.Field, error) {
	var (
		win    *window
		slabs  []timeSlice
		opened int
	)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, w, err := readGridFile(path, spec, bounds, win)
		if errors.Is(err, ErrNoOverlap) {
			return nil, fmt.Errorf("%s: %w", spec.Dir, err)
		}
		if err != nil {
			logger.WarnContext(ctx, "skipping file", slog.String("file", filepath.Base(path)), slog.Any("error", err))
			continue
		}
		win = w
		opened++
		slabs = append(slabs, got...)
	}
	if opened == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoValidFiles, spec.Dir)
	}

	sort.SliceStable(slabs, func(i, j int) bool { return slabs[i].time.Before(slabs[j].time) })
	slabs = slices.CompactFunc(slabs, func(a, b timeSlice) bool { return a.time.Equal(b.time) })

	times := make([]time.Time, len(slabs))
	values := make([]float64, 0, len(slabs)*win.lat.Len()*win.lon.Len())
	for i, s := range slabs {
		times[i] = s.time
		values = append(values, s.values...)
	}
	g, err := field.NewGriddedFieldOnAxes(times, win.lat, win.lon, values)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", spec.Dir, err)
	}
	logger.InfoContext(ctx, "loaded gridded source",
		slog.Int("files", opened),
		slog.Int("times", len(times)),
		slog.Int("lats", win.lat.Len()),
		slog.Int("lons", win.lon.Len()),
	)
	return g, nil
}

// readGridFile decodes the time slices of one file. The first file fixes
// the coordinate axes and crop window; later files must match its shape.
func readGridFile(path string, spec Spec, bounds geo.BBox, win *window) ([]timeSlice, *window, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	defer nc.Close()

	latName, lats, err := readCoord(nc, latNames)
	if err != nil {
		return nil, nil, err
	}
	lonName, lons, err := readCoord(nc, lonNames)
	if err != nil {
		return nil, nil, err
	}
	if win == nil {
		if win, err = newWindow(lats, lons, bounds, spec.WrapLongitude); err != nil {
			return nil, nil, err
		}
	} else if len(lats) != win.nlat() || len(lons) != win.nlon() {
		return nil, nil, fmt.Errorf("grid is %dx%d, first file is %dx%d",
			len(lats), len(lons), win.nlat(), win.nlon())
	}

	vg, err := nc.GetVarGetter(spec.Variable)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrMissingVariable, spec.Variable, err)
	}
	dec := newDecoding(vg.Attributes())
	lonFirst := isLonFirst(vg.Dimensions(), latName, lonName)

	var planes [][]float64
	switch n := len(vg.Dimensions()); n {
	case 2:
		begin, end := int64(win.y0), int64(win.y1)
		if lonFirst {
			begin, end = win.colRange()
		}
		raw, shape, err := slice(vg, begin, end)
		if err != nil {
			return nil, nil, err
		}
		planes = append(planes, win.cut(raw, shape[1], int(begin), lonFirst))
	case 3:
		for t := range vg.Len() {
			raw, shape, err := slice(vg, t, t+1)
			if err != nil {
				return nil, nil, err
			}
			planes = append(planes, win.cut(raw, shape[2], 0, lonFirst))
		}
	default:
		return nil, nil, fmt.Errorf("variable %s has %d dimensions, want 2 or 3", spec.Variable, n)
	}
	for _, p := range planes {
		dec.apply(p)
	}

	times, err := sliceTimes(nc, path, spec.SynthTime, len(planes))
	if err != nil {
		return nil, nil, err
	}
	out := make([]timeSlice, len(planes))
	for i := range planes {
		out[i] = timeSlice{time: times[i], values: planes[i]}
	}
	return out, win, nil
}

func slice(vg api.VarGetter, begin, end int64) ([]float64, []int, error) {
	v, err := vg.GetSlice(begin, end)
	if err != nil {
		return nil, nil, fmt.Errorf("read slice [%d,%d): %w", begin, end, err)
	}
	return flatten(v)
}

// sliceTimes resolves the time of each of n slices from the file name, a CF
// time variable or the time_coverage_start global attribute.
func sliceTimes(nc api.Group, path string, synth bool, n int) ([]time.Time, error) {
	if synth {
		if n != 1 {
			return nil, fmt.Errorf("%w: file name gives one time, file has %d slices", ErrNoTime, n)
		}
		t, err := TimeFromFilename(path)
		if err != nil {
			return nil, err
		}
		return []time.Time{t}, nil
	}

	times, err := readTimes(nc)
	if err == nil {
		if len(times) != n {
			return nil, fmt.Errorf("%w: %d time values for %d slices", ErrNoTime, len(times), n)
		}
		return times, nil
	}
	if n == 1 {
		if s, ok := attrString(nc.Attributes(), "time_coverage_start"); ok {
			for _, layout := range epochFormats {
				if t, perr := time.Parse(layout, s); perr == nil {
					return []time.Time{t.UTC()}, nil
				}
			}
		}
	}
	return nil, err
}

func readTimes(nc api.Group) ([]time.Time, error) {
	for _, name := range timeNames {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		units, ok := attrString(v.Attributes, "units")
		if !ok {
			return nil, fmt.Errorf("%w: %s has no units", ErrNoTime, name)
		}
		tu, err := ParseTimeUnits(units)
		if err != nil {
			return nil, err
		}
		offsets, _, err := flatten(v.Values)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		times := make([]time.Time, len(offsets))
		for i, o := range offsets {
			times[i] = tu.Time(o)
		}
		return times, nil
	}
	return nil, fmt.Errorf("%w: no time variable", ErrNoTime)
}

func readCoord(nc api.Group, names []string) (string, []float64, error) {
	for _, name := range names {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		vals, _, err := flatten(v.Values)
		if err != nil {
			return "", nil, fmt.Errorf("decode %s: %w", name, err)
		}
		newDecoding(v.Attributes).apply(vals)
		return name, vals, nil
	}
	return "", nil, fmt.Errorf("%w: none of %v", ErrMissingVariable, names)
}

func isLonFirst(dims []string, latName, lonName string) bool {
	yi, xi := slices.Index(dims, latName), slices.Index(dims, lonName)
	return yi >= 0 && xi >= 0 && xi < yi
}

func (l *Loader) loadTrack(ctx context.Context, logger *slog.Logger, files []string, spec Spec) (field.Field, error) {
	var (
		times              []time.Time
		lats, lons, values []float64
		opened             int
	)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tf, err := readTrackFile(path, spec.Variable)
		if err != nil {
			logger.WarnContext(ctx, "skipping file", slog.String("file", filepath.Base(path)), slog.Any("error", err))
			continue
		}
		opened++
		times = append(times, tf.Times...)
		lats = append(lats, tf.Lats...)
		lons = append(lons, tf.Lons...)
		values = append(values, tf.Values...)
	}
	if opened == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoValidFiles, spec.Dir)
	}
	if spec.WrapLongitude {
		for i, x := range lons {
			lons[i] = wrapLon(x)
		}
	}
	tf, err := field.NewTrackField(times, lats, lons, values)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", spec.Dir, err)
	}
	logger.InfoContext(ctx, "loaded track source", slog.Int("files", opened), slog.Int("samples", tf.Len()))
	return tf, nil
}

func readTrackFile(path, variable string) (*field.TrackField, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer nc.Close()

	times, err := readTimes(nc)
	if err != nil {
		return nil, err
	}
	_, lats, err := readCoord(nc, latNames)
	if err != nil {
		return nil, err
	}
	_, lons, err := readCoord(nc, lonNames)
	if err != nil {
		return nil, err
	}
	v, err := nc.GetVariable(variable)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingVariable, variable, err)
	}
	values, _, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", variable, err)
	}
	newDecoding(v.Attributes).apply(values)
	return field.NewTrackField(times, lats, lons, values)
}

// Exists reports whether dir exists and is a directory.
func Exists(dir string) bool {
	fi, err := os.Stat(dir)
	return err == nil && fi.IsDir()
}
