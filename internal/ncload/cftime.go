package ncload

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"
)

var unitDurations = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second, "sec": time.Second, "secs": time.Second, "s": time.Second,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute,
	"hour": time.Hour, "hours": time.Hour, "hr": time.Hour, "hrs": time.Hour, "h": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour, "d": 24 * time.Hour,
}

var epochFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2",
}

// TimeUnits is a parsed CF "<unit> since <epoch>" attribute.
type TimeUnits struct {
	Step  time.Duration
	Epoch time.Time
}

// ParseTimeUnits parses a CF time units string such as
// "seconds since 1981-01-01 00:00:00" or "days since 1970-01-01".
func ParseTimeUnits(s string) (TimeUnits, error) {
	unit, epoch, ok := strings.Cut(strings.TrimSpace(s), " since ")
	if !ok {
		return TimeUnits{}, fmt.Errorf("%w: units %q lack \"since\"", ErrNoTime, s)
	}
	step, ok := unitDurations[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return TimeUnits{}, fmt.Errorf("%w: unsupported time unit %q", ErrNoTime, unit)
	}

	epoch = strings.TrimSpace(epoch)
	epoch = strings.TrimSuffix(epoch, " UTC")
	epoch = strings.TrimSuffix(epoch, " GMT")
	for _, layout := range epochFormats {
		if t, err := time.Parse(layout, epoch); err == nil {
			return TimeUnits{Step: step, Epoch: t.UTC()}, nil
		}
	}
	return TimeUnits{}, fmt.Errorf("%w: unparsable epoch %q", ErrNoTime, epoch)
}

// Time converts an offset in units to an absolute time, rounded to the
// nearest microsecond.
func (u TimeUnits) Time(offset float64) time.Time {
	d := time.Duration(math.Round(offset * float64(u.Step) / float64(time.Microsecond)))
	return u.Epoch.Add(d * time.Microsecond)
}

// TimeFromFilename returns the start date encoded in names shaped like
// "<prefix>.<YYYYMMDD>[_<YYYYMMDD>].<suffix>".
func TimeFromFilename(path string) (time.Time, error) {
	parts := strings.Split(filepath.Base(path), ".")
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("%w: no date in file name %q", ErrNoTime, filepath.Base(path))
	}
	start, _, _ := strings.Cut(parts[1], "_")
	t, err := time.Parse("20060102", start)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: file name %q: %v", ErrNoTime, filepath.Base(path), err)
	}
	return t, nil
}
