package occurrence

import (
	"fmt"
	"strings"
	"time"
)

// Darwin Core eventDate forms seen in occurrence exports, most specific
// first. Values without a zone are taken as UTC.
var eventDateFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

// ParseEventDate parses a Darwin Core eventDate. For an interval such as
// "2012-03-01/2012-03-05" the start is returned. The result is in UTC.
func ParseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if start, _, ok := strings.Cut(s, "/"); ok {
		s = strings.TrimSpace(start)
	}
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}

	for _, format := range eventDateFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
