package stac

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/robert-malhotra/sharkhabitat/pkg/geo"
)

const (
	// DefaultLimit is the page size when the request names none.
	DefaultLimit = 10

	// MaxLimit caps the page size.
	MaxLimit = 1000
)

// ErrInvalidParameter wraps every query validation failure.
var ErrInvalidParameter = errors.New("invalid parameter")

// ItemsQuery is the parsed query string of an items request.
type ItemsQuery struct {
	Limit int
	Page  int
	Start *time.Time
	End   *time.Time
	BBox  *geo.BBox
}

// Offset returns the index of the first item on the page.
func (q *ItemsQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ParseItemsQuery reads limit, page, datetime and bbox from r.
func ParseItemsQuery(r *http.Request) (*ItemsQuery, error) {
	values := r.URL.Query()
	q := &ItemsQuery{Limit: DefaultLimit, Page: 1}

	if s := values.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: limit must be a positive integer, got %q", ErrInvalidParameter, s)
		}
		q.Limit = min(n, MaxLimit)
	}
	if s := values.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: page must be a positive integer, got %q", ErrInvalidParameter, s)
		}
		q.Page = n
	}
	if s := values.Get("datetime"); s != "" {
		start, end, err := ParseDatetimeInterval(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		q.Start, q.End = start, end
	}
	if s := values.Get("bbox"); s != "" {
		b, err := geo.ParseBBox(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		if err := ValidateBBox(b); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		q.BBox = &b
	}
	return q, nil
}

// ValidateBBox checks that a box lies within geographic bounds.
func ValidateBBox(b geo.BBox) error {
	if b.West < -180 || b.East > 180 {
		return fmt.Errorf("bbox longitude must be within [-180, 180]")
	}
	if b.South < -90 || b.North > 90 {
		return fmt.Errorf("bbox latitude must be within [-90, 90]")
	}
	return nil
}

// ParseDatetimeInterval parses a single RFC 3339 instant or an interval.
// Supports formats:
// - "2023-01-01T00:00:00Z" (instant, start == end)
// - "2023-01-01T00:00:00Z/2023-12-31T23:59:59Z" (closed interval)
// - "2023-01-01T00:00:00Z/.." (start time only)
// - "../2023-12-31T23:59:59Z" (end time only)
// - ".." or "../.." (open interval, both nil)
func ParseDatetimeInterval(dt string) (start, end *time.Time, err error) {
	dt = strings.TrimSpace(dt)
	if dt == "" {
		return nil, nil, fmt.Errorf("datetime interval cannot be empty")
	}
	if dt == ".." || dt == "../.." {
		return nil, nil, nil
	}

	parts := strings.Split(dt, "/")
	switch len(parts) {
	case 1:
		t, err := time.Parse(time.RFC3339, dt)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid datetime: %w", err)
		}
		return &t, &t, nil
	case 2:
	default:
		return nil, nil, fmt.Errorf("invalid datetime interval format, expected 'start/end', got: %s", dt)
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	if startStr != "" && startStr != ".." {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start datetime: %w", err)
		}
		start = &t
	}
	if endStr != "" && endStr != ".." {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end datetime: %w", err)
		}
		end = &t
	}

	if start != nil && end != nil && start.After(*end) {
		return nil, nil, fmt.Errorf("start datetime (%s) must be before or equal to end datetime (%s)", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	return start, end, nil
}
