package occurrence

import "errors"

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrInvalidDate is returned when an eventDate cannot be parsed.
	ErrInvalidDate = errors.New("invalid event date")

	// ErrInvalidCoordinate is returned for non-numeric or out-of-range
	// coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)
