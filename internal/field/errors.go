package field

import "errors"

var (
	// ErrEmptyField is returned when a field has no samples to index.
	ErrEmptyField = errors.New("field has no samples")

	// ErrInvalidAxis is returned when a coordinate axis is empty, contains
	// NaN, or is not strictly monotonic.
	ErrInvalidAxis = errors.New("invalid coordinate axis")

	// ErrShapeMismatch is returned when value and coordinate lengths disagree.
	ErrShapeMismatch = errors.New("value shape does not match coordinates")

	// ErrNoOverlap is returned when a field does not intersect the requested
	// bounding box.
	ErrNoOverlap = errors.New("field does not overlap the requested bounds")
)
