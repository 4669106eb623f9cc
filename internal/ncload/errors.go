package ncload

import (
	"errors"

	"github.com/robert-malhotra/sharkhabitat/internal/field"
)

var (
	// ErrNoFiles is returned when a source directory holds no NetCDF files.
	ErrNoFiles = errors.New("no .nc files found")

	// ErrNoValidFiles is returned when every file in a directory failed to
	// open or decode.
	ErrNoValidFiles = errors.New("no valid .nc files found")

	// ErrNoOverlap is returned when the loaded grid misses the requested
	// bounds entirely.
	ErrNoOverlap = field.ErrNoOverlap

	// ErrMissingVariable is returned when a file lacks a required variable.
	ErrMissingVariable = errors.New("variable not found")

	// ErrNoTime is returned when a slice's time cannot be determined.
	ErrNoTime = errors.New("cannot determine time")
)
