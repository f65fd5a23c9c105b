// Package faults classifies pipeline errors so callers can tell a bad
// input apart from a broken dependency.
package faults

import (
	"errors"
	"fmt"
)

// Markers for the four failure classes. Wrap attaches one of these to an
// underlying error; errors.Is reports the class.
var (
	// ErrValidation marks notifications or records the pipeline refuses
	// to process. Safe to drop after redelivery runs out.
	ErrValidation = errors.New("validation error")

	// ErrInfra marks failures of surrounding infrastructure such as the
	// queue, object storage reads, or the scratch filesystem.
	ErrInfra = errors.New("infrastructure error")

	// ErrMedia marks sources that cannot be probed or encoded.
	ErrMedia = errors.New("media error")

	// ErrUpload marks failures while publishing outputs.
	ErrUpload = errors.New("upload error")
)

// Wrap ties an error to a classification marker and the operation that
// failed. A nil err still produces a classified error.
func Wrap(marker error, operation string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", marker, operation)
	}
	return fmt.Errorf("%w: %s: %w", marker, operation, err)
}

// Class returns a short name for the error's classification, or "unknown"
// when the error carries no marker.
func Class(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInfra):
		return "infra"
	case errors.Is(err, ErrMedia):
		return "media"
	case errors.Is(err, ErrUpload):
		return "upload"
	default:
		return "unknown"
	}
}
