// Package apperr holds sentinel errors shared by the service and transport layers.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrSlugConflict is returned when two content files resolve to one
	// published path.
	ErrSlugConflict = errors.New("slug conflict")
)
