package errors

import "errors"

var (
	ErrNotFound = errors.New("tour not found")

	ErrInvalidID = errors.New("invalid tour ID format")

	ErrDuplicateSlug = errors.New("tour slug already in use")
)
