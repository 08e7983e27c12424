package logging

import "errors"

var (
	// ErrNilTarget indicates Init was called with a nil testing target.
	ErrNilTarget = errors.New("logging: nil test target")

	// ErrBadDefaultFilter indicates a default filter supplied via
	// WithDefaultFilter could not be parsed at all.
	ErrBadDefaultFilter = errors.New("logging: invalid default filter")
)
