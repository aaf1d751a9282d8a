package model

import "errors"

// Error kinds surfaced across the service boundary. Callers classify with
// errors.Is; human-readable detail travels in the wrapping error text.
var (
	// ErrNotFound reports an unknown memory id.
	ErrNotFound = errors.New("memory not found")

	// ErrValidation reports input outside its declared shape or range.
	ErrValidation = errors.New("validation failed")

	// ErrIO reports a disk read or write failure, distinct from "file absent".
	ErrIO = errors.New("io failure")

	// ErrPathOutsideRoot reports a raw-read path that escapes the content root.
	ErrPathOutsideRoot = errors.New("path outside content root")

	// ErrInconsistent reports an existence check that disagreed with the row
	// mutation it guarded.
	ErrInconsistent = errors.New("internal inconsistency")
)
