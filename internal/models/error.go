package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrValidation     = errors.New("record failed validation")
	ErrBadRequest     = errors.New("bad request")
	ErrForbidden      = errors.New("forbidden")
	ErrInternalServer = errors.New("internal server error")

	// ErrQueryTooLarge means a batch or aggregation exceeded its configured
	// bound; the caller should retry with a narrower scope.
	ErrQueryTooLarge = errors.New("query exceeds configured bound")

	// ErrStoreUnavailable means the underlying store could not be reached or
	// locked; fatal for the current operation.
	ErrStoreUnavailable = errors.New("record store unavailable")
)
