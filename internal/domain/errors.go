package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate limited")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidJobState     = errors.New("invalid job state")
	ErrVersionConflict     = errors.New("version conflict")
)
