package domain

import "errors"

var (
	// ErrPermissionDenied means the user refused location access. Callers decide
	// whether to prompt again; nothing retries automatically.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrSignalUnavailable means the provider could not produce a fix right now.
	// It is transient.
	ErrSignalUnavailable = errors.New("location signal unavailable")

	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrPlaceNotFound     = errors.New("place not found")
	ErrNoRoute           = errors.New("no route found")
)
