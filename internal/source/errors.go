package source

import "errors"

// Sentinel kinds for source errors.
var (
	ErrBusy        = errors.New("source already active")
	ErrUnavailable = errors.New("source unavailable")
)
