package status

import "errors"

// Sentinel kinds for status errors.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
)
