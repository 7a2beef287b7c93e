package service

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrNotRecording   = errors.New("session not recording")
)
