package calibration

import "errors"

// Sentinel kinds for calibration errors.
var (
	ErrAborted        = errors.New("calibration aborted")
	ErrAlreadyRunning = errors.New("calibration already running")
	ErrNoPoints       = errors.New("no calibration points given")
)
