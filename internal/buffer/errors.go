package buffer

import "errors"

// Sentinel kinds for buffer errors.
var (
	ErrBusy = errors.New("buffer busy: export in progress")
)
