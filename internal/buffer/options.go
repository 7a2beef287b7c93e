package buffer

import "github.com/infantlab/gazekit/pkg/logger"

// Option applies a configuration option to the Buffer.
type Option func(*Buffer)

// WithCapacityHint pre-allocates backing storage for the expected session
// length (samples plus events).
func WithCapacityHint(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.capacityHint = n
		}
	}
}

// WithLogger sets a custom logger for the buffer.
func WithLogger(log logger.Logger) Option {
	return func(b *Buffer) {
		if log != nil {
			b.log = log
		}
	}
}
