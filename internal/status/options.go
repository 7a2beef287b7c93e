package status

import "github.com/infantlab/gazekit/pkg/logger"

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithLogger sets a custom logger for the monitor.
func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}
