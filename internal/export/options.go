package export

import "github.com/infantlab/gazekit/pkg/logger"

// Option applies a configuration option to the Exporter.
type Option func(*Exporter)

// WithLogger sets a custom logger for the exporter.
func WithLogger(log logger.Logger) Option {
	return func(e *Exporter) {
		if log != nil {
			e.log = log
		}
	}
}
