package calibration

import (
	"time"

	"github.com/infantlab/gazekit/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithSettleDuration sets the fixation settle time before each window.
func WithSettleDuration(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.settle = d
		}
	}
}

// WithWindowQuota sets how many raw samples close a collection window.
func WithWindowQuota(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.windowQuota = n
		}
	}
}

// WithWindowTimeout bounds how long a collection window may stay open.
func WithWindowTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.windowTimeout = d
		}
	}
}

// WithMinValidSamples sets the minimum retained samples for acceptance.
func WithMinValidSamples(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minValid = n
		}
	}
}

// WithPointThreshold sets the per-point accuracy threshold in degrees.
func WithPointThreshold(deg float64) Option {
	return func(e *Engine) {
		if deg > 0 {
			e.pointDeg = deg
		}
	}
}

// WithOverallThreshold sets the run-level mean accuracy threshold in
// degrees. Conventionally looser than the per-point threshold.
func WithOverallThreshold(deg float64) Option {
	return func(e *Engine) {
		if deg > 0 {
			e.overallDeg = deg
		}
	}
}

// WithEventRecorder wires calibration milestones into the record stream.
func WithEventRecorder(rec EventRecorder) Option {
	return func(e *Engine) {
		if rec != nil {
			e.events = rec
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}
