package service

import (
	"github.com/infantlab/gazekit/internal/buffer"
	"github.com/infantlab/gazekit/internal/calibration"
	"github.com/infantlab/gazekit/internal/domain/geometry"
	"github.com/infantlab/gazekit/internal/export"
	"github.com/infantlab/gazekit/internal/source"
	"github.com/infantlab/gazekit/internal/status"
	"github.com/infantlab/gazekit/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource sets the sample source. Defaults to a simulated source at the
// configured sample rate.
func WithSource(src source.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.src = src
		}
	}
}

// WithBuffer sets the session buffer.
func WithBuffer(buf *buffer.Buffer) Option {
	return func(s *Service) {
		if buf != nil {
			s.buf = buf
		}
	}
}

// WithMonitor sets the status monitor.
func WithMonitor(mon *status.Monitor) Option {
	return func(s *Service) {
		if mon != nil {
			s.mon = mon
		}
	}
}

// WithExporter sets the CSV exporter.
func WithExporter(e *export.Exporter) Option {
	return func(s *Service) {
		if e != nil {
			s.exporter = e
		}
	}
}

// WithScreen sets the physical screen-to-eye geometry used by calibration.
func WithScreen(geom geometry.Screen) Option {
	return func(s *Service) {
		s.geom = geom
	}
}

// WithSampleRate declares the acquisition rate in Hz. Informational for the
// API surface; the source's own rate governs delivery.
func WithSampleRate(hz float64) Option {
	return func(s *Service) {
		if hz > 0 {
			s.sampleRate = hz
		}
	}
}

// WithCalibrationOptions forwards options to the calibration engine built
// by New.
func WithCalibrationOptions(opts ...calibration.Option) Option {
	return func(s *Service) {
		s.calOpts = append(s.calOpts, opts...)
	}
}

// WithGazeObserver registers a live gaze observer, e.g. the WebSocket feed.
func WithGazeObserver(fn GazeObserver) Option {
	return func(s *Service) {
		if fn != nil {
			s.gazeObservers = append(s.gazeObservers, fn)
		}
	}
}

// WithEventObserver registers a live event observer.
func WithEventObserver(fn EventObserver) Option {
	return func(s *Service) {
		if fn != nil {
			s.eventObservers = append(s.eventObservers, fn)
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}
