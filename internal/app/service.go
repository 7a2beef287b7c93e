// Package service owns the acquisition session: it wires the sample source
// into the buffer, drives the status monitor, runs calibration, and serves
// the read surface consumed by the HTTP API.
package service

import (
	"context"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/infantlab/gazekit/internal/buffer"
	"github.com/infantlab/gazekit/internal/calibration"
	"github.com/infantlab/gazekit/internal/domain/geometry"
	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/internal/export"
	"github.com/infantlab/gazekit/internal/source"
	"github.com/infantlab/gazekit/internal/status"
	"github.com/infantlab/gazekit/pkg/logger"
)

// GazeObserver receives every accepted gaze sample on the delivery
// goroutine. Observers must not block.
type GazeObserver func(model.GazeSample)

// StatusObserver receives every committed status transition.
type StatusObserver func(model.Status)

// EventObserver receives every recorded experiment marker.
type EventObserver func(model.EventSample)

// Service is the acquisition session. One Service instance is one session:
// its ID, buffer, and status machine live and die together.
type Service struct {
	sessionID string
	src       source.Source
	buf       *buffer.Buffer
	mon       *status.Monitor
	engine    *calibration.Engine
	exporter  *export.Exporter
	geom      geometry.Screen

	sampleRate float64
	calOpts    []calibration.Option

	gazeObservers  []GazeObserver
	eventObservers []EventObserver

	// Last accepted gaze timestamp, used to stamp experiment markers onto
	// the source clock. Stored as float64 bits.
	lastTS atomic.Uint64

	mu      sync.Mutex
	started bool

	log logger.Logger
}

// New creates a session service with configuration options. Components not
// injected are built with their defaults; the calibration engine is always
// built here so its milestones land in this session's buffer.
func New(opts ...Option) *Service {
	s := &Service{
		sessionID:  uuid.NewString(),
		geom:       geometry.Screen{WidthMM: 510, HeightMM: 287, DistanceMM: 600},
		sampleRate: 120,
		log:        logger.Get().Named("session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.buf == nil {
		s.buf = buffer.New()
	}
	if s.mon == nil {
		s.mon = status.NewMonitor()
	}
	if s.exporter == nil {
		s.exporter = export.New()
	}
	if s.src == nil {
		s.src = source.NewSimulated(source.WithSampleRate(s.sampleRate))
	}

	calOpts := append([]calibration.Option{
		calibration.WithEventRecorder(milestoneRecorder{s}),
	}, s.calOpts...)
	s.engine = calibration.New(s.geom, calOpts...)

	// A source failure mid-calibration must not leave the run hanging on
	// samples that will never arrive.
	s.mon.OnChange(func(_, now model.Status) {
		if now.Kind == model.StatusError {
			s.engine.Abort()
		}
	})

	return s
}

// Start begins acquisition: the source delivers into this session until
// Stop. Fails with ErrAlreadyStarted on a second call.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	err := s.src.Start(ctx, s.onSample(ctx), s.onStatus(ctx))
	if err != nil {
		return err
	}
	s.started = true

	s.log.Info(ctx, "session started", logger.String("session_id", s.sessionID))
	return nil
}

// Stop halts acquisition. Idempotent; the buffer and its contents survive
// so the session can still be exported.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.src.Stop()
	s.engine.Abort()
	s.started = false

	s.log.Info(ctx, "session stopped",
		logger.String("session_id", s.sessionID),
		logger.Int("records", s.buf.Len()),
	)
}

// onSample is the source delivery callback: buffer first, then the
// calibration window, then the live observers.
func (s *Service) onSample(ctx context.Context) source.SampleFunc {
	return func(sample model.Sample) {
		switch v := sample.(type) {
		case model.GazeSample:
			if !s.buf.AppendGaze(v) {
				return
			}
			s.lastTS.Store(math.Float64bits(v.Timestamp))

			if v.AnyValid() && s.mon.Current().Kind == model.StatusConnected {
				// First usable sample of the session.
				_ = s.mon.Transition(ctx, model.Status{Kind: model.StatusTracking})
			}

			s.engine.Offer(v)
			for _, fn := range s.gazeObservers {
				fn(v)
			}
		case model.EventSample:
			s.buf.AppendEvent(v)
			for _, fn := range s.eventObservers {
				fn(v)
			}
		}
	}
}

// onStatus forwards source status changes into the monitor.
func (s *Service) onStatus(ctx context.Context) source.StatusFunc {
	return func(st model.Status) {
		if err := s.mon.Transition(ctx, st); err != nil {
			s.log.Warn(ctx, "source status change rejected",
				logger.String("status", st.String()),
				logger.Error(err),
			)
		}
	}
}

// RecordEvent appends an experiment marker stamped on the source clock.
// Markers may share a timestamp with a gaze sample; arrival order breaks
// the tie. Fails with ErrNotRecording when acquisition is not running.
func (s *Service) RecordEvent(label string, payload map[string]any) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	if !started {
		return ErrNotRecording
	}

	e := model.EventSample{
		Timestamp: math.Float64frombits(s.lastTS.Load()),
		Label:     label,
		Payload:   payload,
	}
	s.buf.AppendEvent(e)
	for _, fn := range s.eventObservers {
		fn(e)
	}
	return nil
}

// milestoneRecorder lets the calibration engine record its milestones
// through the session without caring whether recording is active.
type milestoneRecorder struct {
	s *Service
}

func (r milestoneRecorder) RecordEvent(label string, payload map[string]any) {
	e := model.EventSample{
		Timestamp: math.Float64frombits(r.s.lastTS.Load()),
		Label:     label,
		Payload:   payload,
	}
	r.s.buf.AppendEvent(e)
	for _, fn := range r.s.eventObservers {
		fn(e)
	}
}

// Calibrate runs the calibration sequence over the given targets. The
// session moves to Calibrating for the duration and back to Tracking after,
// whatever the outcome. Re-invoke with a subset of targets to retry failed
// points.
func (s *Service) Calibrate(ctx context.Context, points []model.Point2D) (calibration.Result, error) {
	if err := s.mon.Transition(ctx, model.Status{Kind: model.StatusCalibrating}); err != nil {
		return calibration.Result{}, err
	}

	res, err := s.engine.Run(ctx, points)

	// Best effort: a mid-run source failure has already moved the machine
	// to Error, and Error -> Tracking is not an edge.
	_ = s.mon.Transition(ctx, model.Status{Kind: model.StatusTracking})
	return res, err
}

// NextCalibrationTarget exposes the position the stimulus layer should
// render. ok is false outside a calibration run.
func (s *Service) NextCalibrationTarget() (model.Point2D, bool) {
	return s.engine.NextTarget()
}

// AbortCalibration cancels an in-progress calibration run.
func (s *Service) AbortCalibration() {
	s.engine.Abort()
}

// Export snapshots the buffer and writes it to path as CSV. Concurrent
// appends continue; a concurrent Reset fails with ErrBusy until the file
// is written.
func (s *Service) Export(ctx context.Context, path string) error {
	return s.buf.ExportWith(func(records []model.Record) error {
		err := s.exporter.WriteFile(records, path)
		if err != nil {
			return err
		}
		s.log.Info(ctx, "session exported",
			logger.String("path", path),
			logger.Int("records", len(records)),
		)
		return nil
	})
}

// Snapshot returns a point-in-time copy of the session's records.
func (s *Service) Snapshot() []model.Record {
	return s.buf.Snapshot()
}

// Reset clears the buffer and, when the session is in an error state,
// returns the status machine to Disconnected. Fails with buffer.ErrBusy
// while an export is running.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.buf.Clear(ctx); err != nil {
		return err
	}
	if s.mon.Current().Kind == model.StatusError {
		return s.mon.Reset(ctx)
	}
	return nil
}

// OnStatusChange registers an observer for committed status transitions.
func (s *Service) OnStatusChange(fn StatusObserver) {
	if fn == nil {
		return
	}
	s.mon.OnChange(func(_, now model.Status) { fn(now) })
}

// SessionID identifies this session; exported files and telemetry carry it.
func (s *Service) SessionID() string { return s.sessionID }

// Status returns the tracker's current state.
func (s *Service) Status() model.Status { return s.mon.Current() }

// BufferLen returns the number of buffered records.
func (s *Service) BufferLen() int { return s.buf.Len() }

// DroppedSamples returns the count of gaze samples rejected at ingestion.
func (s *Service) DroppedSamples() uint64 { return s.buf.Dropped() }

// SampleRate returns the configured acquisition rate in Hz.
func (s *Service) SampleRate() float64 { return s.sampleRate }

// IsRecording reports whether acquisition is running.
func (s *Service) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
