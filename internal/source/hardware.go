package source

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
)

// Microseconds per second on the device clock.
const deviceClockHz = 1e6

// RawGaze mirrors the vendor SDK's native gaze callback payload. Field
// names follow the wire names the SDK reports.
type RawGaze struct {
	SystemTimeStamp             int64 // microseconds on the device clock
	LeftGazePointOnDisplayArea  [2]float64
	LeftGazePointValidity       int
	LeftPupilDiameter           float64
	LeftPupilValidity           int
	RightGazePointOnDisplayArea [2]float64
	RightGazePointValidity      int
	RightPupilDiameter          float64
	RightPupilValidity          int
}

// Tracker is the narrow vendor SDK boundary the hardware source consumes:
// subscription registration and streaming start/stop. Device discovery and
// licensing live behind the binding that implements this.
type Tracker interface {
	// Subscribe starts streaming and registers the raw gaze callback.
	Subscribe(cb func(RawGaze)) error
	// Unsubscribe stops streaming. Must be safe to call when not subscribed.
	Unsubscribe() error
}

// Hardware adapts a vendor tracker into the Source contract, normalizing
// each native tick into a model.GazeSample.
type Hardware struct {
	tracker Tracker

	mu     sync.Mutex
	active bool
	t0     int64 // device timestamp of the first tick; -1 until seen
	log    logger.Logger
}

// NewHardware wraps a tracker binding.
func NewHardware(tracker Tracker, opts ...HWOption) *Hardware {
	h := &Hardware{
		tracker: tracker,
		t0:      -1,
		log:     logger.Get().Named("hw-source"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start subscribes to the tracker's gaze stream.
func (h *Hardware) Start(ctx context.Context, onSample SampleFunc, onStatus StatusFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active {
		return ErrBusy
	}
	if h.tracker == nil {
		return fmt.Errorf("%w: no tracker binding", ErrUnavailable)
	}

	h.t0 = -1
	err := h.tracker.Subscribe(func(raw RawGaze) {
		if onSample != nil {
			onSample(h.normalize(raw))
		}
	})
	if err != nil {
		if onStatus != nil {
			onStatus(model.ErrorStatus(err.Error()))
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	h.active = true
	h.log.Info(ctx, "hardware source subscribed")
	if onStatus != nil {
		onStatus(model.Status{Kind: model.StatusConnected})
	}
	return nil
}

// normalize converts a native tick. A malformed or missing field yields a
// sample with validity false rather than dropping the tick, preserving
// timestamp continuity.
func (h *Hardware) normalize(raw RawGaze) model.GazeSample {
	h.mu.Lock()
	if h.t0 < 0 {
		h.t0 = raw.SystemTimeStamp
	}
	t0 := h.t0
	h.mu.Unlock()

	return model.GazeSample{
		Timestamp: float64(raw.SystemTimeStamp-t0) / deviceClockHz,
		Left: normalizeEye(
			raw.LeftGazePointOnDisplayArea,
			raw.LeftGazePointValidity,
			raw.LeftPupilDiameter,
			raw.LeftPupilValidity,
		),
		Right: normalizeEye(
			raw.RightGazePointOnDisplayArea,
			raw.RightGazePointValidity,
			raw.RightPupilDiameter,
			raw.RightPupilValidity,
		),
	}
}

func normalizeEye(point [2]float64, validity int, pupil float64, pupilValidity int) model.EyeSample {
	eye := model.EyeSample{
		GazePoint:     model.InvalidPoint(),
		PupilDiameter: math.NaN(),
	}

	if validity == 1 && !math.IsNaN(point[0]) && !math.IsNaN(point[1]) {
		eye.GazePoint = model.Point2D{X: point[0], Y: point[1]}
		eye.Valid = true
	}
	if pupilValidity == 1 && !math.IsNaN(pupil) && pupil >= 0 {
		eye.PupilDiameter = pupil
		eye.PupilValid = true
	}
	return eye
}

// Stop unsubscribes from the tracker. Idempotent.
func (h *Hardware) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.active {
		return
	}
	h.active = false
	if err := h.tracker.Unsubscribe(); err != nil {
		h.log.Warn(context.Background(), "tracker unsubscribe failed", logger.Error(err))
	}
}

// IsActive reports whether the subscription is live.
func (h *Hardware) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// HWOption applies a configuration option to the Hardware source.
type HWOption func(*Hardware)

// WithHWLogger sets a custom logger for the hardware source.
func WithHWLogger(log logger.Logger) HWOption {
	return func(h *Hardware) {
		if log != nil {
			h.log = log
		}
	}
}
