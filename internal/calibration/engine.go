// Package calibration sequences calibration targets, collects a window of
// gaze samples per target, and computes per-point and overall accuracy and
// precision.
//
// Points are processed strictly sequentially; the engine never moves to the
// next point before the current window closes (quota reached or timeout).
// Failed points are not retried automatically: the caller re-invokes Run
// with the subset it wants to recalibrate.
package calibration

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/infantlab/gazekit/internal/domain/geometry"
	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
	"github.com/infantlab/gazekit/pkg/metrics"
)

// Default calibration configuration constants.
const (
	defaultSettle        = 500 * time.Millisecond
	defaultWindowQuota   = 30
	defaultWindowTimeout = 1500 * time.Millisecond
	defaultMinValid      = 10
	defaultPointDeg      = 1.5 // per-point accuracy threshold
	defaultOverallDeg    = 2.0 // looser threshold on the run's mean accuracy
	windowBufferSize     = 256
)

// EventRecorder marks calibration milestones in the session record stream.
type EventRecorder interface {
	RecordEvent(label string, payload map[string]any)
}

// PointResult is the quality summary for one calibration target.
type PointResult struct {
	Target            model.Point2D `json:"target"`
	SamplesCollected  int           `json:"samples_collected"` // valid samples retained in the window
	MeanLeft          model.Point2D `json:"mean_left"`
	MeanRight         model.Point2D `json:"mean_right"`
	MeanLeftErrorDeg  float64       `json:"mean_left_error_deg"`
	MeanRightErrorDeg float64       `json:"mean_right_error_deg"`
	AccuracyDeg       float64       `json:"accuracy_deg"`
	PrecisionRMSDeg   float64       `json:"precision_rms_deg"`
	Accepted          bool          `json:"accepted"`
}

// Result is the outcome of one calibration run.
type Result struct {
	Points          []PointResult `json:"points"`
	Accepted        bool          `json:"accepted"`
	MeanAccuracyDeg float64       `json:"mean_accuracy_deg"`
	Aborted         bool          `json:"aborted"`
}

// Engine runs the calibration sequence. Samples are pushed in via Offer
// from the live delivery path; Run consumes them during collection windows.
type Engine struct {
	geom          geometry.Screen
	settle        time.Duration
	windowQuota   int
	windowTimeout time.Duration
	minValid      int
	pointDeg      float64
	overallDeg    float64
	events        EventRecorder
	log           logger.Logger

	mu      sync.Mutex
	running bool
	win     chan model.GazeSample // open only during a collection window
	abort   chan struct{}
	next    *model.Point2D
}

// New creates an engine for the given screen geometry.
func New(geom geometry.Screen, opts ...Option) *Engine {
	e := &Engine{
		geom:          geom,
		settle:        defaultSettle,
		windowQuota:   defaultWindowQuota,
		windowTimeout: defaultWindowTimeout,
		minValid:      defaultMinValid,
		pointDeg:      defaultPointDeg,
		overallDeg:    defaultOverallDeg,
		log:           logger.Get().Named("calibration"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Offer feeds a live gaze sample into the engine. Non-blocking: outside a
// collection window, or when the window buffer is full, the sample is
// ignored (it still reaches the buffer through the normal path).
func (e *Engine) Offer(s model.GazeSample) {
	e.mu.Lock()
	win := e.win
	e.mu.Unlock()

	if win == nil {
		return
	}
	select {
	case win <- s:
	default:
	}
}

// NextTarget returns the position the stimulus layer should render next.
// ok is false when no calibration is in progress.
func (e *Engine) NextTarget() (model.Point2D, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.next == nil {
		return model.Point2D{}, false
	}
	return *e.next, true
}

// Abort cancels an in-progress run from any goroutine. In-flight collection
// windows observe it within one sample interval.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.abort != nil {
		select {
		case <-e.abort:
		default:
			close(e.abort)
		}
	}
}

// Run calibrates over the given targets in order. On abort (explicit or
// source disconnect) it returns the partial result with Aborted set plus
// ErrAborted; it never labels an incomplete run as complete.
func (e *Engine) Run(ctx context.Context, points []model.Point2D) (Result, error) {
	if len(points) == 0 {
		return Result{}, ErrNoPoints
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return Result{}, ErrAlreadyRunning
	}
	e.running = true
	e.abort = make(chan struct{})
	abort := e.abort
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.win = nil
		e.next = nil
		e.mu.Unlock()
	}()

	res := Result{Points: make([]PointResult, 0, len(points))}

	for i, target := range points {
		e.mu.Lock()
		t := target
		e.next = &t
		e.mu.Unlock()

		e.recordEvent("calibration_point_start", map[string]any{
			"index": i, "x": target.X, "y": target.Y,
		})

		if aborted := e.wait(ctx, abort, e.settle); aborted {
			return e.finishAborted(ctx, res)
		}

		samples, aborted := e.collect(ctx, abort)
		pr := e.scorePoint(target, samples)
		if aborted {
			// The interrupted window's partial data is not scored as a
			// completed point.
			return e.finishAborted(ctx, res)
		}

		res.Points = append(res.Points, pr)
		metrics.RecordCalibrationPoint(pr.Accepted)
		if !math.IsNaN(pr.AccuracyDeg) {
			metrics.ObservePointAccuracy(pr.AccuracyDeg)
		}
		if !math.IsNaN(pr.PrecisionRMSDeg) {
			metrics.ObservePointPrecision(pr.PrecisionRMSDeg)
		}

		e.log.Info(ctx, "calibration point done",
			logger.Int("index", i),
			logger.Int("samples", pr.SamplesCollected),
			logger.Float64("accuracy_deg", pr.AccuracyDeg),
			logger.Float64("precision_rms_deg", pr.PrecisionRMSDeg),
			logger.Bool("accepted", pr.Accepted),
		)

		e.recordEvent("calibration_point_end", map[string]any{
			"index":             i,
			"samples_collected": pr.SamplesCollected,
			"accuracy_deg":      pr.AccuracyDeg,
			"accepted":          pr.Accepted,
		})
	}

	res.MeanAccuracyDeg = meanAccuracy(res.Points)
	res.Accepted = allAccepted(res.Points) &&
		!math.IsNaN(res.MeanAccuracyDeg) &&
		res.MeanAccuracyDeg <= e.overallDeg

	metrics.RecordCalibrationRun(res.Accepted)
	e.recordEvent("calibration_result", map[string]any{
		"accepted":          res.Accepted,
		"mean_accuracy_deg": res.MeanAccuracyDeg,
		"points":            len(res.Points),
	})
	return res, nil
}

// wait blocks for d or until cancellation; reports whether it was aborted.
func (e *Engine) wait(ctx context.Context, abort <-chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-abort:
		return true
	case <-timer.C:
		return false
	}
}

// collect opens a window and gathers raw samples until the quota is met or
// the timeout elapses.
func (e *Engine) collect(ctx context.Context, abort <-chan struct{}) ([]model.GazeSample, bool) {
	win := make(chan model.GazeSample, windowBufferSize)
	e.mu.Lock()
	e.win = win
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.win = nil
		e.mu.Unlock()
	}()

	timer := time.NewTimer(e.windowTimeout)
	defer timer.Stop()

	var raw []model.GazeSample
	for len(raw) < e.windowQuota {
		select {
		case <-ctx.Done():
			return raw, true
		case <-abort:
			return raw, true
		case <-timer.C:
			return raw, false
		case s := <-win:
			raw = append(raw, s)
		}
	}
	return raw, false
}

// scorePoint discards invalid samples and computes the point's quality.
func (e *Engine) scorePoint(target model.Point2D, raw []model.GazeSample) PointResult {
	pr := PointResult{
		Target:            target,
		MeanLeft:          model.InvalidPoint(),
		MeanRight:         model.InvalidPoint(),
		MeanLeftErrorDeg:  math.NaN(),
		MeanRightErrorDeg: math.NaN(),
		AccuracyDeg:       math.NaN(),
		PrecisionRMSDeg:   math.NaN(),
	}

	var retained []model.GazeSample
	for _, s := range raw {
		if s.AnyValid() {
			retained = append(retained, s)
		}
	}
	pr.SamplesCollected = len(retained)
	if len(retained) == 0 {
		return pr
	}

	if mean, ok := meanEye(retained, func(s model.GazeSample) model.EyeSample { return s.Left }); ok {
		pr.MeanLeft = mean
		pr.MeanLeftErrorDeg = e.geom.VisualAngle(mean, target)
	}
	if mean, ok := meanEye(retained, func(s model.GazeSample) model.EyeSample { return s.Right }); ok {
		pr.MeanRight = mean
		pr.MeanRightErrorDeg = e.geom.VisualAngle(mean, target)
	}

	pr.AccuracyDeg = combineEyes(pr.MeanLeftErrorDeg, pr.MeanRightErrorDeg)
	pr.PrecisionRMSDeg = e.precisionRMS(retained)
	pr.Accepted = pr.SamplesCollected >= e.minValid &&
		!math.IsNaN(pr.AccuracyDeg) &&
		pr.AccuracyDeg <= e.pointDeg
	return pr
}

// precisionRMS is the RMS of the angular distance between successive
// combined gaze points within the window.
func (e *Engine) precisionRMS(retained []model.GazeSample) float64 {
	var prev model.Point2D
	havePrev := false
	var sumSq float64
	var n int

	for _, s := range retained {
		p, ok := s.CombinedGaze()
		if !ok {
			continue
		}
		if havePrev {
			d := e.geom.VisualAngle(prev, p)
			if !math.IsNaN(d) {
				sumSq += d * d
				n++
			}
		}
		prev = p
		havePrev = true
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

func (e *Engine) finishAborted(ctx context.Context, res Result) (Result, error) {
	res.Aborted = true
	res.MeanAccuracyDeg = meanAccuracy(res.Points)
	metrics.RecordCalibrationAbort()
	e.log.Warn(ctx, "calibration aborted",
		logger.Int("points_completed", len(res.Points)),
	)
	e.recordEvent("calibration_aborted", map[string]any{
		"points_completed": len(res.Points),
	})
	return res, ErrAborted
}

func (e *Engine) recordEvent(label string, payload map[string]any) {
	if e.events != nil {
		e.events.RecordEvent(label, payload)
	}
}

// meanEye averages one eye's gaze points over its valid samples.
func meanEye(samples []model.GazeSample, pick func(model.GazeSample) model.EyeSample) (model.Point2D, bool) {
	var sx, sy float64
	var n int
	for _, s := range samples {
		eye := pick(s)
		if !eye.Valid {
			continue
		}
		sx += eye.GazePoint.X
		sy += eye.GazePoint.Y
		n++
	}
	if n == 0 {
		return model.InvalidPoint(), false
	}
	return model.Point2D{X: sx / float64(n), Y: sy / float64(n)}, true
}

// combineEyes averages the per-eye errors, tolerating a missing eye.
func combineEyes(left, right float64) float64 {
	switch {
	case !math.IsNaN(left) && !math.IsNaN(right):
		return (left + right) / 2
	case !math.IsNaN(left):
		return left
	case !math.IsNaN(right):
		return right
	default:
		return math.NaN()
	}
}

func meanAccuracy(points []PointResult) float64 {
	var sum float64
	var n int
	for _, p := range points {
		if !math.IsNaN(p.AccuracyDeg) {
			sum += p.AccuracyDeg
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func allAccepted(points []PointResult) bool {
	for _, p := range points {
		if !p.Accepted {
			return false
		}
	}
	return len(points) > 0
}
