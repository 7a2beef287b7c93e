// Package model contains domain models passed between layers.
package model

import "math"

// Point2D is a position in normalized display coordinates, where (0,0) is
// the top-left of the screen and (1,1) the bottom-right.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// InvalidPoint is the sentinel for a gaze point the tracker could not
// resolve. Matches the NaN coordinates hardware trackers report.
func InvalidPoint() Point2D {
	return Point2D{X: math.NaN(), Y: math.NaN()}
}

// EyeSample holds one eye's measurement within a gaze sample.
type EyeSample struct {
	GazePoint     Point2D `json:"gaze_point"`
	PupilDiameter float64 `json:"pupil_diameter"` // millimeters; NaN when PupilValid is false
	Valid         bool    `json:"valid"`
	PupilValid    bool    `json:"pupil_valid"`
}

// GazeSample is one timestamped measurement from both eyes.
type GazeSample struct {
	Timestamp float64   `json:"timestamp"` // seconds on the source clock
	Left      EyeSample `json:"left"`
	Right     EyeSample `json:"right"`
}

// SampleTime implements Sample.
func (s GazeSample) SampleTime() float64 { return s.Timestamp }

// AnyValid reports whether at least one eye carried a usable gaze point.
func (s GazeSample) AnyValid() bool { return s.Left.Valid || s.Right.Valid }

// CombinedGaze returns the mean of the valid eyes' gaze points. The second
// return value is false when neither eye is valid.
func (s GazeSample) CombinedGaze() (Point2D, bool) {
	switch {
	case s.Left.Valid && s.Right.Valid:
		return Point2D{
			X: (s.Left.GazePoint.X + s.Right.GazePoint.X) / 2,
			Y: (s.Left.GazePoint.Y + s.Right.GazePoint.Y) / 2,
		}, true
	case s.Left.Valid:
		return s.Left.GazePoint, true
	case s.Right.Valid:
		return s.Right.GazePoint, true
	default:
		return InvalidPoint(), false
	}
}

// EventSample is an experiment-level marker, e.g. "calibration_point_start".
type EventSample struct {
	Timestamp float64        `json:"timestamp"`
	Label     string         `json:"label"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// SampleTime implements Sample.
func (e EventSample) SampleTime() float64 { return e.Timestamp }

// Sample is the callback contract shared by all sources: both gaze and
// event records flow through the same delivery path.
type Sample interface {
	SampleTime() float64
}

// RecordKind tags the variant held by a Record.
type RecordKind int

const (
	KindGaze RecordKind = iota
	KindEvent
)

// String returns the kind name used in exports and metrics labels.
func (k RecordKind) String() string {
	switch k {
	case KindGaze:
		return "gaze"
	case KindEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Record is a buffered (GazeSample | EventSample) with its buffer sequence
// number. Exactly one of Gaze/Event is meaningful, selected by Kind.
type Record struct {
	Seq   uint64
	Kind  RecordKind
	Gaze  GazeSample
	Event EventSample
}

// Timestamp returns the wrapped sample's timestamp.
func (r Record) Timestamp() float64 {
	if r.Kind == KindEvent {
		return r.Event.Timestamp
	}
	return r.Gaze.Timestamp
}
