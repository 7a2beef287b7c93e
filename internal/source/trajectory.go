package source

import (
	"math"

	"github.com/infantlab/gazekit/internal/domain/model"
)

// Trajectory maps elapsed simulation time (seconds) to the noise-free gaze
// position the simulated participant is looking at.
type Trajectory func(t float64) model.Point2D

// Fixation holds gaze on a single target, emulating a participant fixating
// a calibration point.
func Fixation(target model.Point2D) Trajectory {
	return func(float64) model.Point2D {
		return target
	}
}

// Pursuit traces a smooth elliptic path around center, emulating smooth
// pursuit of a moving stimulus. period is seconds per revolution.
func Pursuit(center model.Point2D, radiusX, radiusY, period float64) Trajectory {
	if period <= 0 {
		period = 1
	}
	return func(t float64) model.Point2D {
		phase := 2 * math.Pi * t / period
		return model.Point2D{
			X: center.X + radiusX*math.Cos(phase),
			Y: center.Y + radiusY*math.Sin(phase),
		}
	}
}

// CenterFixation is the default trajectory: gaze resting on screen center.
func CenterFixation() Trajectory {
	return Fixation(model.Point2D{X: 0.5, Y: 0.5})
}
