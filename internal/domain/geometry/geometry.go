// Package geometry converts normalized display coordinates into degrees of
// visual angle given a configured screen-to-eye setup.
//
// The eye is modeled on the normal through the screen center at the
// configured viewing distance. A normalized point maps to millimeters on
// the screen plane:
//
//	x_mm = (p.X - 0.5) * width_mm
//	y_mm = (p.Y - 0.5) * height_mm
//
// and the angle between two points is the angle between their eye-to-point
// vectors.
package geometry

import (
	"math"

	"github.com/infantlab/gazekit/internal/domain/model"
)

// Screen describes the physical display and viewing geometry.
type Screen struct {
	WidthMM    float64
	HeightMM   float64
	DistanceMM float64 // eye to screen center, along the screen normal
}

// vector returns the eye-to-point vector in millimeters.
func (s Screen) vector(p model.Point2D) (x, y, z float64) {
	return (p.X - 0.5) * s.WidthMM, (p.Y - 0.5) * s.HeightMM, s.DistanceMM
}

// VisualAngle returns the angle in degrees subtended at the eye between two
// normalized display points. Returns NaN when either point is invalid or
// the geometry is degenerate.
func (s Screen) VisualAngle(a, b model.Point2D) float64 {
	ax, ay, az := s.vector(a)
	bx, by, bz := s.vector(b)

	na := math.Sqrt(ax*ax + ay*ay + az*az)
	nb := math.Sqrt(bx*bx + by*by + bz*bz)
	if na == 0 || nb == 0 {
		return math.NaN()
	}

	cos := (ax*bx + ay*by + az*bz) / (na * nb)
	// Clamp against floating point drift before acos.
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}
