package geometry_test

import (
	"math"
	"testing"

	"github.com/infantlab/gazekit/internal/domain/geometry"
	"github.com/infantlab/gazekit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVisualAngle(t *testing.T) {
	Convey("Given a typical lab screen (510x287 mm at 600 mm)", t, func() {
		screen := geometry.Screen{WidthMM: 510, HeightMM: 287, DistanceMM: 600}

		Convey("When both points coincide", func() {
			p := model.Point2D{X: 0.3, Y: 0.7}

			Convey("Then the angle should be zero", func() {
				So(screen.VisualAngle(p, p), ShouldAlmostEqual, 0, 1e-9)
			})
		})

		Convey("When points are horizontally offset around the center", func() {
			// 51 mm apart, symmetric around the normal: each ray is
			// atan(25.5/600) off-axis, so the separation doubles that.
			a := model.Point2D{X: 0.45, Y: 0.5}
			b := model.Point2D{X: 0.55, Y: 0.5}
			want := 2 * math.Atan2(25.5, 600) * 180 / math.Pi

			Convey("Then the angle should match the analytic value", func() {
				So(screen.VisualAngle(a, b), ShouldAlmostEqual, want, 1e-9)
			})
		})

		Convey("When one point is at the center", func() {
			center := model.Point2D{X: 0.5, Y: 0.5}
			off := model.Point2D{X: 0.5 + 60.0/510.0, Y: 0.5}
			want := math.Atan2(60, 600) * 180 / math.Pi

			Convey("Then the angle should be the off-axis angle", func() {
				So(screen.VisualAngle(center, off), ShouldAlmostEqual, want, 1e-9)
			})
		})

		Convey("When angles are symmetric", func() {
			a := model.Point2D{X: 0.2, Y: 0.3}
			b := model.Point2D{X: 0.8, Y: 0.6}

			Convey("Then the angle should not depend on argument order", func() {
				So(screen.VisualAngle(a, b), ShouldAlmostEqual, screen.VisualAngle(b, a), 1e-12)
			})
		})

		Convey("When a point is invalid", func() {
			a := model.Point2D{X: 0.5, Y: 0.5}

			Convey("Then the angle should be NaN", func() {
				So(math.IsNaN(screen.VisualAngle(a, model.InvalidPoint())), ShouldBeTrue)
			})
		})
	})

	Convey("Given a degenerate zero-distance geometry", t, func() {
		screen := geometry.Screen{WidthMM: 510, HeightMM: 287, DistanceMM: 0}

		Convey("Then the center point should produce NaN, not panic", func() {
			center := model.Point2D{X: 0.5, Y: 0.5}
			off := model.Point2D{X: 0.6, Y: 0.5}
			So(math.IsNaN(screen.VisualAngle(center, off)), ShouldBeTrue)
		})
	})
}
