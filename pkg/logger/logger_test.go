package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/infantlab/gazekit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLogger(t *testing.T) {
	Convey("Given an initialized global logger", t, func() {
		err := logger.Init()
		So(err, ShouldBeNil)

		Convey("When getting the global logger", func() {
			l := logger.Get()

			Convey("Then it should not be nil", func() {
				So(l, ShouldNotBeNil)
			})

			Convey("And logging should not panic", func() {
				ctx := context.Background()
				So(func() {
					l.Info(ctx, "info message", logger.String("k", "v"))
					l.Debug(ctx, "debug message", logger.Int("n", 1))
					l.Warn(ctx, "warn message", logger.Float64("f", 1.5))
					l.Error(ctx, "error message", logger.Bool("b", true))
				}, ShouldNotPanic)
			})
		})

		Convey("When creating a named logger", func() {
			l := logger.Named("calibration")

			Convey("Then it should not be nil", func() {
				So(l, ShouldNotBeNil)
			})

			Convey("And nesting names should work", func() {
				So(l.Named("point"), ShouldNotBeNil)
			})
		})

		Convey("When setting the level from a string", func() {
			Convey("Then known levels should be accepted", func() {
				So(logger.SetLevelString("debug"), ShouldBeNil)
				So(logger.SetLevelString("info"), ShouldBeNil)
				So(logger.SetLevelString("warning"), ShouldBeNil)
				So(logger.SetLevelString("ERROR"), ShouldBeNil)
				So(logger.SetLevelString(""), ShouldBeNil)
			})

			Convey("Then unknown levels should be rejected", func() {
				So(logger.SetLevelString("verbose"), ShouldNotBeNil)
			})
		})

		Convey("When setting the level directly", func() {
			So(func() { logger.SetLevel(slog.LevelDebug) }, ShouldNotPanic)
		})
	})
}
