package status_test

import (
	"context"
	"errors"
	"testing"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/internal/status"
	"github.com/infantlab/gazekit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMonitor(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new monitor", t, func() {
		m := status.NewMonitor()

		Convey("Then it should start disconnected", func() {
			So(m.Current().Kind, ShouldEqual, model.StatusDisconnected)
		})

		Convey("When walking the allowed happy path", func() {
			So(m.Transition(ctx, model.Status{Kind: model.StatusConnected}), ShouldBeNil)
			So(m.Transition(ctx, model.Status{Kind: model.StatusTracking}), ShouldBeNil)
			So(m.Transition(ctx, model.Status{Kind: model.StatusCalibrating}), ShouldBeNil)
			So(m.Transition(ctx, model.Status{Kind: model.StatusTracking}), ShouldBeNil)

			Convey("Then the final state should be tracking", func() {
				So(m.Current().Kind, ShouldEqual, model.StatusTracking)
			})
		})

		Convey("When attempting Tracking -> Disconnected directly", func() {
			So(m.Transition(ctx, model.Status{Kind: model.StatusConnected}), ShouldBeNil)
			So(m.Transition(ctx, model.Status{Kind: model.StatusTracking}), ShouldBeNil)

			err := m.Transition(ctx, model.Status{Kind: model.StatusDisconnected})

			Convey("Then it should be rejected and state left unchanged", func() {
				So(errors.Is(err, status.ErrInvalidTransition), ShouldBeTrue)
				So(m.Current().Kind, ShouldEqual, model.StatusTracking)
			})
		})

		Convey("When a source failure happens in any state", func() {
			So(m.Transition(ctx, model.Status{Kind: model.StatusConnected}), ShouldBeNil)
			So(m.Transition(ctx, model.ErrorStatus("device unplugged")), ShouldBeNil)

			Convey("Then the error state should carry the reason", func() {
				cur := m.Current()
				So(cur.Kind, ShouldEqual, model.StatusError)
				So(cur.Reason, ShouldEqual, "device unplugged")
			})

			Convey("And only a reset should leave the error state", func() {
				So(errors.Is(
					m.Transition(ctx, model.Status{Kind: model.StatusTracking}),
					status.ErrInvalidTransition,
				), ShouldBeTrue)
				So(m.Reset(ctx), ShouldBeNil)
				So(m.Current().Kind, ShouldEqual, model.StatusDisconnected)
			})
		})

		Convey("When observers are registered", func() {
			var got []model.StatusKind
			m.OnChange(func(old, new model.Status) {
				got = append(got, new.Kind)
			})

			So(m.Transition(ctx, model.Status{Kind: model.StatusConnected}), ShouldBeNil)
			So(m.Transition(ctx, model.Status{Kind: model.StatusTracking}), ShouldBeNil)
			_ = m.Transition(ctx, model.Status{Kind: model.StatusDisconnected}) // rejected

			Convey("Then observers should see committed transitions in order", func() {
				So(got, ShouldResemble, []model.StatusKind{
					model.StatusConnected,
					model.StatusTracking,
				})
			})
		})

		Convey("When registering a nil observer", func() {
			So(func() { m.OnChange(nil) }, ShouldNotPanic)
			So(m.Transition(ctx, model.Status{Kind: model.StatusConnected}), ShouldBeNil)
		})
	})
}
