package source_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/internal/source"
	"github.com/infantlab/gazekit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// collectSamples runs the source until n gaze samples arrive or the timeout
// elapses, then stops it.
func collectSamples(s *source.Simulated, n int, timeout time.Duration) []model.GazeSample {
	var (
		mu      sync.Mutex
		samples []model.GazeSample
	)
	done := make(chan struct{})

	err := s.Start(context.Background(), func(sample model.Sample) {
		gaze, ok := sample.(model.GazeSample)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if len(samples) < n {
			samples = append(samples, gaze)
			if len(samples) == n {
				close(done)
			}
		}
	}, nil)
	if err != nil {
		return nil
	}

	select {
	case <-done:
	case <-time.After(timeout):
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	return append([]model.GazeSample(nil), samples...)
}

func TestSimulated(t *testing.T) {
	Convey("Given a simulated source with a fixed seed", t, func() {
		newSource := func() *source.Simulated {
			return source.NewSimulated(
				source.WithSampleRate(500), // fast rate keeps the test short
				source.WithSeed(7),
				source.WithNoiseStdDev(0.01),
			)
		}

		Convey("When collecting the same number of samples twice", func() {
			first := collectSamples(newSource(), 50, 5*time.Second)
			second := collectSamples(newSource(), 50, 5*time.Second)

			Convey("Then the sequences should be bit-identical", func() {
				So(first, ShouldHaveLength, 50)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When collecting samples", func() {
			samples := collectSamples(newSource(), 30, 5*time.Second)

			Convey("Then timestamps should follow the simulated clock", func() {
				So(samples, ShouldHaveLength, 30)
				for i, s := range samples {
					So(s.Timestamp, ShouldAlmostEqual, float64(i)/500, 1e-12)
				}
			})

			Convey("Then samples near screen center should be valid", func() {
				for _, s := range samples {
					So(s.Left.Valid, ShouldBeTrue)
					So(s.Right.Valid, ShouldBeTrue)
					So(s.Left.PupilDiameter, ShouldBeGreaterThan, 0)
				}
			})
		})

		Convey("When starting an already-active source", func() {
			s := newSource()
			So(s.Start(context.Background(), func(model.Sample) {}, nil), ShouldBeNil)

			err := s.Start(context.Background(), func(model.Sample) {}, nil)

			Convey("Then it should fail with ErrBusy", func() {
				So(err, ShouldEqual, source.ErrBusy)
				s.Stop()
			})
		})

		Convey("When stopping twice", func() {
			s := newSource()
			So(s.Start(context.Background(), func(model.Sample) {}, nil), ShouldBeNil)

			Convey("Then Stop should be idempotent", func() {
				So(func() {
					s.Stop()
					s.Stop()
				}, ShouldNotPanic)
				So(s.IsActive(), ShouldBeFalse)
			})
		})

		Convey("When the source fails mid-stream", func() {
			s := newSource()
			statusCh := make(chan model.Status, 8)
			err := s.Start(context.Background(), func(model.Sample) {}, func(st model.Status) {
				statusCh <- st
			})
			So(err, ShouldBeNil)

			s.Fail("simulated disconnect")

			Convey("Then the error status should be reported and delivery stop", func() {
				So(s.IsActive(), ShouldBeFalse)

				var got []model.Status
				for len(statusCh) > 0 {
					got = append(got, <-statusCh)
				}
				So(len(got), ShouldBeGreaterThanOrEqualTo, 2)
				So(got[0].Kind, ShouldEqual, model.StatusConnected)
				So(got[len(got)-1].Kind, ShouldEqual, model.StatusError)
				So(got[len(got)-1].Reason, ShouldEqual, "simulated disconnect")
			})
		})

		Convey("When the trajectory is swapped mid-stream", func() {
			s := source.NewSimulated(
				source.WithSampleRate(500),
				source.WithSeed(7),
				source.WithNoiseStdDev(0), // zero noise pins gaze on the trajectory
				source.WithTrajectory(source.Fixation(model.Point2D{X: 0.2, Y: 0.2})),
			)

			var (
				mu      sync.Mutex
				samples []model.GazeSample
			)
			So(s.Start(context.Background(), func(sample model.Sample) {
				if g, ok := sample.(model.GazeSample); ok {
					mu.Lock()
					samples = append(samples, g)
					mu.Unlock()
				}
			}, nil), ShouldBeNil)

			time.Sleep(50 * time.Millisecond)
			s.SetTrajectory(source.Fixation(model.Point2D{X: 0.8, Y: 0.8}))
			time.Sleep(50 * time.Millisecond)
			s.Stop()

			Convey("Then later samples should follow the new fixation", func() {
				mu.Lock()
				defer mu.Unlock()
				So(len(samples), ShouldBeGreaterThan, 2)
				So(samples[0].Left.GazePoint.X, ShouldAlmostEqual, 0.2)
				last := samples[len(samples)-1]
				So(last.Left.GazePoint.X, ShouldAlmostEqual, 0.8)
			})
		})
	})

	Convey("Given trajectory helpers", t, func() {
		Convey("Then Fixation should be constant", func() {
			traj := source.Fixation(model.Point2D{X: 0.3, Y: 0.7})
			So(traj(0), ShouldResemble, traj(12.5))
		})

		Convey("Then Pursuit should return to its start each period", func() {
			traj := source.Pursuit(model.Point2D{X: 0.5, Y: 0.5}, 0.2, 0.1, 2.0)
			start := traj(0)
			So(traj(2.0).X, ShouldAlmostEqual, start.X, 1e-9)
			So(traj(2.0).Y, ShouldAlmostEqual, start.Y, 1e-9)
			So(start.X, ShouldAlmostEqual, 0.7)
		})
	})
}
