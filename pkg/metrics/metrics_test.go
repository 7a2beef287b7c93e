package metrics_test

import (
	"testing"

	"github.com/infantlab/gazekit/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManager(t *testing.T) {
	Convey("Given a manager on a private registry", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(
			metrics.WithPrometheusRegistry(reg),
			metrics.WithNamespace("gazekit_test"),
		)

		Convey("Then it should not be nil", func() {
			So(m, ShouldNotBeNil)
		})

		Convey("When recording acquisition metrics", func() {
			So(func() {
				m.RecordSampleAppended("gaze")
				m.RecordSampleAppended("event")
				m.RecordSampleDropped("stale")
				m.RecordInvalidSample()
				m.UpdateBufferLen(42)
				m.RecordBufferClear()
			}, ShouldNotPanic)

			Convey("Then the registry should expose them", func() {
				families, err := reg.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When recording status and calibration metrics", func() {
			So(func() {
				m.RecordStatusTransition("disconnected", "connected")
				m.RecordInvalidTransition()
				m.RecordCalibrationPoint(true)
				m.RecordCalibrationPoint(false)
				m.ObservePointAccuracy(0.8)
				m.ObservePointPrecision(0.2)
				m.RecordCalibrationRun(true)
				m.RecordCalibrationAbort()
			}, ShouldNotPanic)
		})

		Convey("When recording export and feed metrics", func() {
			So(func() {
				m.RecordExportRows(100)
				m.RecordExportError()
				m.UpdateFeedClients(2)
				m.RecordFeedDropped()
				m.RecordPublish("gaze")
				m.RecordPublishError()
			}, ShouldNotPanic)
		})
	})

	Convey("Given a disabled manager", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(
			metrics.WithPrometheusRegistry(reg),
			metrics.WithMetricsEnabled(false),
		)

		Convey("When recording metrics", func() {
			m.RecordSampleAppended("gaze")
			m.UpdateBufferLen(10)

			Convey("Then nothing should be counted", func() {
				families, err := reg.Gather()
				So(err, ShouldBeNil)
				for _, fam := range families {
					for _, metric := range fam.GetMetric() {
						if c := metric.GetCounter(); c != nil {
							So(c.GetValue(), ShouldEqual, 0)
						}
					}
				}
			})
		})
	})

	Convey("Given custom accuracy buckets", t, func() {
		reg := prometheus.NewRegistry()
		m := metrics.NewManager(
			metrics.WithPrometheusRegistry(reg),
			metrics.WithAccuracyBuckets([]float64{0.5, 1.0, 2.0}),
		)

		Convey("Then observations should not panic", func() {
			So(func() { m.ObservePointAccuracy(1.2) }, ShouldNotPanic)
		})
	})
}
