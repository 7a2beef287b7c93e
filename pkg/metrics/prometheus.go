// Package metrics provides Prometheus metrics for the gaze acquisition engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metric name parts.
const (
	defaultNamespace = "gazekit"
)

// Manager manages all Prometheus metrics for the acquisition engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Acquisition metrics - sample flow from source into the buffer
	samplesAppended *prometheus.CounterVec
	samplesDropped  *prometheus.CounterVec
	invalidSamples  prometheus.Counter
	bufferLen       prometheus.Gauge
	bufferClears    prometheus.Counter

	// Status metrics - state machine health
	statusTransitions  *prometheus.CounterVec
	invalidTransitions prometheus.Counter

	// Calibration metrics - per-point quality
	calibrationPoints *prometheus.CounterVec
	pointAccuracyDeg  prometheus.Histogram
	pointPrecisionDeg prometheus.Histogram
	calibrationRuns   *prometheus.CounterVec
	calibrationAborts prometheus.Counter

	// Export metrics
	exportRows   prometheus.Counter
	exportErrors prometheus.Counter

	// Live feed metrics
	feedClients     prometheus.Gauge
	feedDropped     prometheus.Counter
	publishErrors   prometheus.Counter
	publishMessages *prometheus.CounterVec
}

// NewManager creates a metrics manager and registers all instruments.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		histogramBuckets: []float64{0.1, 0.25, 0.5, 0.75, 1.0, 1.5, 2.0, 3.0, 5.0},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	factory := promauto.With(m.registry)

	m.samplesAppended = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_appended_total",
		Help:      "Records appended to the sample buffer, by kind (gaze/event).",
	}, []string{"kind"})

	m.samplesDropped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_dropped_total",
		Help:      "Samples rejected at ingestion, by reason (stale/duplicate).",
	}, []string{"reason"})

	m.invalidSamples = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "invalid_samples_total",
		Help:      "Gaze samples where neither eye carried a valid gaze point.",
	})

	m.bufferLen = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_records",
		Help:      "Current number of records held in the sample buffer.",
	})

	m.bufferClears = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "buffer_clears_total",
		Help:      "Explicit buffer resets.",
	})

	m.statusTransitions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "status_transitions_total",
		Help:      "Committed tracker status transitions.",
	}, []string{"from", "to"})

	m.invalidTransitions = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "invalid_transitions_total",
		Help:      "Rejected status transitions (internal consistency faults).",
	})

	m.calibrationPoints = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_points_total",
		Help:      "Calibration points processed, by outcome (accepted/failed).",
	}, []string{"outcome"})

	m.pointAccuracyDeg = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_point_accuracy_deg",
		Help:      "Angular accuracy per calibration point in degrees.",
		Buckets:   m.histogramBuckets,
	})

	m.pointPrecisionDeg = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_point_precision_rms_deg",
		Help:      "RMS precision per calibration point in degrees.",
		Buckets:   m.histogramBuckets,
	})

	m.calibrationRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_runs_total",
		Help:      "Completed calibration runs, by outcome (accepted/rejected).",
	}, []string{"outcome"})

	m.calibrationAborts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "calibration_aborts_total",
		Help:      "Calibration runs aborted before completing all points.",
	})

	m.exportRows = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_rows_total",
		Help:      "Rows written by the CSV exporter.",
	})

	m.exportErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_errors_total",
		Help:      "Failed export attempts.",
	})

	m.feedClients = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_clients",
		Help:      "Connected live-feed WebSocket clients.",
	})

	m.feedDropped = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "feed_dropped_total",
		Help:      "Live-feed messages dropped for slow clients.",
	})

	m.publishErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_errors_total",
		Help:      "Failed MQTT publishes.",
	})

	m.publishMessages = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "publish_messages_total",
		Help:      "MQTT messages published, by topic suffix.",
	}, []string{"topic"})

	return m
}

var (
	defaultManager *Manager
	defaultOnce    sync.Once
)

// Default returns the process-wide manager, creating it on first use.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = NewManager()
	})
	return defaultManager
}

// Package-level helpers mirroring the manager instruments. All are safe to
// call before any explicit initialization.

func RecordSampleAppended(kind string) { Default().RecordSampleAppended(kind) }
func RecordSampleDropped(reason string) {
	Default().RecordSampleDropped(reason)
}
func RecordInvalidSample()                   { Default().RecordInvalidSample() }
func UpdateBufferLen(n int)                  { Default().UpdateBufferLen(n) }
func RecordBufferClear()                     { Default().RecordBufferClear() }
func RecordStatusTransition(from, to string) { Default().RecordStatusTransition(from, to) }
func RecordInvalidTransition()               { Default().RecordInvalidTransition() }
func RecordCalibrationPoint(accepted bool)   { Default().RecordCalibrationPoint(accepted) }
func ObservePointAccuracy(deg float64)       { Default().ObservePointAccuracy(deg) }
func ObservePointPrecision(deg float64)      { Default().ObservePointPrecision(deg) }
func RecordCalibrationRun(accepted bool)     { Default().RecordCalibrationRun(accepted) }
func RecordCalibrationAbort()                { Default().RecordCalibrationAbort() }
func RecordExportRows(n int)                 { Default().RecordExportRows(n) }
func RecordExportError()                     { Default().RecordExportError() }
func UpdateFeedClients(n int)                { Default().UpdateFeedClients(n) }
func RecordFeedDropped()                     { Default().RecordFeedDropped() }
func RecordPublish(topic string)             { Default().RecordPublish(topic) }
func RecordPublishError()                    { Default().RecordPublishError() }

// Manager methods.

func (m *Manager) RecordSampleAppended(kind string) {
	if !m.enabled {
		return
	}
	m.samplesAppended.WithLabelValues(kind).Inc()
}

func (m *Manager) RecordSampleDropped(reason string) {
	if !m.enabled {
		return
	}
	m.samplesDropped.WithLabelValues(reason).Inc()
}

func (m *Manager) RecordInvalidSample() {
	if !m.enabled {
		return
	}
	m.invalidSamples.Inc()
}

func (m *Manager) UpdateBufferLen(n int) {
	if !m.enabled {
		return
	}
	m.bufferLen.Set(float64(n))
}

func (m *Manager) RecordBufferClear() {
	if !m.enabled {
		return
	}
	m.bufferClears.Inc()
}

func (m *Manager) RecordStatusTransition(from, to string) {
	if !m.enabled {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Manager) RecordInvalidTransition() {
	if !m.enabled {
		return
	}
	m.invalidTransitions.Inc()
}

func (m *Manager) RecordCalibrationPoint(accepted bool) {
	if !m.enabled {
		return
	}
	outcome := "failed"
	if accepted {
		outcome = "accepted"
	}
	m.calibrationPoints.WithLabelValues(outcome).Inc()
}

func (m *Manager) ObservePointAccuracy(deg float64) {
	if !m.enabled {
		return
	}
	m.pointAccuracyDeg.Observe(deg)
}

func (m *Manager) ObservePointPrecision(deg float64) {
	if !m.enabled {
		return
	}
	m.pointPrecisionDeg.Observe(deg)
}

func (m *Manager) RecordCalibrationRun(accepted bool) {
	if !m.enabled {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.calibrationRuns.WithLabelValues(outcome).Inc()
}

func (m *Manager) RecordCalibrationAbort() {
	if !m.enabled {
		return
	}
	m.calibrationAborts.Inc()
}

func (m *Manager) RecordExportRows(n int) {
	if !m.enabled {
		return
	}
	m.exportRows.Add(float64(n))
}

func (m *Manager) RecordExportError() {
	if !m.enabled {
		return
	}
	m.exportErrors.Inc()
}

func (m *Manager) UpdateFeedClients(n int) {
	if !m.enabled {
		return
	}
	m.feedClients.Set(float64(n))
}

func (m *Manager) RecordFeedDropped() {
	if !m.enabled {
		return
	}
	m.feedDropped.Inc()
}

func (m *Manager) RecordPublish(topic string) {
	if !m.enabled {
		return
	}
	m.publishMessages.WithLabelValues(topic).Inc()
}

func (m *Manager) RecordPublishError() {
	if !m.enabled {
		return
	}
	m.publishErrors.Inc()
}
