// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with documented defaults.
// - Load(ctx) layers defaults, an optional YAML file, and env vars.
// - External errors must be wrapped via this package's error helpers.
package config

// Source mode values.
const (
	ModeSimulated = "simulated"
	ModeHardware  = "hardware"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address for the live feed,
	// status API and /metrics, e.g. ":9090".
	Addr string `koanf:"addr"`

	// Mode selects the sample source: "simulated" or "hardware".
	Mode string `koanf:"mode"`

	// SampleRateHz sets the simulated acquisition rate.
	SampleRateHz float64 `koanf:"sample_rate_hz"`

	// SimNoiseStdDev is the simulated gaze noise sigma in normalized
	// display units. Zero produces noise-free fixation.
	SimNoiseStdDev float64 `koanf:"sim_noise_stddev"`

	// SimSeed seeds the simulated noise generator for reproducible runs.
	SimSeed int64 `koanf:"sim_seed"`

	// BufferCapacityHint pre-sizes the sample buffer (records).
	BufferCapacityHint int `koanf:"buffer_capacity_hint"`

	// FeedEveryNth downsamples the live WebSocket feed: every Nth gaze
	// sample is broadcast. 1 sends everything.
	FeedEveryNth int `koanf:"feed_every_nth"`

	// MQTTBrokerURL enables the MQTT publisher when non-empty,
	// e.g. "tcp://localhost:1883".
	MQTTBrokerURL string `koanf:"mqtt_broker_url"`

	// MQTTTopicPrefix prefixes all published topics.
	MQTTTopicPrefix string `koanf:"mqtt_topic_prefix"`

	// Calibration groups the calibration engine settings.
	Calibration Calibration `koanf:"calibration"`

	// Screen describes the physical display and viewing distance.
	Screen Screen `koanf:"screen"`
}

// Calibration holds the calibration engine settings.
type Calibration struct {
	// SettleMS is the fixation settle time before each collection window.
	SettleMS int `koanf:"settle_ms"`

	// WindowSamples is the raw-sample quota that closes a window.
	WindowSamples int `koanf:"window_samples"`

	// WindowTimeoutMS bounds how long a window may stay open.
	WindowTimeoutMS int `koanf:"window_timeout_ms"`

	// MinValidSamples is the minimum retained samples for acceptance.
	MinValidSamples int `koanf:"min_valid_samples"`

	// PointAccuracyDeg is the per-point acceptance threshold.
	PointAccuracyDeg float64 `koanf:"point_accuracy_deg"`

	// OverallAccuracyDeg bounds the run's mean accuracy. Conventionally
	// looser than the per-point threshold.
	OverallAccuracyDeg float64 `koanf:"overall_accuracy_deg"`
}

// Screen holds the physical screen-to-eye geometry in millimeters.
type Screen struct {
	WidthMM    float64 `koanf:"width_mm"`
	HeightMM   float64 `koanf:"height_mm"`
	DistanceMM float64 `koanf:"distance_mm"`
}

// New creates a Config with documented defaults. The screen defaults match
// a 23" 16:9 display viewed at 600 mm, the common infant-lab setup.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9090",
		Mode:               ModeSimulated,
		SampleRateHz:       120,
		SimNoiseStdDev:     0.005,
		SimSeed:            42,
		BufferCapacityHint: 900_000, // about two hours at 120 Hz
		FeedEveryNth:       4,
		MQTTTopicPrefix:    "gazekit",
		Calibration: Calibration{
			SettleMS:           500,
			WindowSamples:      30,
			WindowTimeoutMS:    1500,
			MinValidSamples:    10,
			PointAccuracyDeg:   1.5,
			OverallAccuracyDeg: 2.0,
		},
		Screen: Screen{
			WidthMM:    510,
			HeightMM:   287,
			DistanceMM: 600,
		},
	}
}
