package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/infantlab/gazekit/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

// clearEnv removes every GAZEKIT_ variable the test may set.
func clearEnv() {
	for _, key := range []string{
		"GAZEKIT_CONFIG",
		"GAZEKIT_ADDR",
		"GAZEKIT_MODE",
		"GAZEKIT_SAMPLE_RATE_HZ",
		"GAZEKIT_CALIBRATION__SETTLE_MS",
		"GAZEKIT_SCREEN__DISTANCE_MM",
	} {
		os.Unsetenv(key)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	Convey("Given a clean environment", t, func() {
		clearEnv()
		Reset(clearEnv)

		Convey("When loading with no file and no env", func() {
			cfg, err := config.Load(ctx)

			Convey("Then defaults should apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.Mode, ShouldEqual, config.ModeSimulated)
				So(cfg.SampleRateHz, ShouldEqual, 120)
				So(cfg.Calibration.WindowSamples, ShouldEqual, 30)
				So(cfg.Calibration.PointAccuracyDeg, ShouldEqual, 1.5)
				So(cfg.Screen.DistanceMM, ShouldEqual, 600)
			})
		})

		Convey("When env vars override defaults", func() {
			os.Setenv("GAZEKIT_ADDR", ":8123")
			os.Setenv("GAZEKIT_SAMPLE_RATE_HZ", "60")
			os.Setenv("GAZEKIT_CALIBRATION__SETTLE_MS", "250")

			cfg, err := config.Load(ctx)

			Convey("Then overrides should take effect, nested keys included", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8123")
				So(cfg.SampleRateHz, ShouldEqual, 60)
				So(cfg.Calibration.SettleMS, ShouldEqual, 250)
				// Untouched keys keep their defaults.
				So(cfg.Calibration.WindowSamples, ShouldEqual, 30)
			})
		})

		Convey("When a YAML file is provided", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "gazekit.yaml")
			yaml := []byte("addr: \":7001\"\nmode: simulated\ncalibration:\n  window_samples: 60\n  min_valid_samples: 20\n")
			So(os.WriteFile(path, yaml, 0o600), ShouldBeNil)
			os.Setenv("GAZEKIT_CONFIG", path)

			cfg, err := config.Load(ctx)

			Convey("Then file values should layer over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7001")
				So(cfg.Calibration.WindowSamples, ShouldEqual, 60)
				So(cfg.Calibration.MinValidSamples, ShouldEqual, 20)
			})

			Convey("And env should outrank the file", func() {
				os.Setenv("GAZEKIT_ADDR", ":7002")
				cfg, err := config.Load(ctx)
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7002")
			})
		})

		Convey("When the config file does not exist", func() {
			os.Setenv("GAZEKIT_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

			_, err := config.Load(ctx)

			Convey("Then loading should fail with ErrLoadConfig", func() {
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			})
		})

		Convey("When validation fails", func() {
			Convey("On an unknown mode", func() {
				os.Setenv("GAZEKIT_MODE", "telepathy")
				_, err := config.Load(ctx)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})

			Convey("On a non-positive sample rate", func() {
				os.Setenv("GAZEKIT_SAMPLE_RATE_HZ", "0")
				_, err := config.Load(ctx)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})

			Convey("On a degenerate screen geometry", func() {
				os.Setenv("GAZEKIT_SCREEN__DISTANCE_MM", "-1")
				_, err := config.Load(ctx)
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}

func TestNew(t *testing.T) {
	Convey("Given defaults from New", t, func() {
		cfg := config.New()

		Convey("Then the calibration acceptance policy should be coherent", func() {
			// The overall mean threshold is looser than the per-point one.
			So(cfg.Calibration.OverallAccuracyDeg, ShouldBeGreaterThan, cfg.Calibration.PointAccuracyDeg)
			So(cfg.Calibration.MinValidSamples, ShouldBeLessThanOrEqualTo, cfg.Calibration.WindowSamples)
		})

		Convey("Then the buffer hint should cover a long session", func() {
			So(cfg.BufferCapacityHint, ShouldBeGreaterThan, int(cfg.SampleRateHz)*3600)
		})
	})
}
