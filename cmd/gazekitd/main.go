// Command gazekitd runs the acquisition service: a gaze source (simulated
// or hardware) feeding the session buffer, with the status API, Prometheus
// metrics and the live WebSocket feed on one HTTP listener, plus an
// optional MQTT telemetry publisher.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infantlab/gazekit/internal/adapters/httpapi"
	"github.com/infantlab/gazekit/internal/adapters/mqtt"
	"github.com/infantlab/gazekit/internal/adapters/ws"
	service "github.com/infantlab/gazekit/internal/app"
	"github.com/infantlab/gazekit/internal/buffer"
	"github.com/infantlab/gazekit/internal/calibration"
	"github.com/infantlab/gazekit/internal/config"
	"github.com/infantlab/gazekit/internal/domain/geometry"
	"github.com/infantlab/gazekit/internal/source"
	"github.com/infantlab/gazekit/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since the logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	src, err := buildSource(cfg)
	if err != nil {
		os.Stderr.WriteString("failed to build source: " + err.Error() + "\n")
		return
	}

	// Live WebSocket feed.
	hub := ws.NewHub(ws.WithEveryNth(cfg.FeedEveryNth))
	defer hub.Close()

	// Optional MQTT telemetry.
	var pub *mqtt.Publisher
	if cfg.MQTTBrokerURL != "" {
		pub, err = mqtt.New(cfg.MQTTBrokerURL, mqtt.WithTopicPrefix(cfg.MQTTTopicPrefix))
		if err != nil {
			os.Stderr.WriteString("failed to connect MQTT: " + err.Error() + "\n")
			return
		}
		defer pub.Close()
	}

	// Create the session service with configuration options.
	opts := []service.Option{
		service.WithLogger(log),
		service.WithSource(src),
		service.WithSampleRate(cfg.SampleRateHz),
		service.WithBuffer(buffer.New(buffer.WithCapacityHint(cfg.BufferCapacityHint))),
		service.WithScreen(geometry.Screen{
			WidthMM:    cfg.Screen.WidthMM,
			HeightMM:   cfg.Screen.HeightMM,
			DistanceMM: cfg.Screen.DistanceMM,
		}),
		service.WithCalibrationOptions(
			calibration.WithSettleDuration(time.Duration(cfg.Calibration.SettleMS)*time.Millisecond),
			calibration.WithWindowQuota(cfg.Calibration.WindowSamples),
			calibration.WithWindowTimeout(time.Duration(cfg.Calibration.WindowTimeoutMS)*time.Millisecond),
			calibration.WithMinValidSamples(cfg.Calibration.MinValidSamples),
			calibration.WithPointThreshold(cfg.Calibration.PointAccuracyDeg),
			calibration.WithOverallThreshold(cfg.Calibration.OverallAccuracyDeg),
		),
		service.WithGazeObserver(hub.BroadcastGaze),
	}
	if pub != nil {
		opts = append(opts,
			service.WithGazeObserver(pub.PublishGaze),
			service.WithEventObserver(pub.PublishEvent),
		)
	}

	svc := service.New(opts...)

	// Register before Start so no transition is missed.
	svc.OnStatusChange(hub.BroadcastStatus)
	if pub != nil {
		svc.OnStatusChange(pub.PublishStatus)
	}

	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start session: " + err.Error() + "\n")
		return
	}
	defer svc.Stop(ctx)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	httpapi.NewServer(svc, hub.Handler()).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// buildSource selects the acquisition source from configuration.
func buildSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Mode {
	case config.ModeSimulated:
		return source.NewSimulated(
			source.WithSampleRate(cfg.SampleRateHz),
			source.WithNoiseStdDev(cfg.SimNoiseStdDev),
			source.WithSeed(cfg.SimSeed),
		), nil
	case config.ModeHardware:
		// The vendor SDK binding is platform-specific and linked in by a
		// build that provides a source.Tracker; none is compiled into the
		// default binary.
		return source.NewHardware(nil), nil
	default:
		return nil, config.ErrInvalidConfig
	}
}
