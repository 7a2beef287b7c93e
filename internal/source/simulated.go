package source

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
)

// Default simulation configuration constants.
const (
	defaultSampleRateHz = 120.0 // Tobii Pro Spectrum default
	defaultNoiseStdDev  = 0.005 // normalized display units
	defaultPupilMM      = 3.0
	defaultSimSeed      = 42
	minSampleRateHz     = 1.0
	maxSampleRateHz     = 1200.0
)

// Simulated generates synthetic gaze samples on a fixed-interval ticker so
// the rest of the system can run without hardware.
//
// Timestamps derive from the sample index, not the wall clock, and noise
// comes from a seeded generator: a fixed seed yields bit-identical sample
// sequences across runs.
type Simulated struct {
	rate        float64
	noiseStdDev float64
	pupilMM     float64
	seed        int64

	mu     sync.Mutex
	traj   Trajectory
	rng    *rand.Rand
	active bool
	cancel context.CancelFunc
	done   chan struct{}

	onStatus StatusFunc
	log      logger.Logger
}

// NewSimulated creates a simulated source with configuration options.
func NewSimulated(opts ...SimOption) *Simulated {
	s := &Simulated{
		rate:        defaultSampleRateHz,
		noiseStdDev: defaultNoiseStdDev,
		pupilMM:     defaultPupilMM,
		seed:        defaultSimSeed,
		traj:        CenterFixation(),
		log:         logger.Get().Named("sim-source"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the generator goroutine. Fails with ErrBusy if already
// delivering.
func (s *Simulated) Start(ctx context.Context, onSample SampleFunc, onStatus StatusFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return ErrBusy
	}

	// Reseed on every start so each recording session replays the same
	// sequence for a given seed.
	s.rng = rand.New(rand.NewSource(s.seed)) //nolint:gosec // deterministic sequences are the point

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.active = true
	s.onStatus = onStatus

	s.log.Info(ctx, "simulated source starting",
		logger.Float64("rate_hz", s.rate),
		logger.Float64("noise_stddev", s.noiseStdDev),
	)
	if onStatus != nil {
		onStatus(model.Status{Kind: model.StatusConnected})
	}

	go s.run(runCtx, onSample)
	return nil
}

// run is the single timing goroutine: one ticker, one producer.
func (s *Simulated) run(ctx context.Context, onSample SampleFunc) {
	defer close(s.done)

	interval := time.Duration(float64(time.Second) / s.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if onSample != nil {
				onSample(s.generate(n))
			}
			n++
		}
	}
}

// generate produces the nth sample of the session. The simulated clock is
// n/rate, so the sequence is independent of ticker jitter.
func (s *Simulated) generate(n uint64) model.GazeSample {
	t := float64(n) / s.rate

	s.mu.Lock()
	target := s.traj(t)
	lx := target.X + s.rng.NormFloat64()*s.noiseStdDev
	ly := target.Y + s.rng.NormFloat64()*s.noiseStdDev
	rx := target.X + s.rng.NormFloat64()*s.noiseStdDev
	ry := target.Y + s.rng.NormFloat64()*s.noiseStdDev
	s.mu.Unlock()

	return model.GazeSample{
		Timestamp: t,
		Left:      s.eye(lx, ly),
		Right:     s.eye(rx, ry),
	}
}

// eye marks samples that noise pushed off-screen as invalid, the way a
// tracker loses the eye at the display edge.
func (s *Simulated) eye(x, y float64) model.EyeSample {
	if x < 0 || x > 1 || y < 0 || y > 1 || math.IsNaN(x) || math.IsNaN(y) {
		return model.EyeSample{
			GazePoint:     model.InvalidPoint(),
			PupilDiameter: math.NaN(),
		}
	}
	return model.EyeSample{
		GazePoint:     model.Point2D{X: x, Y: y},
		PupilDiameter: s.pupilMM,
		Valid:         true,
		PupilValid:    true,
	}
}

// SetTrajectory swaps the trajectory while running; the next tick uses it.
func (s *Simulated) SetTrajectory(traj Trajectory) {
	if traj == nil {
		return
	}
	s.mu.Lock()
	s.traj = traj
	s.mu.Unlock()
}

// Fail simulates a device failure: delivery stops and the error status is
// reported through the status callback.
func (s *Simulated) Fail(reason string) {
	s.mu.Lock()
	onStatus := s.onStatus
	s.mu.Unlock()

	s.stop()
	if onStatus != nil {
		onStatus(model.ErrorStatus(reason))
	}
}

// Stop halts the generator. Idempotent.
func (s *Simulated) Stop() {
	s.stop()
}

func (s *Simulated) stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// IsActive reports whether the generator goroutine is running.
func (s *Simulated) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Rate returns the configured sample rate in Hz.
func (s *Simulated) Rate() float64 { return s.rate }

// SimOption applies a configuration option to the Simulated source.
type SimOption func(*Simulated)

// WithSampleRate sets the generation rate in Hz (clamped to a sane range).
func WithSampleRate(hz float64) SimOption {
	return func(s *Simulated) {
		if hz >= minSampleRateHz && hz <= maxSampleRateHz {
			s.rate = hz
		}
	}
}

// WithNoiseStdDev sets the Gaussian noise sigma in normalized units.
// Zero disables noise entirely.
func WithNoiseStdDev(sigma float64) SimOption {
	return func(s *Simulated) {
		if sigma >= 0 {
			s.noiseStdDev = sigma
		}
	}
}

// WithSeed sets the noise generator seed for reproducible sequences.
func WithSeed(seed int64) SimOption {
	return func(s *Simulated) {
		s.seed = seed
	}
}

// WithTrajectory sets the initial trajectory.
func WithTrajectory(traj Trajectory) SimOption {
	return func(s *Simulated) {
		if traj != nil {
			s.traj = traj
		}
	}
}

// WithSimLogger sets a custom logger for the simulated source.
func WithSimLogger(log logger.Logger) SimOption {
	return func(s *Simulated) {
		if log != nil {
			s.log = log
		}
	}
}
