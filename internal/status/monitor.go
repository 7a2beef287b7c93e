// Package status tracks the tracker's state machine and notifies observers.
//
// Allowed transitions:
//
//	Disconnected -> Connected            (source start success)
//	Connected    -> Tracking             (first valid sample)
//	Connected    -> Calibrating          (calibration begin)
//	Tracking     -> Calibrating          (calibration begin)
//	Calibrating  -> Tracking             (calibration end)
//	any          -> Error                (source failure)
//	Error        -> Disconnected         (explicit reset)
//
// Anything else is rejected with ErrInvalidTransition and logged: an
// attempted invalid transition is an internal-consistency fault, never
// applied silently.
package status

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
	"github.com/infantlab/gazekit/pkg/metrics"
)

// Observer is invoked on every committed transition, in transition order.
// Observers must not block: they run on the transitioning goroutine.
type Observer func(old, new model.Status)

// Monitor holds the single current status. Only the owning session's source
// path writes it; everyone else reads.
type Monitor struct {
	mu        sync.Mutex // serializes transitions and observer dispatch
	current   atomic.Value
	observers []Observer
	log       logger.Logger
}

// NewMonitor creates a monitor in the Disconnected state.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		log: logger.Get().Named("status"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.current.Store(model.Status{Kind: model.StatusDisconnected})
	return m
}

// Current returns the last committed status without blocking on an
// in-flight transition.
func (m *Monitor) Current() model.Status {
	return m.current.Load().(model.Status)
}

// OnChange registers an observer. Registration order is preserved;
// each observer sees transitions in commit order, at least once.
func (m *Monitor) OnChange(fn Observer) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Transition commits a state change if the edge is allowed. The status is
// swapped in a single assignment so readers never see a partial value.
func (m *Monitor) Transition(ctx context.Context, to model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.Current()
	if !allowed(old.Kind, to.Kind) {
		metrics.RecordInvalidTransition()
		m.log.Error(ctx, "invalid status transition rejected",
			logger.String("from", old.Kind.String()),
			logger.String("to", to.Kind.String()),
		)
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.Kind, to.Kind)
	}

	m.current.Store(to)
	metrics.RecordStatusTransition(old.Kind.String(), to.Kind.String())
	m.log.Info(ctx, "status transition",
		logger.String("from", old.String()),
		logger.String("to", to.String()),
	)

	for _, fn := range m.observers {
		fn(old, to)
	}
	return nil
}

// Reset moves Error back to Disconnected.
func (m *Monitor) Reset(ctx context.Context) error {
	return m.Transition(ctx, model.Status{Kind: model.StatusDisconnected})
}

// allowed encodes the transition graph. Self-transitions are permitted only
// for Error so a later failure can refresh the reason.
func allowed(from, to model.StatusKind) bool {
	if to == model.StatusError {
		return true
	}
	switch from {
	case model.StatusDisconnected:
		return to == model.StatusConnected
	case model.StatusConnected:
		return to == model.StatusTracking || to == model.StatusCalibrating
	case model.StatusTracking:
		return to == model.StatusCalibrating
	case model.StatusCalibrating:
		return to == model.StatusTracking
	case model.StatusError:
		return to == model.StatusDisconnected
	default:
		return false
	}
}
