// Package source defines the sample acquisition contract and its two
// variants: a hardware tracker adapter and a simulated generator.
//
// Both variants deliver model.GazeSample and model.EventSample values
// through the same callback contract, on a dedicated delivery goroutine,
// and never block the caller longer than one sample interval.
package source

import (
	"context"

	"github.com/infantlab/gazekit/internal/domain/model"
)

// SampleFunc receives each sample on the source's delivery goroutine.
type SampleFunc func(model.Sample)

// StatusFunc receives source status changes (connected, error).
type StatusFunc func(model.Status)

// Source is the polymorphic acquisition capability. Selected by
// configuration; no hierarchy beyond this single interface.
type Source interface {
	// Start begins delivery. It fails with ErrBusy when already active and
	// with ErrUnavailable when the device cannot be reached.
	Start(ctx context.Context, onSample SampleFunc, onStatus StatusFunc) error

	// Stop halts delivery. Idempotent and safe from any goroutine.
	Stop()

	// IsActive reports whether the source is currently delivering.
	IsActive() bool
}
