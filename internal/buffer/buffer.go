// Package buffer holds the session's append-only record store.
//
// One producer (the source's delivery goroutine) appends while any number
// of consumers snapshot or export. Appends take a brief exclusive section;
// snapshots take a shared section. Clear is explicit only and refuses to
// run while an export holds the shared export lock.
package buffer

import (
	"context"
	"math"
	"sync"

	"github.com/infantlab/gazekit/internal/domain/model"
	"github.com/infantlab/gazekit/pkg/logger"
	"github.com/infantlab/gazekit/pkg/metrics"
)

// Default buffer configuration constants.
const (
	defaultCapacityHint = 65536
)

// Buffer is a thread-safe, append-only, growable ordered record sequence
// with a monotonic sequence counter.
type Buffer struct {
	mu      sync.RWMutex
	records []model.Record
	seq     uint64

	// Last accepted gaze timestamp; stale or duplicate gaze samples are
	// dropped at ingestion to keep the per-stream timestamp invariant.
	lastGazeTS float64
	dropped    uint64

	// exportMu is held shared for the whole duration of an export so a
	// concurrent Clear fails fast instead of pulling data out from under
	// the writer.
	exportMu sync.RWMutex

	capacityHint int
	log          logger.Logger
}

// New creates a buffer with configuration options.
func New(opts ...Option) *Buffer {
	b := &Buffer{
		capacityHint: defaultCapacityHint,
		lastGazeTS:   math.Inf(-1),
		log:          logger.Get().Named("buffer"),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.records = make([]model.Record, 0, b.capacityHint)
	metrics.UpdateBufferLen(0)
	return b
}

// AppendGaze appends a gaze sample, preserving arrival order. Samples whose
// timestamp is not strictly greater than the previous accepted gaze sample
// are dropped and false is returned.
func (b *Buffer) AppendGaze(s model.GazeSample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.Timestamp <= b.lastGazeTS {
		b.dropped++
		metrics.RecordSampleDropped("stale")
		return false
	}
	b.lastGazeTS = s.Timestamp

	b.seq++
	b.records = append(b.records, model.Record{
		Seq:  b.seq,
		Kind: model.KindGaze,
		Gaze: s,
	})

	if !s.AnyValid() {
		metrics.RecordInvalidSample()
	}
	metrics.RecordSampleAppended("gaze")
	metrics.UpdateBufferLen(len(b.records))
	return true
}

// AppendEvent appends an experiment marker. Events are never dropped: they
// may legitimately share a timestamp with a gaze sample, and ties are
// broken by arrival order.
func (b *Buffer) AppendEvent(e model.EventSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	b.records = append(b.records, model.Record{
		Seq:   b.seq,
		Kind:  model.KindEvent,
		Event: e,
	})

	metrics.RecordSampleAppended("event")
	metrics.UpdateBufferLen(len(b.records))
}

// Append routes a sample from the source callback to the right variant.
func (b *Buffer) Append(s model.Sample) bool {
	switch v := s.(type) {
	case model.GazeSample:
		return b.AppendGaze(v)
	case model.EventSample:
		b.AppendEvent(v)
		return true
	default:
		return false
	}
}

// Snapshot returns a point-in-time copy of the records, safe to read while
// appends continue.
func (b *Buffer) Snapshot() []model.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Len returns the current record count.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Dropped returns how many gaze samples were rejected at ingestion.
func (b *Buffer) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// ExportWith takes a snapshot and runs fn over it while holding the shared
// export lock, so a concurrent Clear fails with ErrBusy until fn returns.
func (b *Buffer) ExportWith(fn func(records []model.Record) error) error {
	b.exportMu.RLock()
	defer b.exportMu.RUnlock()
	return fn(b.Snapshot())
}

// Clear discards all records and resets the timestamp guard. It fails with
// ErrBusy when an export is in progress. The sequence counter is not reset:
// sequence numbers stay unique across the session.
func (b *Buffer) Clear(ctx context.Context) error {
	if !b.exportMu.TryLock() {
		return ErrBusy
	}
	defer b.exportMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.log.Info(ctx, "clearing sample buffer", logger.Int("records", len(b.records)))
	b.records = b.records[:0]
	b.lastGazeTS = math.Inf(-1)

	metrics.RecordBufferClear()
	metrics.UpdateBufferLen(0)
	return nil
}
