// Package events provides fire-and-forget operation notifications over a bounded channel.
package events

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Event is a structured notification about a completed store operation.
type Event struct {
	// Op names the operation: record_added, search_completed, file_processed,
	// persistence_saved, persistence_loaded.
	Op string `json:"op"`
	// ID identifies the record or query the operation acted on.
	ID        string    `json:"id,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Success   bool      `json:"success"`
	At        time.Time `json:"at"`
}

// Operation names emitted by the store and engine.
const (
	OpRecordAdded      = "record_added"
	OpSearchCompleted  = "search_completed"
	OpFileProcessed    = "file_processed"
	OpPersistenceSaved = "persistence_saved"
	OpPersistenceLoad  = "persistence_loaded"
)

// Emitter delivers events to a bounded channel without ever blocking the
// caller. When the channel is full the event is dropped and counted; delivery
// failure never fails the originating operation.
type Emitter struct {
	ch      chan Event
	dropped atomic.Int64
	logger  *zap.Logger
}

// NewEmitter creates an emitter with the given buffer size.
func NewEmitter(buffer int, logger *zap.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		ch:     make(chan Event, buffer),
		logger: logger,
	}
}

// Emit records an operation outcome. It never blocks; a full buffer drops the event.
func (e *Emitter) Emit(op, id string, elapsed time.Duration, success bool) {
	if e == nil {
		return
	}
	ev := Event{
		Op:        op,
		ID:        id,
		ElapsedMS: elapsed.Milliseconds(),
		Success:   success,
		At:        time.Now(),
	}
	select {
	case e.ch <- ev:
	default:
		n := e.dropped.Add(1)
		if n%100 == 1 {
			e.logger.Warn("event buffer full, dropping notifications",
				zap.String("op", op), zap.Int64("dropped_total", n))
		}
	}
}

// Events returns the receive side of the event channel for an external bus to drain.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

// Dropped returns how many events have been discarded due to a full buffer.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}
