// Package persist provides durable snapshotting and recovery for a vector store.
//
// Snapshot layout under the base directory:
//
//	vectors/<id>.bin          raw little-endian float32 array
//	metadata/<id>.json        per-record content and metadata
//	indices/vector_index.json authoritative record list, written last
//
// A record counts as durably persisted only when its id appears in a fully
// written index file. Stray vector or metadata files for unindexed ids are
// ignored on load, which makes an interrupted save harmless.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperjump/kioku/internal/events"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/store"
	"go.uber.org/zap"
)

// ErrPersistenceIO marks disk failures during save or load. The in-memory
// store stays fully usable when it is returned.
var ErrPersistenceIO = errors.New("persistence I/O failure")

// DefaultAutoPersistInterval is the default auto-persistence period.
const DefaultAutoPersistInterval = 30 * time.Second

// SaveResult reports the outcome of a snapshot write.
type SaveResult struct {
	Success bool `json:"success"`
	// RecordsSaved is the number of records in the completed index.
	RecordsSaved         int    `json:"records_saved"`
	ConsciousnessRecords int    `json:"consciousness_records"`
	DurationMS           int64  `json:"duration_ms"`
	Message              string `json:"message,omitempty"`
}

// LoadResult reports the outcome of a snapshot recovery.
type LoadResult struct {
	Success       bool `json:"success"`
	RecordsLoaded int  `json:"records_loaded"`
	// RecordsSkipped counts indexed records whose files were missing or corrupt.
	RecordsSkipped int    `json:"records_skipped"`
	DurationMS     int64  `json:"duration_ms"`
	Message        string `json:"message,omitempty"`
}

// Manager snapshots a store to disk and restores it. Save and Load are
// mutually exclusive with each other; ordinary store writes are never blocked
// by persistence, so a snapshot is eventually, not instantaneously, consistent
// with live writes.
type Manager struct {
	baseDir string
	store   *store.Store
	logger  *zap.Logger
	emitter *events.Emitter

	// persistMu serializes Save against Load only.
	persistMu sync.Mutex

	timerMu   sync.Mutex
	stopTimer context.CancelFunc
	timerDone chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithEmitter sets the event emitter for save/load notifications.
func WithEmitter(e *events.Emitter) ManagerOption {
	return func(m *Manager) { m.emitter = e }
}

// NewManager creates a persistence manager rooted at baseDir.
func NewManager(baseDir string, s *store.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		baseDir: baseDir,
		store:   s,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) vectorPath(id string) string {
	return filepath.Join(m.baseDir, "vectors", id+".bin")
}

func (m *Manager) metaPath(id string) string {
	return filepath.Join(m.baseDir, "metadata", id+".json")
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.baseDir, "indices", "vector_index.json")
}

// Save writes every current record's vector and metadata files, then the
// index file last. The result always carries the outcome; the returned error
// wraps ErrPersistenceIO on disk failure.
func (m *Manager) Save(ctx context.Context) (SaveResult, error) {
	start := time.Now()
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	fail := func(err error) (SaveResult, error) {
		wrapped := fmt.Errorf("%w: %v", ErrPersistenceIO, err)
		m.emitter.Emit(events.OpPersistenceSaved, m.baseDir, time.Since(start), false)
		return SaveResult{
			Success:    false,
			DurationMS: time.Since(start).Milliseconds(),
			Message:    wrapped.Error(),
		}, wrapped
	}

	for _, sub := range []string{"vectors", "metadata", "indices"} {
		if err := os.MkdirAll(filepath.Join(m.baseDir, sub), 0755); err != nil {
			return fail(err)
		}
	}

	records := m.store.Snapshot()
	ids := make([]string, 0, len(records))
	conscious := 0
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			// Cancellation may leave per-record files behind; load ignores
			// anything the index does not list.
			return fail(err)
		}
		if err := writeVectorFile(m.vectorPath(rec.ID), rec.Vector); err != nil {
			return fail(err)
		}
		meta := recordMeta{
			ID:               rec.ID,
			Content:          rec.Content,
			CreatedAt:        rec.CreatedAt,
			Metadata:         rec.Metadata,
			VectorDimensions: len(rec.Vector),
		}
		if err := writeMetaFile(m.metaPath(rec.ID), meta); err != nil {
			return fail(err)
		}
		ids = append(ids, rec.ID)
		if rec.ContextAware() {
			conscious++
		}
	}

	idx := snapshotIndex{
		TotalRecords:         len(ids),
		SavedAt:              time.Now(),
		Records:              ids,
		ConsciousnessRecords: conscious,
		Version:              snapshotVersion,
	}
	if err := writeIndexFile(m.indexPath(), idx); err != nil {
		return fail(err)
	}

	elapsed := time.Since(start)
	m.logger.Debug("snapshot saved",
		zap.Int("records", len(ids)), zap.Duration("elapsed", elapsed))
	m.emitter.Emit(events.OpPersistenceSaved, m.baseDir, elapsed, true)
	return SaveResult{
		Success:              true,
		RecordsSaved:         len(ids),
		ConsciousnessRecords: conscious,
		DurationMS:           elapsed.Milliseconds(),
	}, nil
}

// Load reads the index and reconstructs every listed record, then atomically
// replaces the store's contents. Missing or corrupt per-record files are
// skipped with a warning; load still succeeds with the reduced count.
// Concurrent readers may observe a transiently empty or partially repopulated
// store during the swap-in; load is not snapshot-isolated.
func (m *Manager) Load(ctx context.Context) (LoadResult, error) {
	start := time.Now()
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	idx, err := readIndexFile(m.indexPath())
	if err != nil {
		wrapped := fmt.Errorf("%w: read index: %v", ErrPersistenceIO, err)
		m.emitter.Emit(events.OpPersistenceLoad, m.baseDir, time.Since(start), false)
		return LoadResult{
			Success:    false,
			DurationMS: time.Since(start).Milliseconds(),
			Message:    wrapped.Error(),
		}, wrapped
	}

	records := make([]*models.VectorRecord, 0, len(idx.Records))
	skipped := 0
	for _, id := range idx.Records {
		if err := ctx.Err(); err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrPersistenceIO, err)
			m.emitter.Emit(events.OpPersistenceLoad, m.baseDir, time.Since(start), false)
			return LoadResult{
				Success:    false,
				DurationMS: time.Since(start).Milliseconds(),
				Message:    wrapped.Error(),
			}, wrapped
		}
		meta, err := readMetaFile(m.metaPath(id))
		if err != nil {
			m.logger.Warn("skipping record with unreadable metadata",
				zap.String("id", id), zap.Error(err))
			skipped++
			continue
		}
		vec, err := readVectorFile(m.vectorPath(id), meta.VectorDimensions)
		if err != nil {
			m.logger.Warn("skipping record with unreadable vector",
				zap.String("id", id), zap.Error(err))
			skipped++
			continue
		}
		records = append(records, &models.VectorRecord{
			ID:        meta.ID,
			Vector:    vec,
			Content:   meta.Content,
			Metadata:  meta.Metadata,
			CreatedAt: meta.CreatedAt,
		})
	}

	m.store.Replace(records)

	elapsed := time.Since(start)
	message := ""
	if skipped > 0 {
		message = fmt.Sprintf("recovered %d of %d records, %d skipped", len(records), idx.TotalRecords, skipped)
		m.logger.Warn("partial load", zap.String("detail", message))
	}
	m.emitter.Emit(events.OpPersistenceLoad, m.baseDir, elapsed, true)
	return LoadResult{
		Success:        true,
		RecordsLoaded:  len(records),
		RecordsSkipped: skipped,
		DurationMS:     elapsed.Milliseconds(),
		Message:        message,
	}, nil
}

// EnableAutoPersist starts a background timer that saves at the given
// interval. Re-enabling replaces any running timer; failures are logged and
// never stop the timer.
func (m *Manager) EnableAutoPersist(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAutoPersistInterval
	}
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	m.stopTimerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.stopTimer = cancel
	m.timerDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.Save(ctx); err != nil && ctx.Err() == nil {
					m.logger.Error("auto-persist save failed", zap.Error(err))
				}
			}
		}
	}()
}

// DisableAutoPersist stops the background timer, waiting for an in-flight save.
func (m *Manager) DisableAutoPersist() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	m.stopTimerLocked()
}

func (m *Manager) stopTimerLocked() {
	if m.stopTimer != nil {
		m.stopTimer()
		<-m.timerDone
		m.stopTimer = nil
		m.timerDone = nil
	}
}
