// Package store provides a thread-safe in-memory vector store with linear-scan
// similarity search, text ingestion, and sentence-bounded file chunking.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/events"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Hit is a single similarity-scan result.
type Hit struct {
	Record     *models.VectorRecord
	Similarity float64
}

// Store is a keyed vector store. All public methods are safe for concurrent
// use; no caller-side locking is required. The vector dimension is fixed by
// the first inserted record.
type Store struct {
	mu      sync.RWMutex
	records map[string]*entry
	dim     int
	nextSeq uint64

	embedder  embedding.Embedder
	cache     *embedding.EmbeddingCache
	extractor *extract.Extractor
	emitter   *events.Emitter
	logger    *zap.Logger
}

// entry pairs a record with its insertion sequence, used to break similarity
// ties in stable insertion order. Overwrites keep the original sequence.
type entry struct {
	rec *models.VectorRecord
	seq uint64
}

// Option configures a Store.
type Option func(*Store)

// WithEmbedder sets the embedding provider used by AddText, SearchText, and ProcessFile.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

// WithCache sets the embedding cache. Without one, every text operation hits the provider.
func WithCache(c *embedding.EmbeddingCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithExtractor sets the document extractor used by ProcessFile for non-text formats.
func WithExtractor(e *extract.Extractor) Option {
	return func(s *Store) { s.extractor = e }
}

// WithEmitter sets the event emitter for operation notifications.
func WithEmitter(e *events.Emitter) Option {
	return func(s *Store) { s.emitter = e }
}

// WithLogger sets a logger for ingestion and ingest-failure events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*entry),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put inserts or overwrites a record by id. A missing id is generated; a
// missing CreatedAt is set to now. The vector must be non-empty and match the
// store dimension (fixed by the first insert); otherwise ErrInvalidVector.
func (s *Store) Put(rec *models.VectorRecord) error {
	start := time.Now()
	if rec == nil || len(rec.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidVector)
	}

	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
		rec.ID = stored.ID
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	s.mu.Lock()
	if s.dim == 0 {
		s.dim = len(stored.Vector)
	} else if len(stored.Vector) != s.dim {
		s.mu.Unlock()
		return fmt.Errorf("%w: got dimension %d, store holds %d", ErrInvalidVector, len(stored.Vector), s.dim)
	}
	if prev, ok := s.records[stored.ID]; ok {
		// Overwrite keeps the original insertion order for tie-breaking.
		s.records[stored.ID] = &entry{rec: stored, seq: prev.seq}
	} else {
		s.records[stored.ID] = &entry{rec: stored, seq: s.nextSeq}
		s.nextSeq++
	}
	s.mu.Unlock()

	s.emitter.Emit(events.OpRecordAdded, stored.ID, time.Since(start), true)
	return nil
}

// GetByID returns a copy of the record, or ok=false if absent. A miss is not an error.
func (s *Store) GetByID(id string) (*models.VectorRecord, bool) {
	s.mu.RLock()
	e, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.rec.Clone(), true
}

// Delete removes a record by id and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.records[id]
	delete(s.records, id)
	s.mu.Unlock()
	return ok
}

// DeleteBySource removes every record whose source_file metadata equals path
// and returns the number removed. Used when a watched file disappears or is
// re-ingested.
func (s *Store) DeleteBySource(path string) int {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.records {
		src, ok := e.rec.Metadata["source_file"].String()
		if ok && src == path {
			delete(s.records, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimensions returns the store's vector dimension, or 0 before the first insert.
func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// IDs returns the stored record ids in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type idSeq struct {
		id  string
		seq uint64
	}
	all := make([]idSeq, 0, len(s.records))
	for id, e := range s.records {
		all = append(all, idSeq{id, e.seq})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	ids := make([]string, len(all))
	for i, x := range all {
		ids[i] = x.id
	}
	return ids
}

// Snapshot returns a copy of every record, in insertion order.
func (s *Store) Snapshot() []*models.VectorRecord {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]*models.VectorRecord, len(entries))
	for i, e := range entries {
		out[i] = e.rec.Clone()
	}
	return out
}

// Replace atomically swaps the entire record set, used by persistence load.
// The dimension is re-derived from the new records.
func (s *Store) Replace(recs []*models.VectorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*entry, len(recs))
	s.dim = 0
	s.nextSeq = 0
	for _, rec := range recs {
		if rec == nil || len(rec.Vector) == 0 {
			continue
		}
		if s.dim == 0 {
			s.dim = len(rec.Vector)
		} else if len(rec.Vector) != s.dim {
			continue
		}
		s.records[rec.ID] = &entry{rec: rec.Clone(), seq: s.nextSeq}
		s.nextSeq++
	}
}

// AddText embeds text (cache first, then provider) and stores the resulting
// record. Provider failure surfaces as ErrEmbeddingUnavailable.
func (s *Store) AddText(ctx context.Context, text string, metadata models.Metadata) (*models.VectorRecord, error) {
	vec, err := s.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	rec := &models.VectorRecord{
		ID:        uuid.New().String(),
		Vector:    vec,
		Content:   text,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := s.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.cache != nil {
		if vec, ok := s.cache.Get(text); ok {
			return vec, nil
		}
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrEmbeddingUnavailable)
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: provider returned empty vector", ErrEmbeddingUnavailable)
	}
	if s.cache != nil {
		s.cache.Set(text, vec)
	}
	return vec, nil
}

// Search computes cosine similarity of query against every stored vector in
// parallel and returns at most topK hits sorted by descending similarity,
// ties broken by insertion order. An empty store yields an empty result.
func (s *Store) Search(ctx context.Context, query []float32, topK int) ([]*Hit, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", ErrInvalidVector)
	}

	s.mu.RLock()
	if len(s.records) == 0 {
		s.mu.RUnlock()
		return []*Hit{}, nil
	}
	if len(query) != s.dim {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: query dimension %d, store holds %d", ErrInvalidVector, len(query), s.dim)
	}
	entries := make([]*entry, 0, len(s.records))
	for _, e := range s.records {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	type scored struct {
		e   *entry
		sim float64
	}
	scores := make([]scored, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	workers := runtime.GOMAXPROCS(0)
	if workers > len(entries) {
		workers = len(entries)
	}
	shard := (len(entries) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * shard
		hi := lo + shard
		if hi > len(entries) {
			hi = len(entries)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				scores[i] = scored{e: entries[i], sim: CosineSimilarity(query, entries[i].rec.Vector)}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].sim != scores[j].sim {
			return scores[i].sim > scores[j].sim
		}
		return scores[i].e.seq < scores[j].e.seq
	})

	if topK < 0 {
		topK = 0
	}
	if topK > len(scores) {
		topK = len(scores)
	}
	hits := make([]*Hit, topK)
	for i := 0; i < topK; i++ {
		hits[i] = &Hit{Record: scores[i].e.rec.Clone(), Similarity: scores[i].sim}
	}
	return hits, nil
}

// SearchText embeds the query through the cache and delegates to Search.
func (s *Store) SearchText(ctx context.Context, query string, topK int) ([]*Hit, error) {
	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, vec, topK)
}

// ProcessFile reads the file at path, splits it into sentence-bounded chunks
// of at most chunkSize characters, and embeds and stores each chunk with
// source_file, chunk_index, and chunk_count metadata. On an embedding failure
// it returns the records created so far together with the error, so callers
// keep the partial ingest.
func (s *Store) ProcessFile(ctx context.Context, path string, chunkSize int) ([]*models.VectorRecord, error) {
	start := time.Now()
	text, err := s.readFile(path)
	if err != nil {
		s.emitter.Emit(events.OpFileProcessed, path, time.Since(start), false)
		return nil, fmt.Errorf("read file: %w", err)
	}

	chunks := ChunkText(text, chunkSize)
	// The full cleaned path keys later DeleteBySource calls; basenames
	// collide across directories.
	source := filepath.Clean(path)
	created := make([]*models.VectorRecord, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			s.emitter.Emit(events.OpFileProcessed, path, time.Since(start), false)
			return created, err
		}
		metadata := models.Metadata{
			"source_file": models.String(source),
			"chunk_index": models.Number(float64(i)),
			"chunk_count": models.Number(float64(len(chunks))),
		}
		rec, err := s.AddText(ctx, chunk, metadata)
		if err != nil {
			s.logger.Warn("chunk ingest failed, keeping partial result",
				zap.String("file", source), zap.Int("chunk", i), zap.Error(err))
			s.emitter.Emit(events.OpFileProcessed, path, time.Since(start), false)
			return created, fmt.Errorf("chunk %d of %d: %w", i, len(chunks), err)
		}
		created = append(created, rec)
	}

	s.logger.Debug("file processed",
		zap.String("file", source), zap.Int("chunks", len(created)))
	s.emitter.Emit(events.OpFileProcessed, path, time.Since(start), true)
	return created, nil
}

func (s *Store) readFile(path string) (string, error) {
	if s.extractor != nil {
		return s.extractor.Extract(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
