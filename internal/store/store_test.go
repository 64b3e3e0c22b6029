package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
)

func newTestStore() *Store {
	return New(
		WithEmbedder(embedding.NewMockEmbedder(32)),
		WithCache(embedding.NewEmbeddingCache(128, 0)),
	)
}

func TestStore_PutGet(t *testing.T) {
	s := New()
	a := &models.VectorRecord{ID: "a", Vector: []float32{1, 0}, Content: "alpha"}
	b := &models.VectorRecord{ID: "b", Vector: []float32{0, 1}, Content: "beta"}
	if err := s.Put(a); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(b); err != nil {
		t.Fatal(err)
	}

	gotA, ok := s.GetByID("a")
	if !ok || gotA.Content != "alpha" {
		t.Errorf("GetByID(a) = %+v, %v", gotA, ok)
	}
	gotB, ok := s.GetByID("b")
	if !ok || gotB.Content != "beta" {
		t.Errorf("GetByID(b) = %+v, %v", gotB, ok)
	}
	if _, ok := s.GetByID("missing"); ok {
		t.Error("missing id should return ok=false")
	}
}

func TestStore_PutOverwrite(t *testing.T) {
	s := New()
	_ = s.Put(&models.VectorRecord{ID: "x", Vector: []float32{1, 0}, Content: "old"})
	_ = s.Put(&models.VectorRecord{ID: "x", Vector: []float32{0, 1}, Content: "new"})
	got, _ := s.GetByID("x")
	if got.Content != "new" || got.Vector[1] != 1 {
		t.Errorf("overwrite not applied: %+v", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestStore_PutGeneratesID(t *testing.T) {
	s := New()
	rec := &models.VectorRecord{Vector: []float32{1}}
	if err := s.Put(rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" {
		t.Error("Put should assign an id")
	}
	if _, ok := s.GetByID(rec.ID); !ok {
		t.Error("generated id should be retrievable")
	}
}

func TestStore_PutInvalidVector(t *testing.T) {
	s := New()
	if err := s.Put(&models.VectorRecord{ID: "e"}); !errors.Is(err, ErrInvalidVector) {
		t.Errorf("empty vector error = %v", err)
	}
	_ = s.Put(&models.VectorRecord{ID: "a", Vector: []float32{1, 2, 3}})
	err := s.Put(&models.VectorRecord{ID: "b", Vector: []float32{1, 2}})
	if !errors.Is(err, ErrInvalidVector) {
		t.Errorf("dimension mismatch error = %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	s := New()
	_ = s.Put(&models.VectorRecord{ID: "d", Vector: []float32{1}})
	if !s.Delete("d") {
		t.Error("Delete should report the record existed")
	}
	if s.Delete("d") {
		t.Error("second Delete should report false")
	}
	if _, ok := s.GetByID("d"); ok {
		t.Error("deleted record should be gone")
	}
}

func TestStore_SearchEmpty(t *testing.T) {
	s := New()
	hits, err := s.Search(context.Background(), []float32{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("empty store search should not error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("hits = %d, want 0", len(hits))
	}
}

func TestStore_SearchOrdering(t *testing.T) {
	s := New()
	_ = s.Put(&models.VectorRecord{ID: "exact", Vector: []float32{1, 0, 0}})
	_ = s.Put(&models.VectorRecord{ID: "close", Vector: []float32{0.9, 0.1, 0}})
	_ = s.Put(&models.VectorRecord{ID: "far", Vector: []float32{0, 0, 1}})

	hits, err := s.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2", len(hits))
	}
	if hits[0].Record.ID != "exact" || hits[1].Record.ID != "close" {
		t.Errorf("order = %s, %s", hits[0].Record.ID, hits[1].Record.ID)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Error("similarities must be non-increasing")
	}
}

func TestStore_SearchTieBreakInsertionOrder(t *testing.T) {
	s := New()
	_ = s.Put(&models.VectorRecord{ID: "second", Vector: []float32{2, 0}})
	_ = s.Put(&models.VectorRecord{ID: "first", Vector: []float32{1, 0}})
	// Both vectors have identical cosine similarity to the query.
	hits, err := s.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Record.ID != "second" {
		t.Errorf("tie should resolve to earlier insertion, got %s", hits[0].Record.ID)
	}
}

func TestStore_SearchTopKBounds(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		_ = s.Put(&models.VectorRecord{Vector: []float32{float32(i + 1), 1}})
	}
	hits, _ := s.Search(context.Background(), []float32{1, 1}, 10)
	if len(hits) != 3 {
		t.Errorf("topK beyond size should return all, got %d", len(hits))
	}
	hits, _ = s.Search(context.Background(), []float32{1, 1}, 0)
	if len(hits) != 0 {
		t.Errorf("topK=0 should return none, got %d", len(hits))
	}
}

func TestStore_SearchDimensionMismatch(t *testing.T) {
	s := New()
	_ = s.Put(&models.VectorRecord{ID: "a", Vector: []float32{1, 2, 3}})
	if _, err := s.Search(context.Background(), []float32{1, 2}, 1); !errors.Is(err, ErrInvalidVector) {
		t.Errorf("error = %v, want ErrInvalidVector", err)
	}
}

func TestStore_AddTextAndSearchText(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	rec, err := s.AddText(ctx, "apple pie recipe", models.Metadata{"kind": models.String("note")})
	if err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || len(rec.Vector) != 32 {
		t.Errorf("record = %+v", rec)
	}
	hits, err := s.SearchText(ctx, "apple pie recipe", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Record.ID != rec.ID {
		t.Errorf("hits = %+v", hits)
	}
}

func TestStore_AddTextProviderFailure(t *testing.T) {
	mock := embedding.NewMockEmbedder(8)
	mock.FailAll = true
	s := New(WithEmbedder(mock))
	_, err := s.AddText(context.Background(), "text", nil)
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("error = %v, want ErrEmbeddingUnavailable", err)
	}
	if s.Len() != 0 {
		t.Error("no record may be stored on provider failure")
	}
}

func TestStore_AddTextNoProvider(t *testing.T) {
	s := New()
	if _, err := s.AddText(context.Background(), "text", nil); !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("error = %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestStore_EmbedUsesCache(t *testing.T) {
	cache := embedding.NewEmbeddingCache(16, 0)
	cache.Set("warm", []float32{1, 2, 3})
	// No embedder configured: only a cache hit can satisfy the lookup.
	s := New(WithCache(cache))
	rec, err := s.AddText(context.Background(), "warm", nil)
	if err != nil {
		t.Fatalf("cached text should not need the provider: %v", err)
	}
	if len(rec.Vector) != 3 {
		t.Errorf("vector = %v", rec.Vector)
	}
}

func TestStore_ProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	var b strings.Builder
	for b.Len() < 500 {
		b.WriteString("A short sentence for the chunker. ")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	s := newTestStore()
	recs, err := s.ProcessFile(context.Background(), path, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) < 5 {
		t.Fatalf("expected many chunks, got %d", len(recs))
	}
	for i, rec := range recs {
		idx, ok := rec.Metadata["chunk_index"].Number()
		if !ok || int(idx) != i {
			t.Errorf("chunk %d has chunk_index %v", i, idx)
		}
		count, ok := rec.Metadata["chunk_count"].Number()
		if !ok || int(count) != len(recs) {
			t.Errorf("chunk %d has chunk_count %v, want %d", i, count, len(recs))
		}
		src, ok := rec.Metadata["source_file"].String()
		if !ok || src != path {
			t.Errorf("chunk %d has source_file %q, want %q", i, src, path)
		}
	}
	if s.Len() != len(recs) {
		t.Errorf("store has %d records, want %d", s.Len(), len(recs))
	}
}

func TestStore_ProcessFileMissing(t *testing.T) {
	s := newTestStore()
	if _, err := s.ProcessFile(context.Background(), "/does/not/exist.txt", 100); err == nil {
		t.Error("missing file should error")
	}
}

// flakyEmbedder fails every call after the first failAfter successes.
type flakyEmbedder struct {
	*embedding.MockEmbedder
	failAfter int
	calls     int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, embedding.ErrMockFailure
	}
	return f.MockEmbedder.Embed(ctx, text)
}

func TestStore_ProcessFilePartialFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	content := "First sentence goes here. Second sentence goes here. Third sentence goes here."
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	flaky := &flakyEmbedder{MockEmbedder: embedding.NewMockEmbedder(8), failAfter: 1}
	s := New(WithEmbedder(flaky))

	recs, err := s.ProcessFile(context.Background(), path, 30)
	if err == nil {
		t.Fatal("expected failure on second chunk")
	}
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Errorf("error = %v, want ErrEmbeddingUnavailable", err)
	}
	// The chunk embedded before the failure is kept.
	if len(recs) != 1 {
		t.Errorf("partial result = %d records, want 1", len(recs))
	}
	if s.Len() != 1 {
		t.Errorf("store holds %d records, want 1", s.Len())
	}
}

func TestStore_ConcurrentPutSearch(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = s.Put(&models.VectorRecord{Vector: []float32{float32(w), float32(i)}})
				_, _ = s.Search(context.Background(), []float32{1, 1}, 3)
			}
		}(w)
	}
	wg.Wait()
	if s.Len() != 400 {
		t.Errorf("Len = %d, want 400", s.Len())
	}
}
