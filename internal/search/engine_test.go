package search

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/store"
)

// stubEmbedder returns fixed vectors for known texts, so ranking tests are
// fully deterministic.
type stubEmbedder struct {
	vecs map[string][]float32
	dim  int
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no stub vector for %q", text)
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return s.dim }
func (s *stubEmbedder) Close() error    { return nil }

func recipeFixture(t *testing.T) (*store.Store, *Engine) {
	t.Helper()
	stub := &stubEmbedder{dim: 2, vecs: map[string][]float32{
		"recipe": {1, 0},
	}}
	s := store.New(store.WithEmbedder(stub))
	records := []struct {
		id, content string
		vec         []float32
	}{
		{"apple", "apple pie recipe", []float32{1, 0}},
		{"banana", "banana bread recipe", []float32{0.95, 0.3}},
		{"car", "car engine repair", []float32{0, 1}},
	}
	for _, r := range records {
		err := s.Put(&models.VectorRecord{
			ID:        r.id,
			Vector:    r.vec,
			Content:   r.content,
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return s, NewEngine(s)
}

func TestEngine_RecipeScenario(t *testing.T) {
	_, eng := recipeFixture(t)
	resp, err := eng.Search(context.Background(), "recipe", Options{
		TopK:                2,
		SimilarityThreshold: 0.1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Error("response should report success")
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	for _, r := range resp.Results {
		if r.Record.ID == "car" {
			t.Error("car record must be excluded")
		}
	}
	if resp.Results[0].Record.ID != "apple" {
		t.Errorf("top result = %s, want apple", resp.Results[0].Record.ID)
	}
	if resp.Results[0].Rank != 1 || resp.Results[1].Rank != 2 {
		t.Errorf("ranks = %d, %d; want dense 1,2", resp.Results[0].Rank, resp.Results[1].Rank)
	}
}

func TestEngine_ThresholdFiltersAll(t *testing.T) {
	_, eng := recipeFixture(t)
	resp, err := eng.Search(context.Background(), "recipe", Options{
		TopK:                5,
		SimilarityThreshold: 0.999,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 {
		// Only the exact-direction vector survives a near-1.0 threshold.
		t.Errorf("results = %d, want 1", len(resp.Results))
	}
}

func TestEngine_SnippetsToggle(t *testing.T) {
	_, eng := recipeFixture(t)
	off := false
	resp, err := eng.Search(context.Background(), "recipe", Options{
		TopK: 2, SimilarityThreshold: 0.1, GenerateSnippets: &off,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.Snippet != nil {
			t.Error("snippets disabled but present")
		}
	}

	resp, err = eng.Search(context.Background(), "recipe", Options{TopK: 2, SimilarityThreshold: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.Snippet == nil {
			t.Error("snippets enabled by default but missing")
		}
		if r.Snippet.Text != r.Record.Content {
			t.Errorf("short content should be verbatim snippet, got %q", r.Snippet.Text)
		}
	}
}

func TestEngine_EmbeddingFailure(t *testing.T) {
	mock := embedding.NewMockEmbedder(4)
	mock.FailAll = true
	s := store.New(store.WithEmbedder(mock))
	eng := NewEngine(s)

	resp, err := eng.Search(context.Background(), "anything", Options{})
	if !errors.Is(err, store.ErrEmbeddingUnavailable) {
		t.Errorf("error = %v", err)
	}
	if resp == nil || resp.Success {
		t.Error("failed search must return an unsuccessful structured response")
	}
	if resp.Message == "" {
		t.Error("failure response should carry a message")
	}
}

func TestEngine_ContextAwareAndRecencyBoosts(t *testing.T) {
	stub := &stubEmbedder{dim: 2, vecs: map[string][]float32{"topic words": {1, 0}}}
	s := store.New(store.WithEmbedder(stub))
	old := time.Now().Add(-30 * 24 * time.Hour)
	// Same similarity and partial term overlap; only the flags differ.
	_ = s.Put(&models.VectorRecord{
		ID: "plain", Vector: []float32{1, 0}, Content: "notes on topic plus extra stuff",
		CreatedAt: old,
	})
	_ = s.Put(&models.VectorRecord{
		ID: "aware", Vector: []float32{1, 0}, Content: "notes on topic plus extra stuff",
		CreatedAt: old,
		Metadata:  models.Metadata{"context_aware": models.Bool(true)},
	})
	eng := NewEngine(s)

	resp, err := eng.Search(context.Background(), "topic words", Options{TopK: 5, SimilarityThreshold: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	if resp.Results[0].Record.ID != "aware" {
		t.Errorf("context-aware record should outrank, got %s", resp.Results[0].Record.ID)
	}
	if !resp.Results[0].ContextAware {
		t.Error("ContextAware flag should be set on the result")
	}
	if resp.Results[0].Relevance <= resp.Results[1].Relevance {
		t.Error("boost should raise relevance")
	}
}

func TestEngine_RelevanceCappedAtOne(t *testing.T) {
	stub := &stubEmbedder{dim: 2, vecs: map[string][]float32{"full match text": {1, 0}}}
	s := store.New(store.WithEmbedder(stub))
	_ = s.Put(&models.VectorRecord{
		ID: "r", Vector: []float32{1, 0}, Content: "full match text",
		CreatedAt: time.Now(), // recency boost applies
		Metadata:  models.Metadata{"context_aware": models.Bool(true)},
	})
	eng := NewEngine(s)
	resp, err := eng.Search(context.Background(), "full match text", Options{SimilarityThreshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Results[0].Relevance > 1.0 {
		t.Errorf("relevance = %v, must be capped at 1.0", resp.Results[0].Relevance)
	}
}

func TestEngine_SearchWithContext(t *testing.T) {
	stub := &stubEmbedder{dim: 2, vecs: map[string][]float32{
		"find notes fix the parser debugging": {1, 0},
	}}
	s := store.New(store.WithEmbedder(stub))
	_ = s.Put(&models.VectorRecord{
		ID: "on-goal", Vector: []float32{1, 0},
		Content: "notes about the parser rewrite while debugging", CreatedAt: time.Now(),
	})
	_ = s.Put(&models.VectorRecord{
		ID: "off-goal", Vector: []float32{0.99, 0.1},
		Content: "notes about lunch options", CreatedAt: time.Now(),
	})
	eng := NewEngine(s)

	agent := models.AgentContext{
		Objectives: []string{"fix the parser"},
		State:      "debugging",
	}
	resp, err := eng.SearchWithContext(context.Background(), "find notes", agent, Options{
		TopK: 5, SimilarityThreshold: 0.1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Query != "find notes" {
		t.Errorf("response query = %q, want original query", resp.Query)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d", len(resp.Results))
	}
	if resp.Results[0].Record.ID != "on-goal" {
		t.Errorf("objective-matching record should rank first, got %s", resp.Results[0].Record.ID)
	}
	if resp.Results[0].MatchedObjectives != 1 {
		t.Errorf("MatchedObjectives = %d, want 1", resp.Results[0].MatchedObjectives)
	}
	if resp.Summary != "1 of 2 results matched current objectives" {
		t.Errorf("summary = %q", resp.Summary)
	}
	if resp.Results[0].Rank != 1 || resp.Results[1].Rank != 2 {
		t.Error("ranks must be reassigned after rerank")
	}
}

func TestEngine_EmptyStore(t *testing.T) {
	s := store.New(store.WithEmbedder(embedding.NewMockEmbedder(8)))
	eng := NewEngine(s)
	resp, err := eng.Search(context.Background(), "anything at all", Options{})
	if err != nil {
		t.Fatalf("empty store search should succeed: %v", err)
	}
	if !resp.Success || len(resp.Results) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMetrics_RunningAverage(t *testing.T) {
	var m Metrics
	m.Record(10 * time.Millisecond)
	m.Record(20 * time.Millisecond)
	m.Record(30 * time.Millisecond)
	snap := m.Snapshot()
	if snap.TotalSearches != 3 {
		t.Errorf("TotalSearches = %d, want 3", snap.TotalSearches)
	}
	if snap.AverageLatencyMS < 19.9 || snap.AverageLatencyMS > 20.1 {
		t.Errorf("AverageLatencyMS = %v, want ~20", snap.AverageLatencyMS)
	}
	if !snap.Capabilities["semantic_search"] {
		t.Error("capability flags should be present")
	}
}

func TestEngine_MetricsCount(t *testing.T) {
	_, eng := recipeFixture(t)
	for i := 0; i < 4; i++ {
		_, _ = eng.Search(context.Background(), "recipe", Options{TopK: 1, SimilarityThreshold: 0.1})
	}
	if got := eng.Metrics().TotalSearches; got != 4 {
		t.Errorf("TotalSearches = %d, want 4", got)
	}
}
