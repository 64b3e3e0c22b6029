// Package search turns natural-language queries into ranked, explainable
// results over a vector store.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/kioku/internal/events"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/store"
	"go.uber.org/zap"
)

// Default option values.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.3
)

// Options controls a search. Zero values fall back to the defaults
// (topK=5, similarityThreshold=0.3, snippets on, snippetLength=200).
type Options struct {
	TopK                int     `json:"top_k,omitempty"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty"`
	GenerateSnippets    *bool   `json:"generate_snippets,omitempty"`
	SnippetLength       int     `json:"snippet_length,omitempty"`
	IncludeMetadata     *bool   `json:"include_metadata,omitempty"`
}

func (o Options) topK() int {
	if o.TopK <= 0 {
		return DefaultTopK
	}
	return o.TopK
}

func (o Options) threshold() float64 {
	if o.SimilarityThreshold <= 0 {
		return DefaultSimilarityThreshold
	}
	return o.SimilarityThreshold
}

func (o Options) snippetsEnabled() bool {
	return o.GenerateSnippets == nil || *o.GenerateSnippets
}

func (o Options) snippetLength() int {
	if o.SnippetLength <= 0 {
		return DefaultSnippetLength
	}
	return o.SnippetLength
}

func (o Options) includeMetadata() bool {
	return o.IncludeMetadata == nil || *o.IncludeMetadata
}

// Engine ranks vector-store hits for human consumption.
type Engine struct {
	store   *store.Store
	emitter *events.Emitter
	logger  *zap.Logger
	metrics Metrics
	now     func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEmitter sets the event emitter for search notifications.
func WithEmitter(e *events.Emitter) EngineOption {
	return func(eng *Engine) { eng.emitter = e }
}

// WithLogger sets the engine's logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(eng *Engine) { eng.logger = l }
}

// NewEngine creates a search engine over s.
func NewEngine(s *store.Store, opts ...EngineOption) *Engine {
	eng := &Engine{
		store:  s,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Search retrieves 2×topK candidates by vector similarity, scores each by
// query-term overlap with context-aware and recency boosts, filters below
// the similarity threshold, and returns the densely ranked topK. The
// response always reports the outcome; the error duplicates failure for
// errors.Is callers.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*models.SearchResponse, error) {
	start := e.now()
	resp := &models.SearchResponse{Query: query, Results: []*models.RankedRecord{}}

	hits, err := e.store.SearchText(ctx, query, 2*opts.topK())
	if err != nil {
		resp.Message = err.Error()
		resp.QueryTime = time.Since(start).Milliseconds()
		e.finish(start, query, false)
		return resp, err
	}

	terms := ExtractTerms(query)
	threshold := opts.threshold()
	now := e.now()

	results := make([]*models.RankedRecord, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < threshold {
			continue
		}
		relevance, contextAware := relevanceScore(hit.Record, terms, now)
		results = append(results, &models.RankedRecord{
			Record:       hit.Record,
			Similarity:   hit.Similarity,
			Relevance:    relevance,
			ContextAware: contextAware,
		})
	}

	sortAndRank(results)
	if len(results) > opts.topK() {
		results = results[:opts.topK()]
	}

	for _, r := range results {
		if opts.snippetsEnabled() {
			r.Snippet = GenerateSnippet(r.Record.Content, query, opts.snippetLength())
		}
		if !opts.includeMetadata() {
			r.Record.Metadata = nil
		}
	}

	resp.Results = results
	resp.Total = len(results)
	resp.Success = true
	resp.QueryTime = time.Since(start).Milliseconds()
	e.finish(start, query, true)
	return resp, nil
}

// SearchWithContext appends the agent's objectives and state to the query,
// runs the base search, then reranks: each objective whose terms appear in a
// record's content multiplies its score by 1.15, and a record containing the
// agent's state text gains a further 1.10. Ranks are reassigned and the
// response summary notes how many results matched objectives.
func (e *Engine) SearchWithContext(ctx context.Context, query string, agent models.AgentContext, opts Options) (*models.SearchResponse, error) {
	augmented := augmentQuery(query, agent)
	resp, err := e.Search(ctx, augmented, opts)
	resp.Query = query
	if err != nil {
		return resp, err
	}

	objectiveTerms := make([][]string, len(agent.Objectives))
	for i, obj := range agent.Objectives {
		objectiveTerms[i] = ExtractTerms(obj)
	}
	state := strings.ToLower(strings.TrimSpace(agent.State))

	matchedAny := 0
	for _, r := range resp.Results {
		content := strings.ToLower(r.Record.Content)
		boost := 1.0
		for _, terms := range objectiveTerms {
			if len(terms) == 0 {
				continue
			}
			for _, term := range terms {
				if strings.Contains(content, term) {
					r.MatchedObjectives++
					boost *= objectiveBoost
					break
				}
			}
		}
		if state != "" && strings.Contains(content, state) {
			boost *= stateBoost
		}
		if r.MatchedObjectives > 0 {
			matchedAny++
		}
		r.Relevance *= boost
		if r.Relevance > 1.0 {
			r.Relevance = 1.0
		}
	}

	sortAndRank(resp.Results)
	resp.Summary = fmt.Sprintf("%d of %d results matched current objectives", matchedAny, len(resp.Results))
	return resp, nil
}

// Metrics returns the engine's search counters and capability flags.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

func (e *Engine) finish(start time.Time, query string, success bool) {
	elapsed := time.Since(start)
	e.metrics.Record(elapsed)
	e.emitter.Emit(events.OpSearchCompleted, query, elapsed, success)
	e.logger.Debug("search completed",
		zap.String("query", query), zap.Duration("elapsed", elapsed), zap.Bool("success", success))
}

// sortAndRank orders results by descending relevance (similarity breaks
// ties) and assigns dense 1-based ranks.
func sortAndRank(results []*models.RankedRecord) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].Similarity > results[j].Similarity
	})
	for i, r := range results {
		r.Rank = i + 1
	}
}

func augmentQuery(query string, agent models.AgentContext) string {
	parts := []string{query}
	for _, obj := range agent.Objectives {
		if strings.TrimSpace(obj) != "" {
			parts = append(parts, obj)
		}
	}
	if strings.TrimSpace(agent.State) != "" {
		parts = append(parts, agent.State)
	}
	return strings.Join(parts, " ")
}
