package models

// Snippet is the most relevant window of a record's content for a query.
type Snippet struct {
	Text string `json:"text"`
	// MatchedTerms are the distinct query terms actually found in the window (lower-cased).
	MatchedTerms []string `json:"matched_terms"`
	// Offset is the approximate start position of the window in the source content.
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// RankedRecord is a search hit: a record plus its scores, dense 1-based rank,
// and optional snippet.
type RankedRecord struct {
	Record     *VectorRecord `json:"record"`
	Similarity float64       `json:"similarity"`
	// Relevance combines query-term overlap with ranking boosts, capped at 1.0.
	Relevance float64  `json:"relevance"`
	Rank      int      `json:"rank"`
	Snippet   *Snippet `json:"snippet,omitempty"`
	// ContextAware is set when the record carries the context_aware metadata flag.
	ContextAware bool `json:"context_aware,omitempty"`
	// MatchedObjectives counts agent objectives matched during context reranking.
	MatchedObjectives int `json:"matched_objectives,omitempty"`
}

// SearchResponse is the structured result of a semantic search.
type SearchResponse struct {
	Results   []*RankedRecord `json:"results"`
	Total     int             `json:"total"`
	Query     string          `json:"query"`
	QueryTime int64           `json:"query_time_ms"`
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	// Summary is a human-readable note produced by context-aware search
	// (how many results matched the caller's objectives).
	Summary string `json:"summary,omitempty"`
}

// AgentContext carries caller objectives and state used to bias ranking.
type AgentContext struct {
	Objectives []string `json:"objectives,omitempty"`
	State      string   `json:"state,omitempty"`
}
