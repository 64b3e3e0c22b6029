// Package models defines core data structures for vector records, metadata, and search results.
package models

import "time"

// VectorRecord is a stored text/embedding pair. All records in one store share
// a single vector dimension, fixed by the first insert.
type VectorRecord struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector,omitempty"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the record. The vector and metadata are copied
// so callers cannot mutate stored state through a returned record.
func (r *VectorRecord) Clone() *VectorRecord {
	if r == nil {
		return nil
	}
	out := &VectorRecord{
		ID:        r.ID,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
	}
	if r.Vector != nil {
		out.Vector = make([]float32, len(r.Vector))
		copy(out.Vector, r.Vector)
	}
	if r.Metadata != nil {
		out.Metadata = r.Metadata.Clone()
	}
	return out
}

// ContextAware reports whether the record carries the context_aware metadata flag.
func (r *VectorRecord) ContextAware() bool {
	if r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata["context_aware"]
	if !ok {
		return false
	}
	b, ok := v.Bool()
	return ok && b
}
