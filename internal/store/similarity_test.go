package store

import (
	"math"
	"testing"
)

func TestCosineSimilarity_Identity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}
	got := CosineSimilarity(v, v)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("CosineSimilarity(v, v) = %v, want 1.0", got)
	}
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	zero := []float32{0, 0, 0}
	cases := [][]float32{
		{1, 2, 3},
		zero,
	}
	for _, other := range cases {
		got := CosineSimilarity(zero, other)
		if got != 0 {
			t.Errorf("zero vector similarity = %v, want 0", got)
		}
		if math.IsNaN(got) {
			t.Error("zero vector similarity must not be NaN")
		}
	}
}

func TestCosineSimilarity_MismatchedOrEmpty(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); got != 0 {
		t.Errorf("length mismatch = %v, want 0", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty inputs = %v, want 0", got)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	got := CosineSimilarity(a, b)
	if math.Abs(got+1.0) > 1e-9 {
		t.Errorf("opposite vectors = %v, want -1.0", got)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	got := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}
}
