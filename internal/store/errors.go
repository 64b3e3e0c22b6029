package store

import "errors"

// ErrInvalidVector is returned when a vector is empty or does not match the
// store's fixed dimension.
var ErrInvalidVector = errors.New("invalid vector")

// ErrEmbeddingUnavailable is returned when the embedding provider is missing
// or failed. The operation fails; no synthetic vector is ever substituted.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")
