package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/dshills/gokb/pkg/types"
)

// Common errors
var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider performs exactly one remote embedding call per invocation.
// Caching, pooling and failure recovery live in Client.
type Provider interface {
	// Embed returns the embedding of text
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimension produced by the model
	Dimension() int

	// Name returns the provider name
	Name() string

	// Model returns the model name
	Model() string
}

// Embedding is the result of Client.Embed
type Embedding struct {
	Vector []float32
	Hash   string // SHA-256 of the input text

	CacheHit bool
	// Degraded is set when the remote call failed and Vector is the zero
	// fallback. Cause carries the failure.
	Degraded bool
	Cause    error
}

// ComputeHash computes the SHA-256 hex digest used as the cache key
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateText rejects input that cannot be embedded
func ValidateText(text string) error {
	if text == "" {
		return fmt.Errorf("%w: %w", types.ErrValidation, ErrEmptyText)
	}
	return nil
}

// IsZero reports whether every component of v is zero
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

// meanPool averages vectors element-wise. All vectors must share a dimension.
func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) == 1 {
		return vectors[0]
	}

	sum := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	out := make([]float32, len(sum))
	n := float64(len(vectors))
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out
}
