// Package embedding defines the contract shared by text embedding providers.
package embedding

import (
	"context"
	"errors"
)

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("text to embed must not be empty")

// Vector is a dense embedding produced by a provider.
type Vector []float64

// Embedder turns text into a fixed-length vector using a pretrained model.
// Implementations are built once at startup and must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Provider() string
	Model() string
}

// FromFloat32 widens a provider response into a Vector.
func FromFloat32(values []float32) Vector {
	v := make(Vector, len(values))
	for i, f := range values {
		v[i] = float64(f)
	}
	return v
}
