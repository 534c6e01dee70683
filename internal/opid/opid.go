// Package opid threads a per-resolution operation id through context so
// event subscribers can correlate start/finish pairs.
package opid

import (
	"context"
	"math/rand/v2"
)

type key struct{}

// NewContext returns a copy of parent carrying a fresh operation id, and
// the id itself. An id already present is preserved.
func NewContext(parent context.Context) (context.Context, uint64) {
	if id, ok := FromContext(parent); ok {
		return parent, id
	}
	id := rand.Uint64()
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the operation id from ctx.
func FromContext(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(key{}).(uint64)
	return id, ok
}
