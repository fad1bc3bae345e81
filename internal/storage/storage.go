// Package storage holds the durable key/value slots the cart persists into.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when nothing has been written under a key.
var ErrNotFound = errors.New("slot not found")

// Slots is a durable key/value store. Each key holds a single opaque value.
type Slots interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
