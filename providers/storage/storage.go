// Package storage defines the binary artifact boundary: rendered images are
// handed over as bytes plus a content type and come back as a stable URL. The
// engine never manages on-disk paths itself.
package storage

import "context"

// Store persists one binary artifact and returns its stable URL.
type Store interface {
	Store(ctx context.Context, data []byte, contentType string) (string, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, data []byte, contentType string) (string, error)

// Store implements Store.
func (f StoreFunc) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	return f(ctx, data, contentType)
}
