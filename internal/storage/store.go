package storage

import (
	"context"
)

// Store abstracts binary document storage. Implementations must refuse to
// overwrite an existing object; callers use collision-resistant names.
type Store interface {
	// Put writes data under path and returns the durable retrieval URL.
	Put(ctx context.Context, path string, data []byte) (string, error)
	// Delete removes the object at path. Missing objects are not an error.
	Delete(ctx context.Context, path string) error
	// URL returns the durable retrieval URL for path without touching storage.
	URL(path string) string
}
