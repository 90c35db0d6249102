// Package blob stores uploaded files in an object store.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned for a missing object.
var ErrNotFound = errors.New("blob not found")

// Client is an object store.
type Client interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	// URL returns the public download link for key.
	URL(key string) string
	// StorageType names the backend recorded on blob metadata.
	StorageType() string
}
