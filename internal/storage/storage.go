// Package storage provides persistent asset storage.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 with CloudFront delivery.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for persistent asset storage. The generated
// scenario assets are stored under hierarchical keys and served back to the
// frontend from the returned URL.
type Storage interface {
	// Upload stores data under key with the given content type and returns
	// the public URL the asset is served from.
	Upload(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}
