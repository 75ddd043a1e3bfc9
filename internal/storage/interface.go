package storage

import "context"

// BlobStore is the contract for persisting scraped product images
type BlobStore interface {
	// Upload stores data under path with the given content type and
	// returns the public URL of the stored blob.
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, path string) error
}
