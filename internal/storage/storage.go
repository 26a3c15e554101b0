// Package storage persists avatar images behind a backend-neutral interface.
// The local backend serves development and single-node deployments; the S3
// backend covers object storage and MinIO.
package storage

import (
	"context"
	"io"
)

// Storage writes and removes avatar objects and resolves their public URLs.
type Storage interface {
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}
