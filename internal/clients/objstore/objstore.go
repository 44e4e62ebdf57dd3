package objstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound distinguishes a missing object from a storage outage.
// Head implementations wrap it; everything else is a collaborator failure.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
}

// ObjectStore is the blob storage surface used by the file coordinator.
// Uploads flow through presigned PUT URLs; the server itself only writes
// derived objects such as thumbnails.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	PresignDownload(ctx context.Context, key, filename string, expiry time.Duration) (string, error)
	Head(ctx context.Context, key string) (ObjectInfo, error)
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// Delete removes objects best-effort: it keeps going past per-key
	// failures and returns the last error seen.
	Delete(ctx context.Context, keys []string) error
}
