package storage

import (
	"context"
	"io"
)

// ObjectStorage is the archival store for raw source payloads. Every file
// fetched from the drop is archived before parsing so billed counters can
// be audited against the original data.
type ObjectStorage interface {
	// Upload stores an object under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download retrieves an object by key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether an object is already archived.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes an object.
	Delete(ctx context.Context, key string) error
}
