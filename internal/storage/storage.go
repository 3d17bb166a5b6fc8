package storage

import (
	"context"
	"io"
	"time"
)

// Object represents a stored artifact or directory node
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	Dir          bool
}

// Driver is the raw I/O layer a concrete storage implements. Keys are
// slash-separated paths relative to the driver root without a leading slash.
// Drivers must be safe for concurrent use and report missing keys with an
// error wrapping ErrNotFound.
type Driver interface {
	// Store saves data under key, replacing any existing artifact and
	// creating missing parent directories.
	Store(ctx context.Context, key string, reader io.Reader) error

	// Get retrieves an artifact for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Stat describes the artifact or directory at key
	Stat(ctx context.Context, key string) (Object, error)

	// List returns every artifact (not directory) whose key starts with prefix
	List(ctx context.Context, prefix string) ([]Object, error)

	// Delete removes an artifact
	Delete(ctx context.Context, key string) error

	// MakeDir creates an empty directory node and its parents
	MakeDir(ctx context.Context, key string) error

	// Close releases driver resources
	Close() error
}

// DriverType creates Driver instances from configuration.
// Each storage plugin implements this interface to provide factory functionality.
type DriverType interface {
	// Name returns the type identifier ("local", "s3", etc.)
	Name() string

	// Create instantiates a driver from pool configuration options
	Create(poolName string, options map[string]string) (Driver, error)
}
