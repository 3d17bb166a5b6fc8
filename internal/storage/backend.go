// Package storage defines the file-storage backend contract, the registry
// that resolves backend instances by key, and the extension policy that
// gates which file types a backend accepts.
//
// Concrete storage lives in Driver plugins that register a DriverType from
// their init function. FileSystem wraps any Driver and enforces the
// lifecycle and policy rules of the Backend contract on top of it.
package storage

import (
	"context"
	"strings"

	"github.com/shyim/filestore/internal/metadata"
)

// Key identifies a registered backend instance. By convention it is
// "<driver-type>/<instance-name>"; driver type names are unique, so keys of
// unrelated backends cannot collide.
type Key string

// NewKey builds the registry key for an instance of a driver type
func NewKey(driverType, instance string) Key {
	return Key(driverType + "/" + instance)
}

// Type returns the driver type part of the key
func (k Key) Type() string {
	t, _, _ := strings.Cut(string(k), "/")
	return t
}

func (k Key) String() string {
	return string(k)
}

// File is a batch upload member with optional metadata
type File struct {
	Path     string
	Metadata *metadata.FileMetadata
}

// Backend is the capability contract every storage backend satisfies.
// All operations other than Initialize, Terminate, Key and State fail with
// ErrClosed unless the backend is open.
type Backend interface {
	// Key returns the identity the backend registers under
	Key() Key

	// State returns the lifecycle state
	State() State

	// Initialize opens the backend for use. Initializing an open backend is
	// a no-op; initializing a terminated backend fails with ErrClosed.
	Initialize(ctx context.Context) error

	// Terminate closes the backend for good. Terminating twice is a no-op.
	Terminate(ctx context.Context) error

	// Upload stores the local file src in directory dir
	Upload(ctx context.Context, src, dir string) error

	// UploadWithMetadata stores src in dir and attaches md to it
	UploadWithMetadata(ctx context.Context, src, dir string, md *metadata.FileMetadata) error

	// UploadCollection stores every file of srcs in dir
	UploadCollection(ctx context.Context, srcs []string, dir string) error

	// UploadCollectionWithMetadata stores every file in dir with its metadata
	UploadCollectionWithMetadata(ctx context.Context, files []File, dir string) error

	// UploadCompressed stores src in dir as a single-entry archive. md may be nil.
	UploadCompressed(ctx context.Context, src, dir string, md *metadata.FileMetadata) error

	// Download copies the artifact at path into the local directory localDir
	Download(ctx context.Context, path, localDir string) error

	// DownloadCollection copies every artifact of paths into localDir
	DownloadCollection(ctx context.Context, paths []string, localDir string) error

	// DownloadDecompressed expands the archive artifact at path into localDir
	DownloadDecompressed(ctx context.Context, path, localDir string) error

	// CreateDirectory creates an empty directory node
	CreateDirectory(ctx context.Context, path string) error

	// Delete removes an artifact and its metadata
	Delete(ctx context.Context, path string) error

	// Metadata returns the metadata stored with an artifact
	Metadata(ctx context.Context, path string) (metadata.FileMetadata, error)

	// FindAll returns every artifact
	FindAll(ctx context.Context) ([]Object, error)

	// FindByName returns artifacts whose base name equals name
	FindByName(ctx context.Context, name string) ([]Object, error)

	// FindByExtension returns artifacts whose extension equals ext
	FindByExtension(ctx context.Context, ext string) ([]Object, error)

	// ExcludeExtension refuses future uploads of files with extension ext
	ExcludeExtension(ext string) error

	// AllowExtension lifts an earlier exclusion of ext
	AllowExtension(ext string) error
}
