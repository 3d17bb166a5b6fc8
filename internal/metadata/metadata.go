// Package metadata provides the descriptive record attached to uploaded files
// and its JSON text form.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// FileMetadata describes an uploaded file. It is immutable: values are
// produced by a Builder and only expose getters.
type FileMetadata struct {
	fileName    string
	mimeType    string
	extension   string
	version     string
	description string
	saveDate    time.Time
}

func (m FileMetadata) FileName() string    { return m.fileName }
func (m FileMetadata) MimeType() string    { return m.mimeType }
func (m FileMetadata) Extension() string   { return m.extension }
func (m FileMetadata) Version() string     { return m.version }
func (m FileMetadata) Description() string { return m.description }
func (m FileMetadata) SaveDate() time.Time { return m.saveDate }

// IsZero reports whether no field is set
func (m FileMetadata) IsZero() bool {
	return m == FileMetadata{}
}

// Equal reports whether both records hold the same values
func (m FileMetadata) Equal(other FileMetadata) bool {
	return m.fileName == other.fileName &&
		m.mimeType == other.mimeType &&
		m.extension == other.extension &&
		m.version == other.version &&
		m.description == other.description &&
		m.saveDate.Equal(other.saveDate)
}

func (m FileMetadata) String() string {
	return fmt.Sprintf("FileMetadata{fileName=%q mimeType=%q extension=%q version=%q saveDate=%s}",
		m.fileName, m.mimeType, m.extension, m.version, m.saveDate.Format(time.RFC3339))
}

// Builder accumulates optional fields for a FileMetadata
type Builder struct {
	md FileMetadata
}

// NewBuilder returns an empty builder
func NewBuilder() *Builder {
	return &Builder{}
}

// FromFile returns a builder pre-filled with the name, extension and sniffed
// MIME type of the local file at path.
func FromFile(path string) (*Builder, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect mime type of %s: %w", path, err)
	}

	return NewBuilder().
		FileName(info.Name()).
		Extension(filepath.Ext(info.Name())).
		MimeType(mt.String()), nil
}

func (b *Builder) FileName(name string) *Builder {
	b.md.fileName = name
	return b
}

func (b *Builder) MimeType(mimeType string) *Builder {
	b.md.mimeType = mimeType
	return b
}

func (b *Builder) Extension(ext string) *Builder {
	b.md.extension = ext
	return b
}

func (b *Builder) Version(version string) *Builder {
	b.md.version = version
	return b
}

func (b *Builder) Description(description string) *Builder {
	b.md.description = description
	return b
}

func (b *Builder) SaveDate(t time.Time) *Builder {
	b.md.saveDate = t
	return b
}

// Build returns the accumulated record. Later builder calls do not affect
// records that were already built.
func (b *Builder) Build() FileMetadata {
	return b.md
}
