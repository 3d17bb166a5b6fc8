package metadata

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

// record is the on-disk form. Every field is optional and omitted when empty.
type record struct {
	FileName    string `json:"fileName,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
	Extension   string `json:"extension,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	SaveDate    string `json:"saveDate,omitempty"`
}

// Marshal encodes md as indented JSON
func Marshal(md FileMetadata) ([]byte, error) {
	rec := record{
		FileName:    md.fileName,
		MimeType:    md.mimeType,
		Extension:   md.extension,
		Version:     md.version,
		Description: md.description,
	}
	if !md.saveDate.IsZero() {
		rec.SaveDate = md.saveDate.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}

// Unmarshal decodes the JSON form produced by Marshal. Missing keys leave the
// corresponding field empty.
func Unmarshal(data []byte) (FileMetadata, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return FileMetadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}

	b := NewBuilder().
		FileName(rec.FileName).
		MimeType(rec.MimeType).
		Extension(rec.Extension).
		Version(rec.Version).
		Description(rec.Description)

	if rec.SaveDate != "" {
		t, err := time.Parse(time.RFC3339Nano, rec.SaveDate)
		if err != nil {
			return FileMetadata{}, fmt.Errorf("invalid saveDate %q: %w", rec.SaveDate, err)
		}
		b.SaveDate(t)
	}

	return b.Build(), nil
}

// WriteFile stores md as JSON at path
func WriteFile(md FileMetadata, path string) error {
	data, err := Marshal(md)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// ReadFile loads metadata written by WriteFile
func ReadFile(path string) (FileMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("failed to read metadata file: %w", err)
	}
	return Unmarshal(data)
}
