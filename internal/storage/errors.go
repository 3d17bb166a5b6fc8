package storage

import (
	"errors"
	"fmt"
)

// Error kinds returned by backends, drivers and the registry. Callers match
// them with errors.Is; every returned error wraps exactly one of these.
var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyExists         = errors.New("already exists")
	ErrUnsupportedType       = errors.New("file type not supported")
	ErrClosed                = errors.New("storage backend is closed")
	ErrDuplicateRegistration = errors.New("backend already registered")
	ErrUnknownRegistration   = errors.New("backend not registered")
)

// FileError records which member of a batch operation failed.
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
