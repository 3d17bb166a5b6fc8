package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/shyim/filestore/internal/storage"
)

// tmpDir holds in-flight writes below the root
const tmpDir = ".tmp"

func init() {
	storage.RegisterDriver(&LocalStorageType{})
}

// LocalStorageType is the factory for local storage
type LocalStorageType struct{}

// Name returns the storage type identifier
func (t *LocalStorageType) Name() string {
	return "local"
}

// Create instantiates a new local storage from options
func (t *LocalStorageType) Create(poolName string, options map[string]string) (storage.Driver, error) {
	root, ok := options["path"]
	if !ok || root == "" {
		return nil, fmt.Errorf("local storage requires 'path' option")
	}

	if err := os.MkdirAll(filepath.Join(root, tmpDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: root,
		poolName: poolName,
	}, nil
}

// LocalStorage implements storage.Driver on a directory of the local
// filesystem. Writes land in a temporary file first and are renamed into
// place once synced.
type LocalStorage struct {
	basePath string
	poolName string
}

func (l *LocalStorage) fullPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.HasPrefix(clean, "/"+tmpDir+"/") || clean == "/"+tmpDir {
		return "", fmt.Errorf("invalid key %q: %w", key, storage.ErrInvalidArgument)
	}
	return filepath.Join(l.basePath, filepath.FromSlash(clean[1:])), nil
}

// Store saves data under key, replacing any previous content
func (l *LocalStorage) Store(ctx context.Context, key string, reader io.Reader) error {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	tmpPath := filepath.Join(l.basePath, tmpDir, "tmp-"+uuid.NewString())
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, &ctxReader{ctx: ctx, r: reader}); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	return nil
}

// Get retrieves a file for reading
func (l *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, mapError(key, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", key, storage.ErrInvalidArgument)
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, mapError(key, err)
	}

	return file, nil
}

func (l *LocalStorage) Stat(ctx context.Context, key string) (storage.Object, error) {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return storage.Object{}, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return storage.Object{}, mapError(key, err)
	}

	obj := storage.Object{
		Key:          path.Clean(key),
		LastModified: info.ModTime(),
		Dir:          info.IsDir(),
	}
	if !info.IsDir() {
		obj.Size = info.Size()
	}
	return obj, nil
}

// List returns all files whose key starts with prefix, sorted by key
func (l *LocalStorage) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	files := make([]storage.Object, 0)

	err := filepath.WalkDir(l.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(l.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(relPath)

		if d.IsDir() {
			if key == tmpDir {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		files = append(files, storage.Object{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})

	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Key < files[j].Key
	})

	return files, nil
}

// Delete removes a file. An emptied metadata directory is removed with it.
func (l *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return mapError(key, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory: %w", key, storage.ErrInvalidArgument)
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("failed to delete file: %w", mapError(key, err))
	}

	if dir := filepath.Dir(fullPath); filepath.Base(dir) == ".meta" {
		// fails while the directory still holds sidecars
		_ = os.Remove(dir)
	}

	return nil
}

func (l *LocalStorage) MakeDir(ctx context.Context, key string) error {
	fullPath, err := l.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func (l *LocalStorage) Close() error {
	return nil
}

func mapError(key string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	if errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return err
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
