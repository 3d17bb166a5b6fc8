// Package memory keeps artifacts in process memory. Contents are lost when
// the backend terminates.
package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shyim/filestore/internal/storage"
)

// ErrQuotaExceeded is returned when a write would grow the store past max-size
var ErrQuotaExceeded = errors.New("memory storage quota exceeded")

func init() {
	storage.RegisterDriver(&MemoryStorageType{})
}

// MemoryStorageType is the factory for in-memory storage
type MemoryStorageType struct{}

// Name returns the storage type identifier
func (t *MemoryStorageType) Name() string {
	return "memory"
}

// Create instantiates an empty store. The optional max-size option caps the
// total payload bytes held.
func (t *MemoryStorageType) Create(poolName string, options map[string]string) (storage.Driver, error) {
	var maxSize int64
	if v := options["max-size"]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid memory max-size %q", v)
		}
		maxSize = n
	}

	return New(maxSize), nil
}

type memObject struct {
	data     []byte
	modified time.Time
}

// MemoryStorage implements storage.Driver using in-memory maps
type MemoryStorage struct {
	mu          sync.RWMutex
	objects     map[string]memObject
	dirs        map[string]time.Time
	currentSize int64
	maxSize     int64
}

// New returns an empty store. maxSize of zero means unlimited.
func New(maxSize int64) *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memObject),
		dirs:    make(map[string]time.Time),
		maxSize: maxSize,
	}
}

func (m *MemoryStorage) Store(ctx context.Context, key string, reader io.Reader) error {
	key = cleanKey(key)
	if key == "" {
		return fmt.Errorf("empty key: %w", storage.ErrInvalidArgument)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.dirs[key]; ok {
		return fmt.Errorf("%s is a directory: %w", key, storage.ErrAlreadyExists)
	}

	newSize := m.currentSize + int64(len(data))
	if old, ok := m.objects[key]; ok {
		newSize -= int64(len(old.data))
	}
	if m.maxSize > 0 && newSize > m.maxSize {
		return fmt.Errorf("storing %s needs %d bytes, limit is %d: %w", key, newSize, m.maxSize, ErrQuotaExceeded)
	}

	m.objects[key] = memObject{data: data, modified: time.Now()}
	m.currentSize = newSize
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key = cleanKey(key)

	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	// stored slices are never mutated, so readers can share them
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) Stat(ctx context.Context, key string) (storage.Object, error) {
	key = cleanKey(key)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if obj, ok := m.objects[key]; ok {
		return storage.Object{Key: key, Size: int64(len(obj.data)), LastModified: obj.modified}, nil
	}
	if modified, ok := m.dirs[key]; ok {
		return storage.Object{Key: key, LastModified: modified, Dir: true}, nil
	}

	prefix := key + "/"
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			return storage.Object{Key: key, LastModified: obj.modified, Dir: true}, nil
		}
	}
	for k, modified := range m.dirs {
		if strings.HasPrefix(k, prefix) {
			return storage.Object{Key: key, LastModified: modified, Dir: true}, nil
		}
	}

	return storage.Object{}, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
}

func (m *MemoryStorage) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	m.mu.RLock()
	files := make([]storage.Object, 0, len(m.objects))
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			files = append(files, storage.Object{Key: k, Size: int64(len(obj.data)), LastModified: obj.modified})
		}
	}
	m.mu.RUnlock()

	sort.Slice(files, func(i, j int) bool {
		return files[i].Key < files[j].Key
	})
	return files, nil
}

func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	key = cleanKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	delete(m.objects, key)
	m.currentSize -= int64(len(obj.data))
	return nil
}

func (m *MemoryStorage) MakeDir(ctx context.Context, key string) error {
	key = cleanKey(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for dir := key; dir != "." && dir != ""; dir = path.Dir(dir) {
		if _, ok := m.objects[dir]; ok {
			return fmt.Errorf("%s is a file: %w", dir, storage.ErrAlreadyExists)
		}
		if _, ok := m.dirs[dir]; !ok {
			m.dirs[dir] = now
		}
	}
	return nil
}

// Size returns the total payload bytes held
func (m *MemoryStorage) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentSize
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects = make(map[string]memObject)
	m.dirs = make(map[string]time.Time)
	m.currentSize = 0
	return nil
}

func cleanKey(key string) string {
	return strings.Trim(path.Clean("/"+key), "/")
}
