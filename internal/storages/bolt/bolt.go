// Package bolt stores artifacts inside a single bbolt database file. It suits
// small artifacts and embedded deployments where one file is easier to ship
// than a directory tree.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/shyim/filestore/internal/storage"
)

var (
	objectsBucket = []byte("objects")
	dirsBucket    = []byte("dirs")
)

// headerSize prefixes every value with its modification time in unix nanos
const headerSize = 8

var errNotOpen = errors.New("bolt database is not open")

func init() {
	storage.RegisterDriver(&BoltStorageType{})
}

// BoltStorageType is the factory for bbolt storage
type BoltStorageType struct{}

// Name returns the storage type identifier
func (t *BoltStorageType) Name() string {
	return "bolt"
}

// Create validates options. The database is opened when the backend is
// initialized.
func (t *BoltStorageType) Create(poolName string, options map[string]string) (storage.Driver, error) {
	dbPath, ok := options["path"]
	if !ok || dbPath == "" {
		return nil, fmt.Errorf("bolt storage requires 'path' option")
	}

	timeout := time.Second
	if v := options["timeout"]; v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid bolt timeout %q: %w", v, err)
		}
		timeout = d
	}

	return &BoltStorage{
		path:     dbPath,
		timeout:  timeout,
		poolName: poolName,
	}, nil
}

// BoltStorage implements storage.Driver on a bbolt database
type BoltStorage struct {
	path     string
	timeout  time.Duration
	poolName string

	mu sync.RWMutex
	db *bbolt.DB
}

// Open opens the database file and creates the buckets
func (b *BoltStorage) Open(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(b.path, 0600, &bbolt.Options{Timeout: b.timeout})
	if err != nil {
		return fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{objectsBucket, dirsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create buckets: %w", err)
	}

	b.db = db
	return nil
}

func (b *BoltStorage) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

func (b *BoltStorage) update(fn func(tx *bbolt.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return errNotOpen
	}
	return b.db.Update(fn)
}

func (b *BoltStorage) view(fn func(tx *bbolt.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return errNotOpen
	}
	return b.db.View(fn)
}

// Store reads the whole payload and saves it under key
func (b *BoltStorage) Store(ctx context.Context, key string, reader io.Reader) error {
	key = cleanKey(key)
	if key == "" {
		return fmt.Errorf("empty key: %w", storage.ErrInvalidArgument)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.update(func(tx *bbolt.Tx) error {
		if tx.Bucket(dirsBucket).Get([]byte(key)) != nil {
			return fmt.Errorf("%s is a directory: %w", key, storage.ErrAlreadyExists)
		}
		if err := tx.Bucket(objectsBucket).Put([]byte(key), encode(time.Now(), data)); err != nil {
			return fmt.Errorf("failed to put %s: %w", key, err)
		}
		return nil
	})
}

func (b *BoltStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key = cleanKey(key)

	var data []byte
	err := b.view(func(tx *bbolt.Tx) error {
		v := tx.Bucket(objectsBucket).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		// values are only valid inside the transaction
		data = bytes.Clone(v[headerSize:])
		return nil
	})
	if err != nil {
		return nil, err
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *BoltStorage) Stat(ctx context.Context, key string) (storage.Object, error) {
	key = cleanKey(key)

	var obj storage.Object
	err := b.view(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(objectsBucket).Get([]byte(key)); v != nil {
			obj = storage.Object{Key: key, Size: int64(len(v) - headerSize), LastModified: decodeTime(v)}
			return nil
		}
		if v := tx.Bucket(dirsBucket).Get([]byte(key)); v != nil {
			obj = storage.Object{Key: key, LastModified: decodeTime(v), Dir: true}
			return nil
		}

		// a directory also exists implicitly while anything lives below it
		prefix := []byte(key + "/")
		for _, name := range [][]byte{objectsBucket, dirsBucket} {
			c := tx.Bucket(name).Cursor()
			if k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix) {
				obj = storage.Object{Key: key, LastModified: decodeTime(v), Dir: true}
				return nil
			}
		}

		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	})
	return obj, err
}

// List returns all artifacts whose key starts with prefix, sorted by key
func (b *BoltStorage) List(ctx context.Context, prefix string) ([]storage.Object, error) {
	files := make([]storage.Object, 0)
	err := b.view(func(tx *bbolt.Tx) error {
		c := tx.Bucket(objectsBucket).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && bytes.HasPrefix(k, []byte(prefix)); k, v = c.Next() {
			files = append(files, storage.Object{
				Key:          string(k),
				Size:         int64(len(v) - headerSize),
				LastModified: decodeTime(v),
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	// bbolt iterates in byte order already; keep the contract explicit
	sort.Slice(files, func(i, j int) bool {
		return files[i].Key < files[j].Key
	})
	return files, nil
}

func (b *BoltStorage) Delete(ctx context.Context, key string) error {
	key = cleanKey(key)
	return b.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(objectsBucket)
		if bucket.Get([]byte(key)) == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		return bucket.Delete([]byte(key))
	})
}

// MakeDir records key and its ancestors as directories
func (b *BoltStorage) MakeDir(ctx context.Context, key string) error {
	key = cleanKey(key)
	if key == "" {
		return nil
	}

	return b.update(func(tx *bbolt.Tx) error {
		objects := tx.Bucket(objectsBucket)
		dirs := tx.Bucket(dirsBucket)
		now := encode(time.Now(), nil)

		for dir := key; dir != "."; dir = path.Dir(dir) {
			if objects.Get([]byte(dir)) != nil {
				return fmt.Errorf("%s is a file: %w", dir, storage.ErrAlreadyExists)
			}
			if dirs.Get([]byte(dir)) != nil {
				continue
			}
			if err := dirs.Put([]byte(dir), now); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
		return nil
	})
}

func cleanKey(key string) string {
	return strings.Trim(path.Clean("/"+key), "/")
}

func encode(t time.Time, data []byte) []byte {
	v := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint64(v, uint64(t.UnixNano()))
	copy(v[headerSize:], data)
	return v
}

func decodeTime(v []byte) time.Time {
	if len(v) < headerSize {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(v[:headerSize])))
}
