package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shyim/filestore/internal/archive"
	"github.com/shyim/filestore/internal/metadata"
	"github.com/shyim/filestore/internal/metrics"
)

// metaDir is the reserved directory holding metadata sidecars next to the
// artifacts they describe.
const metaDir = ".meta"

const defaultDownloadConcurrency = 4

// Opener is implemented by drivers that acquire resources when their
// backend is initialized.
type Opener interface {
	Open(ctx context.Context) error
}

// Option configures a FileSystem
type Option func(*FileSystem)

// WithLogger sets the logger used for lifecycle and mutation events
func WithLogger(logger *slog.Logger) Option {
	return func(fs *FileSystem) {
		fs.log = logger
	}
}

// WithOverwrite lets uploads replace existing artifacts
func WithOverwrite(allow bool) Option {
	return func(fs *FileSystem) {
		fs.overwrite = allow
	}
}

// WithArchiveFormat sets the container used by UploadCompressed
func WithArchiveFormat(format archive.Format) Option {
	return func(fs *FileSystem) {
		fs.format = format
	}
}

// WithPolicy replaces the default empty extension policy
func WithPolicy(policy *ExtensionPolicy) Option {
	return func(fs *FileSystem) {
		fs.policy = policy
	}
}

// WithTempDir sets where DownloadDecompressed stages archives
func WithTempDir(dir string) Option {
	return func(fs *FileSystem) {
		fs.tempDir = dir
	}
}

// WithDownloadConcurrency bounds parallel downloads in DownloadCollection
func WithDownloadConcurrency(n int) Option {
	return func(fs *FileSystem) {
		if n > 0 {
			fs.parallel = n
		}
	}
}

// FileSystem implements Backend on top of a Driver. Uploads never overwrite
// existing artifacts unless WithOverwrite(true) is given. Batch uploads
// validate every member before writing any of them.
type FileSystem struct {
	key       Key
	driver    Driver
	lifecycle Lifecycle
	policy    *ExtensionPolicy
	locks     keyLocks
	overwrite bool
	format    archive.Format
	tempDir   string
	parallel  int
	log       *slog.Logger
}

var _ Backend = (*FileSystem)(nil)

// New creates an uninitialized backend identified by key over driver
func New(key Key, driver Driver, opts ...Option) *FileSystem {
	fs := &FileSystem{
		key:      key,
		driver:   driver,
		format:   archive.FormatZip,
		tempDir:  os.TempDir(),
		parallel: defaultDownloadConcurrency,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.policy == nil {
		fs.policy = &ExtensionPolicy{}
	}
	return fs
}

func (fs *FileSystem) Key() Key {
	return fs.key
}

func (fs *FileSystem) State() State {
	return fs.lifecycle.State()
}

// ExcludedExtensions returns the extensions the backend currently refuses
func (fs *FileSystem) ExcludedExtensions() []string {
	return fs.policy.Excluded()
}

func (fs *FileSystem) Initialize(ctx context.Context) error {
	err := fs.lifecycle.Open(func() error {
		if opener, ok := fs.driver.(Opener); ok {
			if err := opener.Open(ctx); err != nil {
				return fmt.Errorf("failed to open driver: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fs.log.Info("storage backend initialized", "backend", fs.key)
	return nil
}

func (fs *FileSystem) Terminate(ctx context.Context) error {
	wasOpen := fs.lifecycle.State() == StateOpen
	closed := false
	err := fs.lifecycle.Close(func() error {
		closed = true
		return fs.driver.Close()
	})
	if err != nil {
		return fmt.Errorf("failed to close driver: %w", err)
	}
	if closed && wasOpen {
		fs.log.Info("storage backend terminated", "backend", fs.key)
	}
	return nil
}

func (fs *FileSystem) Upload(ctx context.Context, src, dir string) error {
	return fs.run("upload", func() error {
		return fs.upload(ctx, File{Path: src}, dir, "")
	})
}

func (fs *FileSystem) UploadWithMetadata(ctx context.Context, src, dir string, md *metadata.FileMetadata) error {
	return fs.run("upload", func() error {
		if md == nil {
			return fmt.Errorf("metadata is nil: %w", ErrInvalidArgument)
		}
		return fs.upload(ctx, File{Path: src, Metadata: md}, dir, "")
	})
}

func (fs *FileSystem) UploadCompressed(ctx context.Context, src, dir string, md *metadata.FileMetadata) error {
	return fs.run("upload_compressed", func() error {
		return fs.upload(ctx, File{Path: src, Metadata: md}, dir, string(fs.format))
	})
}

func (fs *FileSystem) UploadCollection(ctx context.Context, srcs []string, dir string) error {
	files := make([]File, len(srcs))
	for i, src := range srcs {
		files[i] = File{Path: src}
	}
	return fs.run("upload_collection", func() error {
		return fs.uploadCollection(ctx, files, dir)
	})
}

func (fs *FileSystem) UploadCollectionWithMetadata(ctx context.Context, files []File, dir string) error {
	return fs.run("upload_collection", func() error {
		return fs.uploadCollection(ctx, files, dir)
	})
}

func (fs *FileSystem) Download(ctx context.Context, p, localDir string) error {
	return fs.run("download", func() error {
		return fs.download(ctx, p, localDir)
	})
}

func (fs *FileSystem) DownloadCollection(ctx context.Context, paths []string, localDir string) error {
	return fs.run("download_collection", func() error {
		errs := collidingTargets(paths)

		var g errgroup.Group
		g.SetLimit(fs.parallel)
		for i, p := range paths {
			if errs[i] != nil {
				continue
			}
			g.Go(func() error {
				if err := fs.download(ctx, p, localDir); err != nil {
					errs[i] = &FileError{Op: "download", Path: p, Err: err}
				}
				return nil
			})
		}
		_ = g.Wait()

		return errors.Join(errs...)
	})
}

// collidingTargets rejects members that would land on the same local file.
// The returned slice is indexed like paths.
func collidingTargets(paths []string) []error {
	byName := make(map[string][]int, len(paths))
	for i, p := range paths {
		key, err := artifactKey(p)
		if err != nil {
			continue
		}
		name := path.Base(key)
		byName[name] = append(byName[name], i)
	}

	errs := make([]error, len(paths))
	for name, members := range byName {
		if len(members) < 2 {
			continue
		}
		for _, i := range members {
			errs[i] = &FileError{
				Op:   "download",
				Path: paths[i],
				Err:  fmt.Errorf("%d members of the collection download to %s: %w", len(members), name, ErrAlreadyExists),
			}
		}
	}
	return errs
}

func (fs *FileSystem) DownloadDecompressed(ctx context.Context, p, localDir string) error {
	return fs.run("download_decompressed", func() error {
		key, err := artifactKey(p)
		if err != nil {
			return err
		}
		if localDir == "" {
			return fmt.Errorf("empty local directory: %w", ErrInvalidArgument)
		}
		if _, ok := archive.FormatOf(key); !ok {
			return fmt.Errorf("%s is not an archive (supported: %s): %w", key, archive.Supported(), ErrUnsupportedType)
		}
		if err := fs.statFile(ctx, key); err != nil {
			return err
		}

		staging, err := os.MkdirTemp(fs.tempDir, "filestore-")
		if err != nil {
			return fmt.Errorf("failed to create staging directory: %w", err)
		}
		defer func() {
			_ = os.RemoveAll(staging)
		}()

		local := filepath.Join(staging, path.Base(key))
		if err := fs.fetch(ctx, key, local); err != nil {
			return err
		}

		if err := archive.Decompress(local, localDir); err != nil {
			return fmt.Errorf("failed to decompress %s: %w", key, err)
		}

		fs.log.Debug("decompressed artifact", "backend", fs.key, "key", key, "destination", localDir)
		return nil
	})
}

// CreateDirectory creates path as an empty directory. An existing directory
// at path is not an error; an existing artifact is.
func (fs *FileSystem) CreateDirectory(ctx context.Context, p string) error {
	return fs.run("create_directory", func() error {
		key, err := dirKey(p)
		if err != nil {
			return err
		}
		if key == "" {
			return nil
		}

		unlock := fs.locks.lock(key)
		defer unlock()

		obj, err := fs.driver.Stat(ctx, key)
		switch {
		case err == nil && obj.Dir:
			return nil
		case err == nil:
			return fmt.Errorf("%s is a file: %w", key, ErrAlreadyExists)
		case !errors.Is(err, ErrNotFound):
			return err
		}

		if err := fs.checkParents(ctx, key); err != nil {
			return err
		}

		if err := fs.driver.MakeDir(ctx, key); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", key, err)
		}

		fs.log.Debug("created directory", "backend", fs.key, "key", key)
		return nil
	})
}

func (fs *FileSystem) Delete(ctx context.Context, p string) error {
	return fs.run("delete", func() error {
		key, err := artifactKey(p)
		if err != nil {
			return err
		}

		unlock := fs.locks.lock(key)
		defer unlock()

		if err := fs.statFile(ctx, key); err != nil {
			return err
		}

		if err := fs.driver.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		if err := fs.driver.Delete(ctx, sidecarKey(key)); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete metadata of %s: %w", key, err)
		}

		fs.log.Debug("deleted artifact", "backend", fs.key, "key", key)
		return nil
	})
}

func (fs *FileSystem) Metadata(ctx context.Context, p string) (metadata.FileMetadata, error) {
	var md metadata.FileMetadata
	err := fs.run("metadata", func() error {
		key, err := artifactKey(p)
		if err != nil {
			return err
		}
		if err := fs.statFile(ctx, key); err != nil {
			return err
		}

		rc, err := fs.driver.Get(ctx, sidecarKey(key))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("no metadata stored for %s: %w", key, ErrNotFound)
			}
			return err
		}
		defer func() {
			_ = rc.Close()
		}()

		data, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("failed to read metadata of %s: %w", key, err)
		}

		md, err = metadata.Unmarshal(data)
		return err
	})
	return md, err
}

func (fs *FileSystem) FindAll(ctx context.Context) ([]Object, error) {
	return fs.find(ctx, "find_all", func() (func(Object) bool, error) {
		return func(Object) bool { return true }, nil
	})
}

func (fs *FileSystem) FindByName(ctx context.Context, name string) ([]Object, error) {
	return fs.find(ctx, "find_by_name", func() (func(Object) bool, error) {
		if name == "" {
			return nil, fmt.Errorf("empty name: %w", ErrInvalidArgument)
		}
		return func(obj Object) bool {
			return path.Base(obj.Key) == name
		}, nil
	})
}

func (fs *FileSystem) FindByExtension(ctx context.Context, ext string) ([]Object, error) {
	return fs.find(ctx, "find_by_extension", func() (func(Object) bool, error) {
		norm, err := normalizeExtension(ext)
		if err != nil {
			return nil, err
		}
		return func(obj Object) bool {
			return strings.EqualFold(Ext(obj.Key), norm)
		}, nil
	})
}

func (fs *FileSystem) ExcludeExtension(ext string) error {
	return fs.run("exclude_extension", func() error {
		return fs.policy.Disallow(ext)
	})
}

func (fs *FileSystem) AllowExtension(ext string) error {
	return fs.run("allow_extension", func() error {
		return fs.policy.Allow(ext)
	})
}

// run executes fn under the lifecycle's shared hold and records metrics
func (fs *FileSystem) run(op string, fn func() error) error {
	start := time.Now()
	err := fs.lifecycle.Do(fn)
	metrics.ObserveOperation(string(fs.key), op, statusOf(err), start)
	return err
}

func (fs *FileSystem) find(ctx context.Context, op string, matcher func() (func(Object) bool, error)) ([]Object, error) {
	result := make([]Object, 0)
	err := fs.run(op, func() error {
		match, err := matcher()
		if err != nil {
			return err
		}

		objects, err := fs.driver.List(ctx, "")
		if err != nil {
			return fmt.Errorf("failed to list artifacts: %w", err)
		}
		for _, obj := range objects {
			if obj.Dir || isReserved(obj.Key) || !match(obj) {
				continue
			}
			result = append(result, obj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// uploadPlan is a validated upload ready to be written
type uploadPlan struct {
	file     File
	key      string
	size     int64
	suffix   string
	replaces bool
}

func (fs *FileSystem) upload(ctx context.Context, f File, dir, suffix string) error {
	key, err := targetKey(f.Path, dir, suffix)
	if err != nil {
		return err
	}

	unlock := fs.locks.lock(key)
	defer unlock()

	plan, err := fs.prepare(ctx, f, dir, suffix)
	if err != nil {
		return err
	}
	return fs.write(ctx, plan)
}

func (fs *FileSystem) uploadCollection(ctx context.Context, files []File, dir string) error {
	keys := make([]string, 0, len(files))
	var errs []error
	for _, f := range files {
		key, err := targetKey(f.Path, dir, "")
		if err != nil {
			errs = append(errs, &FileError{Op: "upload", Path: f.Path, Err: err})
			continue
		}
		keys = append(keys, key)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	unlock := fs.locks.lock(keys...)
	defer unlock()

	plans := make([]uploadPlan, 0, len(files))
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		plan, err := fs.prepare(ctx, f, dir, "")
		if err == nil {
			if _, dup := seen[plan.key]; dup {
				err = fmt.Errorf("%s appears twice in the collection: %w", plan.key, ErrAlreadyExists)
			}
			seen[plan.key] = struct{}{}
		}
		if err != nil {
			errs = append(errs, &FileError{Op: "upload", Path: f.Path, Err: err})
			continue
		}
		plans = append(plans, plan)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, plan := range plans {
		if err := fs.write(ctx, plan); err != nil {
			return &FileError{Op: "upload", Path: plan.file.Path, Err: err}
		}
	}
	return nil
}

// prepare runs every upload check in contract order: argument shape,
// extension policy (before any I/O), source existence, destination
// conflicts.
func (fs *FileSystem) prepare(ctx context.Context, f File, dir, suffix string) (uploadPlan, error) {
	dk, err := dirKey(dir)
	if err != nil {
		return uploadPlan{}, err
	}
	key, err := targetKey(f.Path, dir, suffix)
	if err != nil {
		return uploadPlan{}, err
	}

	name := filepath.Base(f.Path)
	if ext := Ext(name); fs.policy.IsDisallowed(ext) {
		return uploadPlan{}, fmt.Errorf("extension %q of %s is excluded: %w", ext, name, ErrUnsupportedType)
	}
	if ext := Ext(path.Base(key)); suffix != "" && fs.policy.IsDisallowed(ext) {
		return uploadPlan{}, fmt.Errorf("archive extension %q is excluded: %w", ext, ErrUnsupportedType)
	}

	info, err := os.Stat(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return uploadPlan{}, fmt.Errorf("source %s: %w", f.Path, ErrNotFound)
		}
		return uploadPlan{}, fmt.Errorf("failed to stat source %s: %w", f.Path, err)
	}
	if info.IsDir() {
		return uploadPlan{}, fmt.Errorf("source %s is a directory: %w", f.Path, ErrInvalidArgument)
	}

	if dk != "" {
		obj, err := fs.driver.Stat(ctx, dk)
		switch {
		case err == nil && !obj.Dir:
			return uploadPlan{}, fmt.Errorf("destination %s is not a directory: %w", dk, ErrInvalidArgument)
		case err != nil && !errors.Is(err, ErrNotFound):
			return uploadPlan{}, err
		case err != nil:
			if err := fs.checkParents(ctx, dk); err != nil {
				return uploadPlan{}, err
			}
		}
	}

	obj, err := fs.driver.Stat(ctx, key)
	switch {
	case err == nil && (obj.Dir || !fs.overwrite):
		return uploadPlan{}, fmt.Errorf("%s: %w", key, ErrAlreadyExists)
	case err != nil && !errors.Is(err, ErrNotFound):
		return uploadPlan{}, err
	}

	return uploadPlan{file: f, key: key, size: info.Size(), suffix: suffix, replaces: err == nil}, nil
}

func (fs *FileSystem) write(ctx context.Context, plan uploadPlan) error {
	src, err := os.Open(plan.file.Path)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = src.Close()
	}()

	if plan.suffix == "" {
		cr := &countingReader{r: src}
		if err := fs.driver.Store(ctx, plan.key, cr); err != nil {
			return fmt.Errorf("failed to store %s: %w", plan.key, err)
		}
		metrics.AddBytes(string(fs.key), "upload", cr.n)
	} else if err := fs.storeCompressed(ctx, plan, src); err != nil {
		return err
	}

	sidecar := sidecarKey(plan.key)
	if plan.file.Metadata != nil {
		data, err := metadata.Marshal(*plan.file.Metadata)
		if err != nil {
			return err
		}
		if err := fs.driver.Store(ctx, sidecar, bytes.NewReader(data)); err != nil {
			return fs.rollback(ctx, plan, fmt.Errorf("failed to store metadata of %s: %w", plan.key, err))
		}
	} else if fs.overwrite {
		if err := fs.driver.Delete(ctx, sidecar); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to drop stale metadata of %s: %w", plan.key, err)
		}
	}

	fs.log.Debug("uploaded file",
		"backend", fs.key,
		"source", plan.file.Path,
		"key", plan.key,
		"size", plan.size,
		"metadata", plan.file.Metadata != nil,
	)
	return nil
}

// rollback removes a freshly stored artifact whose metadata could not be
// written, so the upload can be retried. A replaced artifact is kept since
// its previous content is already gone.
func (fs *FileSystem) rollback(ctx context.Context, plan uploadPlan, cause error) error {
	if plan.replaces {
		return fmt.Errorf("replaced %s without metadata: %w", plan.key, cause)
	}
	if err := fs.driver.Delete(ctx, plan.key); err != nil && !errors.Is(err, ErrNotFound) {
		fs.log.Warn("failed to roll back upload", "backend", fs.key, "key", plan.key, "error", err)
		return errors.Join(cause, fmt.Errorf("failed to remove %s: %w", plan.key, err))
	}
	return cause
}

// storeCompressed streams src through the archive codec into the driver
func (fs *FileSystem) storeCompressed(ctx context.Context, plan uploadPlan, src io.Reader) error {
	pr, pw := io.Pipe()
	errc := make(chan error, 1)
	go func() {
		err := archive.Write(pw, fs.format, filepath.Base(plan.file.Path), src, plan.size)
		_ = pw.CloseWithError(err)
		errc <- err
	}()

	cr := &countingReader{r: pr}
	storeErr := fs.driver.Store(ctx, plan.key, cr)
	_ = pr.Close()
	writeErr := <-errc

	if writeErr != nil && !errors.Is(writeErr, io.ErrClosedPipe) {
		return fmt.Errorf("failed to compress %s: %w", plan.file.Path, writeErr)
	}
	if storeErr != nil {
		return fmt.Errorf("failed to store %s: %w", plan.key, storeErr)
	}

	metrics.AddBytes(string(fs.key), "upload", cr.n)
	return nil
}

func (fs *FileSystem) download(ctx context.Context, p, localDir string) error {
	key, err := artifactKey(p)
	if err != nil {
		return err
	}
	if localDir == "" {
		return fmt.Errorf("empty local directory: %w", ErrInvalidArgument)
	}
	if err := fs.statFile(ctx, key); err != nil {
		return err
	}

	if err := os.MkdirAll(localDir, 0755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}

	target := filepath.Join(localDir, path.Base(key))
	if err := fs.fetch(ctx, key, target); err != nil {
		return err
	}

	fs.log.Debug("downloaded artifact", "backend", fs.key, "key", key, "destination", target)
	return nil
}

// fetch copies the artifact at key to the local file target through a
// temporary file in the same directory.
func (fs *FileSystem) fetch(ctx context.Context, key, target string) error {
	rc, err := fs.driver.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = rc.Close()
	}()

	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	n, err := io.Copy(tmp, rc)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to download %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move download into place: %w", err)
	}

	metrics.AddBytes(string(fs.key), "download", n)
	return nil
}

// statFile fails unless key names an existing artifact
func (fs *FileSystem) statFile(ctx context.Context, key string) error {
	obj, err := fs.driver.Stat(ctx, key)
	if err != nil {
		return err
	}
	if obj.Dir {
		return fmt.Errorf("%s is a directory: %w", key, ErrInvalidArgument)
	}
	return nil
}

// checkParents fails when an ancestor of key is an artifact
func (fs *FileSystem) checkParents(ctx context.Context, key string) error {
	for dir := path.Dir(key); dir != "." && dir != "/"; dir = path.Dir(dir) {
		obj, err := fs.driver.Stat(ctx, dir)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if !obj.Dir {
			return fmt.Errorf("%s is not a directory: %w", dir, ErrInvalidArgument)
		}
		return nil
	}
	return nil
}

// dirKey normalizes a backend directory path. "/" maps to the root key "".
func dirKey(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path: %w", ErrInvalidArgument)
	}
	key := strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if isReserved(key) {
		return "", fmt.Errorf("path %s uses reserved directory %s: %w", p, metaDir, ErrInvalidArgument)
	}
	return key, nil
}

// artifactKey normalizes a backend artifact path; the root is not an artifact
func artifactKey(p string) (string, error) {
	key, err := dirKey(p)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("path %q does not name an artifact: %w", p, ErrInvalidArgument)
	}
	return key, nil
}

func targetKey(src, dir, suffix string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("empty source path: %w", ErrInvalidArgument)
	}
	dk, err := dirKey(dir)
	if err != nil {
		return "", err
	}
	key := path.Join(dk, filepath.Base(src)+suffix)
	if isReserved(key) {
		return "", fmt.Errorf("%s uses reserved name %s: %w", src, metaDir, ErrInvalidArgument)
	}
	return key, nil
}

func sidecarKey(key string) string {
	return path.Join(path.Dir(key), metaDir, path.Base(key)+".json")
}

func isReserved(key string) bool {
	for _, segment := range strings.Split(key, "/") {
		if segment == metaDir {
			return true
		}
	}
	return false
}

var statusKinds = []struct {
	name string
	err  error
}{
	{"closed", ErrClosed},
	{"invalid_argument", ErrInvalidArgument},
	{"unsupported_type", ErrUnsupportedType},
	{"not_found", ErrNotFound},
	{"already_exists", ErrAlreadyExists},
}

func statusOf(err error) string {
	if err == nil {
		return "success"
	}
	for _, kind := range statusKinds {
		if errors.Is(err, kind.err) {
			return kind.name
		}
	}
	return "error"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
