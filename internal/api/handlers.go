package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shyim/filestore/internal/metadata"
	"github.com/shyim/filestore/internal/storage"
)

// Response is the envelope of every mutating request
type Response struct {
	Success bool   `json:"success"`
	Pool    string `json:"pool,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PoolInfo describes one configured pool
type PoolInfo struct {
	Name     string   `json:"name"`
	Key      string   `json:"key"`
	Type     string   `json:"type"`
	State    string   `json:"state"`
	Excluded []string `json:"excluded,omitempty"`
}

// PoolsResponse is the response for a pool list request
type PoolsResponse struct {
	Success bool       `json:"success"`
	Pools   []PoolInfo `json:"pools"`
}

// FileInfo describes a stored artifact
type FileInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// FindResponse is the response for a search request
type FindResponse struct {
	Success bool       `json:"success"`
	Pool    string     `json:"pool"`
	Files   []FileInfo `json:"files"`
	Error   string     `json:"error,omitempty"`
}

// MetadataResponse carries the metadata record of an artifact
type MetadataResponse struct {
	Success  bool            `json:"success"`
	Pool     string          `json:"pool"`
	Path     string          `json:"path"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type excludedLister interface {
	ExcludedExtensions() []string
}

// handlePools lists all pools
// GET /pools
func (s *Server) handlePools(c *gin.Context) {
	names := s.pools.List()
	infos := make([]PoolInfo, 0, len(names))
	for _, name := range names {
		backend, err := s.pools.Get(name)
		if err != nil {
			continue
		}

		info := PoolInfo{
			Name:  name,
			Key:   backend.Key().String(),
			Type:  backend.Key().Type(),
			State: backend.State().String(),
		}
		if l, ok := backend.(excludedLister); ok {
			info.Excluded = l.ExcludedExtensions()
		}
		infos = append(infos, info)
	}

	c.JSON(http.StatusOK, PoolsResponse{Success: true, Pools: infos})
}

// handleFind searches a pool by exact name or extension
// GET /pools/{pool}/files?name={name}&ext={ext}
func (s *Server) handleFind(c *gin.Context) {
	pool := c.Param("pool")
	backend, ok := s.backend(c)
	if !ok {
		return
	}

	name, ext := c.Query("name"), c.Query("ext")
	if name != "" && ext != "" {
		c.JSON(http.StatusBadRequest, FindResponse{
			Pool:  pool,
			Files: []FileInfo{},
			Error: "name and ext cannot be combined",
		})
		return
	}

	var (
		objects []storage.Object
		err     error
	)
	switch {
	case name != "":
		objects, err = backend.FindByName(c.Request.Context(), name)
	case ext != "":
		objects, err = backend.FindByExtension(c.Request.Context(), ext)
	default:
		objects, err = backend.FindAll(c.Request.Context())
	}
	if err != nil {
		c.JSON(statusFor(err), FindResponse{Pool: pool, Files: []FileInfo{}, Error: err.Error()})
		return
	}

	files := make([]FileInfo, 0, len(objects))
	for _, obj := range objects {
		files = append(files, FileInfo{Path: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}

	c.JSON(http.StatusOK, FindResponse{Success: true, Pool: pool, Files: files})
}

// handleUpload stores the request body as an artifact. Metadata is recorded
// from the sniffed content plus the optional version and description query
// parameters; compress=true stores the body as an archive.
// PUT /pools/{pool}/files/{path...}
func (s *Server) handleUpload(c *gin.Context) {
	pool := c.Param("pool")
	backend, ok := s.backend(c)
	if !ok {
		return
	}

	key := cleanParam(c.Param("path"))
	if key == "" {
		s.fail(c, pool, key, http.StatusBadRequest, errors.New("file path is required"))
		return
	}

	compress, _ := strconv.ParseBool(c.Query("compress"))

	staging, err := os.MkdirTemp(s.opts.TempDir, "upload-")
	if err != nil {
		s.fail(c, pool, key, http.StatusInternalServerError, err)
		return
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	local := filepath.Join(staging, path.Base(key))
	if err := writeBody(local, c.Request.Body); err != nil {
		s.fail(c, pool, key, http.StatusInternalServerError, err)
		return
	}

	builder, err := metadata.FromFile(local)
	if err != nil {
		s.fail(c, pool, key, http.StatusInternalServerError, err)
		return
	}
	md := builder.
		Version(c.Query("version")).
		Description(c.Query("description")).
		SaveDate(time.Now()).
		Build()

	dir := "/" + path.Dir(key)
	if compress {
		err = backend.UploadCompressed(c.Request.Context(), local, dir, &md)
	} else {
		err = backend.UploadWithMetadata(c.Request.Context(), local, dir, &md)
	}
	if err != nil {
		s.fail(c, pool, key, statusFor(err), err)
		return
	}

	slog.Info("file uploaded via API", "pool", pool, "path", key, "compressed", compress)
	c.JSON(http.StatusCreated, Response{Success: true, Pool: pool, Path: key, Message: "file uploaded"})
}

// handleDownload streams an artifact
// GET /pools/{pool}/files/{path...}
func (s *Server) handleDownload(c *gin.Context) {
	pool := c.Param("pool")
	backend, ok := s.backend(c)
	if !ok {
		return
	}

	key := cleanParam(c.Param("path"))

	staging, err := os.MkdirTemp(s.opts.TempDir, "download-")
	if err != nil {
		s.fail(c, pool, key, http.StatusInternalServerError, err)
		return
	}
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	if err := backend.Download(c.Request.Context(), key, staging); err != nil {
		s.fail(c, pool, key, statusFor(err), err)
		return
	}

	name := path.Base(key)
	c.FileAttachment(filepath.Join(staging, name), name)
}

// handleDelete removes an artifact
// DELETE /pools/{pool}/files/{path...}
func (s *Server) handleDelete(c *gin.Context) {
	pool := c.Param("pool")
	backend, ok := s.backend(c)
	if !ok {
		return
	}

	key := cleanParam(c.Param("path"))
	if err := backend.Delete(c.Request.Context(), key); err != nil {
		s.fail(c, pool, key, statusFor(err), err)
		return
	}

	slog.Info("file deleted via API", "pool", pool, "path", key)
	c.JSON(http.StatusOK, Response{Success: true, Pool: pool, Path: key, Message: "file deleted"})
}

// handleMetadata returns the metadata stored with an artifact
// GET /pools/{pool}/meta/{path...}
func (s *Server) handleMetadata(c *gin.Context) {
	pool := c.Param("pool")
	backend, ok := s.backend(c)
	if !ok {
		return
	}

	key := cleanParam(c.Param("path"))
	md, err := backend.Metadata(c.Request.Context(), key)
	if err != nil {
		c.JSON(statusFor(err), MetadataResponse{Pool: pool, Path: key, Error: err.Error()})
		return
	}

	data, err := metadata.Marshal(md)
	if err != nil {
		c.JSON(http.StatusInternalServerError, MetadataResponse{Pool: pool, Path: key, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, MetadataResponse{Success: true, Pool: pool, Path: key, Metadata: data})
}

// handleMakeDir creates an empty directory
// POST /pools/{pool}/dirs/{path...}
func (s *Server) handleMakeDir(c *gin.Context) {
	pool := c.Param("pool")
	backend, ok := s.backend(c)
	if !ok {
		return
	}

	key := cleanParam(c.Param("path"))
	if err := backend.CreateDirectory(c.Request.Context(), "/"+key); err != nil {
		s.fail(c, pool, key, statusFor(err), err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Pool: pool, Path: key, Message: "directory created"})
}

// backend resolves the pool named in the route or writes a 404
func (s *Server) backend(c *gin.Context) (storage.Backend, bool) {
	pool := c.Param("pool")
	backend, err := s.pools.Get(pool)
	if err != nil {
		s.fail(c, pool, "", http.StatusNotFound, err)
		return nil, false
	}
	return backend, true
}

func (s *Server) fail(c *gin.Context, pool, key string, status int, err error) {
	if status >= http.StatusInternalServerError {
		slog.Error("API request failed", "pool", pool, "path", key, "error", err)
	}
	c.JSON(status, Response{Pool: pool, Path: key, Error: err.Error()})
}

// statusFor maps storage error kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// cleanParam turns a wildcard route parameter into a relative path that
// cannot climb above the root.
func cleanParam(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

func writeBody(target string, body io.Reader) error {
	f, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := f.ReadFrom(body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
