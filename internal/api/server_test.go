package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/shyim/filestore/internal/storage"
	"github.com/shyim/filestore/internal/storages/memory"
)

type testPools map[string]storage.Backend

func (p testPools) Get(name string) (storage.Backend, error) {
	b, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("storage pool %q: %w", name, storage.ErrNotFound)
	}
	return b, nil
}

func (p testPools) List() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	return names
}

func newTestServer(t *testing.T, opts Options) (*Server, *storage.FileSystem) {
	t.Helper()

	fs := storage.New(storage.NewKey("memory", "files"), memory.New(0), storage.WithTempDir(t.TempDir()))
	require.NoError(t, fs.Initialize(context.Background()))
	t.Cleanup(func() {
		_ = fs.Terminate(context.Background())
	})

	opts.TempDir = t.TempDir()
	return NewServer(testPools{"files": fs}, opts), fs
}

func do(t *testing.T, s *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListPools(t *testing.T) {
	s, fs := newTestServer(t, Options{})
	require.NoError(t, fs.ExcludeExtension(".exe"))

	rec := do(t, s, http.MethodGet, "/pools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PoolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Pools, 1)
	assert.Equal(t, PoolInfo{Name: "files", Key: "memory/files", Type: "memory", State: "open", Excluded: []string{".exe"}}, resp.Pools[0])
}

func TestUploadDownloadDelete(t *testing.T) {
	s, fs := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPut, "/pools/files/files/docs/readme.txt?version=2&description=intro", strings.NewReader("hello api"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	md, err := fs.Metadata(context.Background(), "docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "readme.txt", md.FileName())
	assert.Equal(t, "2", md.Version())
	assert.Equal(t, "intro", md.Description())

	rec = do(t, s, http.MethodGet, "/pools/files/files/docs/readme.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello api", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "readme.txt")

	rec = do(t, s, http.MethodGet, "/pools/files/meta/docs/readme.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var meta MetadataResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Contains(t, string(meta.Metadata), `"version":"2"`)

	rec = do(t, s, http.MethodDelete, "/pools/files/files/docs/readme.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/pools/files/files/docs/readme.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadCompressed(t *testing.T) {
	s, fs := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPut, "/pools/files/files/logs/app.log?compress=true", strings.NewReader("line\n"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	found, err := fs.FindByName(context.Background(), "app.log.zip")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "logs/app.log.zip", found[0].Key)
}

func TestUploadErrors(t *testing.T) {
	s, fs := newTestServer(t, Options{})
	require.NoError(t, fs.ExcludeExtension(".exe"))

	rec := do(t, s, http.MethodPut, "/pools/files/files/tool.exe", strings.NewReader("MZ"))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = do(t, s, http.MethodPut, "/pools/files/files/a.txt", strings.NewReader("a"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, s, http.MethodPut, "/pools/files/files/a.txt", strings.NewReader("b"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPut, "/pools/other/files/a.txt", strings.NewReader("a"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFind(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	for _, p := range []string{"a/report.pdf", "b/report.pdf", "notes.txt"} {
		rec := do(t, s, http.MethodPut, "/pools/files/files/"+p, strings.NewReader(p))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	find := func(query string) []string {
		rec := do(t, s, http.MethodGet, "/pools/files/files"+query, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp FindResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		paths := make([]string, 0, len(resp.Files))
		for _, f := range resp.Files {
			paths = append(paths, f.Path)
		}
		return paths
	}

	assert.Equal(t, []string{"a/report.pdf", "b/report.pdf", "notes.txt"}, find(""))
	assert.Equal(t, []string{"a/report.pdf", "b/report.pdf"}, find("?name=report.pdf"))
	assert.Equal(t, []string{"notes.txt"}, find("?ext=.txt"))

	rec := do(t, s, http.MethodGet, "/pools/files/files?name=a&ext=.txt", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMakeDir(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodPost, "/pools/files/dirs/archive/2024", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, s, http.MethodPut, "/pools/files/files/archive/2024/a.txt", strings.NewReader("a"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestClosedPool(t *testing.T) {
	s, fs := newTestServer(t, Options{})
	require.NoError(t, fs.Terminate(context.Background()))

	rec := do(t, s, http.MethodGet, "/pools/files/files", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	creds, err := ParseCredentials(strings.NewReader("admin:" + string(hash)))
	require.NoError(t, err)

	s, _ := newTestServer(t, Options{Auth: creds})

	rec := do(t, s, http.MethodGet, "/pools", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="filestore"`, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/pools", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "health checks stay public")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{storage.ErrClosed, http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", storage.ErrInvalidArgument), http.StatusBadRequest},
		{storage.ErrUnsupportedType, http.StatusUnsupportedMediaType},
		{&storage.FileError{Op: "upload", Path: "a", Err: storage.ErrNotFound}, http.StatusNotFound},
		{storage.ErrAlreadyExists, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, statusFor(tt.err), tt.err.Error())
	}
}

func TestCleanParam(t *testing.T) {
	assert.Equal(t, "a/b.txt", cleanParam("/a/b.txt"))
	assert.Equal(t, "b.txt", cleanParam("/../../b.txt"))
	assert.Equal(t, "", cleanParam("/"))
}

func TestNewServer_DefaultsToSocket(t *testing.T) {
	s := NewServer(testPools{}, Options{})
	assert.Equal(t, DefaultSocketPath, s.SocketPath())
}

func TestNewHTTPServer_LeavesBodyUnbounded(t *testing.T) {
	s, _ := newTestServer(t, Options{Addr: "127.0.0.1:0"})

	server := s.newHTTPServer()
	assert.Equal(t, 30*time.Second, server.ReadHeaderTimeout)
	assert.Zero(t, server.ReadTimeout)
	assert.Zero(t, server.WriteTimeout)
}

func TestStart_AfterShutdown(t *testing.T) {
	s, _ := newTestServer(t, Options{Addr: "127.0.0.1:0"})

	require.NoError(t, s.Shutdown(context.Background()))
	assert.ErrorIs(t, s.Start(), http.ErrServerClosed)
}

func TestShutdown_WhileStarting(t *testing.T) {
	s, _ := newTestServer(t, Options{Addr: "127.0.0.1:0"})

	errc := make(chan error, 1)
	go func() {
		errc <- s.Start()
	}()

	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
