package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "filestore.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, os.TempDir(), cfg.TempDir)
	assert.Empty(t, cfg.StoragePools)
}

func TestParseStoragePools_Args(t *testing.T) {
	cfg := New()
	cfg.StorageArgs = []string{
		"local.type=local",
		"local.path=/srv/files",
		"local.exclude=.exe,.bat",
	}

	require.NoError(t, cfg.ParseStoragePools())
	require.Contains(t, cfg.StoragePools, "local")

	pool := cfg.StoragePools["local"]
	assert.Equal(t, "local", pool.Name)
	assert.Equal(t, "local", pool.Type)
	assert.Equal(t, map[string]string{"path": "/srv/files", "exclude": ".exe,.bat"}, pool.Options)
	assert.Equal(t, "local", cfg.DefaultStorage, "a single pool becomes the default")
}

func TestParseStoragePools_InvalidArgs(t *testing.T) {
	for _, arg := range []string{"noequals", "nodot=value", ".type=local", "pool.=x"} {
		t.Run(arg, func(t *testing.T) {
			cfg := New()
			cfg.StorageArgs = []string{arg}
			assert.Error(t, cfg.ParseStoragePools())
		})
	}
}

func TestParseStoragePools_MissingType(t *testing.T) {
	cfg := New()
	cfg.StorageArgs = []string{"local.path=/srv/files"}

	err := cfg.ParseStoragePools()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required 'type' option")
}

func TestParseStoragePools_EnvVars(t *testing.T) {
	t.Setenv("FILESTORE_STORAGE_ARCHIVE_TYPE", "s3")
	t.Setenv("FILESTORE_STORAGE_ARCHIVE_BUCKET", "backups")
	t.Setenv("FILESTORE_STORAGE_ARCHIVE_ACCESS_KEY", "AKIA")
	t.Setenv("FILESTORE_STORAGE_BROKEN", "ignored")

	cfg := New()
	require.NoError(t, cfg.ParseStoragePools())

	pool := cfg.StoragePools["archive"]
	require.NotNil(t, pool)
	assert.Equal(t, "s3", pool.Type)
	assert.Equal(t, "backups", pool.Options["bucket"])
	assert.Equal(t, "AKIA", pool.Options["access-key"])
	assert.Len(t, cfg.StoragePools, 1)
}

func TestParseStoragePools_ArgsOverrideEnv(t *testing.T) {
	t.Setenv("FILESTORE_STORAGE_LOCAL_TYPE", "local")
	t.Setenv("FILESTORE_STORAGE_LOCAL_PATH", "/from/env")

	cfg := New()
	cfg.StorageArgs = []string{"local.path=/from/args"}
	require.NoError(t, cfg.ParseStoragePools())

	assert.Equal(t, "/from/args", cfg.StoragePools["local"].Options["path"])
}

func TestParseStoragePools_DefaultFromEnv(t *testing.T) {
	t.Setenv("FILESTORE_DEFAULT_STORAGE", "b")

	cfg := New()
	cfg.StorageArgs = []string{"a.type=memory", "b.type=memory"}
	require.NoError(t, cfg.ParseStoragePools())

	assert.Equal(t, "b", cfg.DefaultStorage)
}

func TestParseStoragePools_UnknownDefault(t *testing.T) {
	cfg := New()
	cfg.DefaultStorage = "nope"
	cfg.StorageArgs = []string{"a.type=memory"}

	err := cfg.ParseStoragePools()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `default storage pool "nope" does not exist`)
}

func TestParseStoragePools_NoPools(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.ParseStoragePools())

	assert.Empty(t, cfg.StoragePools)
	assert.Empty(t, cfg.DefaultStorage)
}

func TestLoadFile(t *testing.T) {
	p := writeConfig(t, `
default_storage: files
temp_dir: /var/tmp/filestore
log_level: debug
log_format: json
storage:
  files:
    type: local
    options:
      path: /srv/files
      overwrite: "true"
  Scratch:
    type: memory
`)

	cfg := New()
	require.NoError(t, cfg.LoadFile(p))

	assert.Equal(t, "files", cfg.DefaultStorage)
	assert.Equal(t, "/var/tmp/filestore", cfg.TempDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	require.Contains(t, cfg.StoragePools, "files")
	assert.Equal(t, "local", cfg.StoragePools["files"].Type)
	assert.Equal(t, "/srv/files", cfg.StoragePools["files"].Options["path"])
	assert.Equal(t, "true", cfg.StoragePools["files"].Options["overwrite"])

	require.Contains(t, cfg.StoragePools, "scratch", "pool names are lower-cased like env pools")
	assert.Equal(t, "memory", cfg.StoragePools["scratch"].Type)
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := New()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))

	p := writeConfig(t, "storage: [not, a, map]")
	assert.Error(t, cfg.LoadFile(p))
}

func TestParseStoragePools_Precedence(t *testing.T) {
	p := writeConfig(t, `
storage:
  files:
    type: local
    options:
      path: /from/file
      exclude: .exe
`)
	t.Setenv("FILESTORE_STORAGE_FILES_PATH", "/from/env")

	cfg := New()
	cfg.ConfigFile = p
	cfg.StorageArgs = []string{"files.exclude=.bat"}
	require.NoError(t, cfg.ParseStoragePools())

	pool := cfg.StoragePools["files"]
	assert.Equal(t, "local", pool.Type, "file values survive when nothing overrides them")
	assert.Equal(t, "/from/env", pool.Options["path"], "env overrides file")
	assert.Equal(t, ".bat", pool.Options["exclude"], "args override file")
	assert.Equal(t, "files", cfg.DefaultStorage)
}

func TestLoadFile_KeepsPresetDefault(t *testing.T) {
	p := writeConfig(t, `
default_storage: files
storage:
  files:
    type: memory
  scratch:
    type: memory
`)

	cfg := New()
	cfg.DefaultStorage = "scratch"
	cfg.ConfigFile = p
	require.NoError(t, cfg.ParseStoragePools())

	assert.Equal(t, "scratch", cfg.DefaultStorage)
}
