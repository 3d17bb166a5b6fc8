package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1024:            "1.0 KiB",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}

	for in, expected := range tests {
		assert.Equal(t, expected, formatSize(in))
	}
}

func TestUploadAndDownload(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello cli"), 0644))

	pool := []string{"--storage", "files.type=local", "--storage", "files.path=" + root}

	rootCmd.SetArgs(append(pool, "upload", src, "--dir", "/greetings", "--metadata"))
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(filepath.Join(root, "greetings", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello cli", string(data))
	assert.FileExists(t, filepath.Join(root, "greetings", ".meta", "hello.txt.json"))

	out := t.TempDir()
	rootCmd.SetArgs(append(pool, "download", "greetings/hello.txt", "--to", out))
	require.NoError(t, rootCmd.Execute())

	data, err = os.ReadFile(filepath.Join(out, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello cli", string(data))
}
