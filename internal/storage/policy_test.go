package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionPolicy_DisallowAndAllow(t *testing.T) {
	p, err := NewExtensionPolicy()
	require.NoError(t, err)

	assert.False(t, p.IsDisallowed(".exe"))

	require.NoError(t, p.Disallow(".exe"))
	assert.True(t, p.IsDisallowed(".exe"))
	assert.True(t, p.IsDisallowed(".EXE"), "matching is case-insensitive")

	require.NoError(t, p.Allow(".Exe"))
	assert.False(t, p.IsDisallowed(".exe"))
}

func TestExtensionPolicy_DisallowTwice(t *testing.T) {
	p, err := NewExtensionPolicy(".bat")
	require.NoError(t, err)

	err = p.Disallow(".BAT")
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, []string{".bat"}, p.Excluded())
}

func TestExtensionPolicy_AllowNotExcluded(t *testing.T) {
	p, err := NewExtensionPolicy()
	require.NoError(t, err)

	err = p.Allow(".txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtensionPolicy_RejectsMalformed(t *testing.T) {
	p, err := NewExtensionPolicy()
	require.NoError(t, err)

	for _, ext := range []string{"", ".", "exe", ".tar.gz", "./x", `.a\b`} {
		t.Run(ext, func(t *testing.T) {
			assert.ErrorIs(t, p.Disallow(ext), ErrInvalidArgument)
			assert.ErrorIs(t, p.Allow(ext), ErrInvalidArgument)
			assert.False(t, p.IsDisallowed(ext))
		})
	}

	_, err = NewExtensionPolicy(".ok", "bad")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestExtensionPolicy_ZeroValueUsable(t *testing.T) {
	var p ExtensionPolicy

	assert.False(t, p.IsDisallowed(".sh"))
	require.NoError(t, p.Disallow(".sh"))
	assert.True(t, p.IsDisallowed(".sh"))
}

func TestExtensionPolicy_ExcludedSorted(t *testing.T) {
	p, err := NewExtensionPolicy(".zip", ".exe", ".bat")
	require.NoError(t, err)

	assert.Equal(t, []string{".bat", ".exe", ".zip"}, p.Excluded())
}

func TestExt(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"report.pdf", ".pdf"},
		{"archive.tar.gz", ".gz"},
		{"dir/sub/photo.JPG", ".JPG"},
		{`C:\Users\me\notes.txt`, ".txt"},
		{"Makefile", ""},
		{".bashrc", ".bashrc"},
		{"dir.d/plain", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Ext(tt.name))
		})
	}
}
