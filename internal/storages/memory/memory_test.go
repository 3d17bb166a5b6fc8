package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shyim/filestore/internal/storage"
	"github.com/shyim/filestore/internal/storage/storagetest"
)

func TestMemoryStorage_Conformance(t *testing.T) {
	storagetest.RunDriverTests(t, func(t *testing.T) storage.Driver {
		return New(0)
	})
}

func TestMemoryStorageType_Create(t *testing.T) {
	st := &MemoryStorageType{}
	assert.Equal(t, "memory", st.Name())

	d, err := st.Create("mem", map[string]string{"max-size": "1024"})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), d.(*MemoryStorage).maxSize)

	_, err = st.Create("mem", map[string]string{"max-size": "lots"})
	assert.Error(t, err)

	_, err = st.Create("mem", map[string]string{"max-size": "-1"})
	assert.Error(t, err)
}

func TestMemoryStorage_Quota(t *testing.T) {
	m := New(10)
	ctx := context.Background()

	require.NoError(t, m.Store(ctx, "a", strings.NewReader("12345")))
	require.NoError(t, m.Store(ctx, "b", strings.NewReader("12345")))

	err := m.Store(ctx, "c", strings.NewReader("1"))
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// replacing an object only counts the difference
	require.NoError(t, m.Store(ctx, "a", strings.NewReader("123")))
	assert.Equal(t, int64(8), m.Size())

	require.NoError(t, m.Delete(ctx, "b"))
	assert.Equal(t, int64(3), m.Size())
}

func TestMemoryStorage_StoreOverDirectory(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	require.NoError(t, m.MakeDir(ctx, "docs"))

	err := m.Store(ctx, "docs", strings.NewReader("x"))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestMemoryStorage_MakeDirBelowFile(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	require.NoError(t, m.Store(ctx, "file.txt", strings.NewReader("x")))

	err := m.MakeDir(ctx, "file.txt/sub")
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestMemoryStorage_CloseDropsContents(t *testing.T) {
	m := New(0)
	ctx := context.Background()

	require.NoError(t, m.Store(ctx, "a.txt", strings.NewReader("x")))
	require.NoError(t, m.Close())

	_, err := m.Stat(ctx, "a.txt")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, m.Size())
}
