// Package storagetest provides a conformance suite every storage.Driver must
// pass.
package storagetest

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shyim/filestore/internal/storage"
)

// RunDriverTests exercises newDriver against the Driver contract. newDriver
// must return an empty driver for every call; drivers implementing
// storage.Opener are opened before use and closed afterwards.
func RunDriverTests(t *testing.T, newDriver func(t *testing.T) storage.Driver) {
	open := func(t *testing.T) storage.Driver {
		d := newDriver(t)
		if opener, ok := d.(storage.Opener); ok {
			require.NoError(t, opener.Open(context.Background()))
		}
		t.Cleanup(func() {
			_ = d.Close()
		})
		return d
	}

	t.Run("StoreAndGet", func(t *testing.T) {
		d := open(t)
		ctx := context.Background()

		require.NoError(t, d.Store(ctx, "docs/report.txt", strings.NewReader("quarterly numbers")))
		assert.Equal(t, "quarterly numbers", read(t, d, "docs/report.txt"))
	})

	t.Run("StoreReplaces", func(t *testing.T) {
		d := open(t)
		ctx := context.Background()

		require.NoError(t, d.Store(ctx, "a.txt", strings.NewReader("first")))
		require.NoError(t, d.Store(ctx, "a.txt", strings.NewReader("second")))
		assert.Equal(t, "second", read(t, d, "a.txt"))
	})

	t.Run("GetMissing", func(t *testing.T) {
		d := open(t)

		_, err := d.Get(context.Background(), "missing.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("StatFile", func(t *testing.T) {
		d := open(t)
		ctx := context.Background()

		require.NoError(t, d.Store(ctx, "dir/data.bin", strings.NewReader("12345")))

		obj, err := d.Stat(ctx, "dir/data.bin")
		require.NoError(t, err)
		assert.False(t, obj.Dir)
		assert.Equal(t, int64(5), obj.Size)
		assert.False(t, obj.LastModified.IsZero())
	})

	t.Run("StatImplicitDirectory", func(t *testing.T) {
		d := open(t)
		ctx := context.Background()

		require.NoError(t, d.Store(ctx, "dir/nested/data.bin", strings.NewReader("x")))

		obj, err := d.Stat(ctx, "dir")
		require.NoError(t, err)
		assert.True(t, obj.Dir)
	})

	t.Run("StatMissing", func(t *testing.T) {
		d := open(t)

		_, err := d.Stat(context.Background(), "nothing/here")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("MakeDir", func(t *testing.T) {
		d := open(t)
		ctx := context.Background()

		require.NoError(t, d.MakeDir(ctx, "empty/child"))

		obj, err := d.Stat(ctx, "empty/child")
		require.NoError(t, err)
		assert.True(t, obj.Dir)

		obj, err = d.Stat(ctx, "empty")
		require.NoError(t, err)
		assert.True(t, obj.Dir)

		files, err := d.List(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, files, "directories must not be listed")
	})

	t.Run("ListSortedWithPrefix", func(t *testing.T) {
		d := open(t)
		ctx := context.Background()

		for _, key := range []string{"b/2.txt", "a/1.txt", "b/1.txt", "c.txt"} {
			require.NoError(t, d.Store(ctx, key, strings.NewReader(key)))
		}

		all, err := d.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/1.txt", "b/1.txt", "b/2.txt", "c.txt"}, keys(all))

		some, err := d.List(ctx, "b/")
		require.NoError(t, err)
		assert.Equal(t, []string{"b/1.txt", "b/2.txt"}, keys(some))

		none, err := d.List(ctx, "zzz")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Delete", func(t *testing.T) {
		d := open(t)
		ctx := context.Background()

		require.NoError(t, d.Store(ctx, "gone.txt", strings.NewReader("bye")))
		require.NoError(t, d.Delete(ctx, "gone.txt"))

		_, err := d.Stat(ctx, "gone.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		d := open(t)

		err := d.Delete(context.Background(), "never-stored.txt")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func read(t *testing.T, d storage.Driver, key string) string {
	t.Helper()

	rc, err := d.Get(context.Background(), key)
	require.NoError(t, err)
	defer func() {
		_ = rc.Close()
	}()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func keys(objects []storage.Object) []string {
	out := make([]string, 0, len(objects))
	for _, obj := range objects {
		out = append(out, obj.Key)
	}
	return out
}
