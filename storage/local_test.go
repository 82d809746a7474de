package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vincentschut/tiledb/errs"
)

func TestLocalBackend(t *testing.T) {
	backend := NewLocal()
	dir := t.TempDir()

	t.Run("WriteReadExists", func(t *testing.T) {
		p := filepath.Join(dir, "file.bin")
		require.NoError(t, backend.Write(p, []byte("hello")))

		exists, err := backend.Exists(p)
		require.NoError(t, err)
		require.True(t, exists)

		data, err := backend.Read(p)
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), data)

		// Write truncates.
		require.NoError(t, backend.Write(p, []byte("x")))
		data, err = backend.Read(p)
		require.NoError(t, err)
		require.Equal(t, []byte("x"), data)
	})

	t.Run("Append", func(t *testing.T) {
		p := filepath.Join(dir, "append.bin")
		require.NoError(t, backend.Append(p, []byte("ab")))
		require.NoError(t, backend.Append(p, []byte("cd")))
		data, err := backend.Read(p)
		require.NoError(t, err)
		require.Equal(t, []byte("abcd"), data)
	})

	t.Run("ReadMissing", func(t *testing.T) {
		_, err := backend.Read(filepath.Join(dir, "missing"))
		require.ErrorIs(t, err, ErrNotExist)
	})

	t.Run("MkdirAllAndList", func(t *testing.T) {
		sub := filepath.Join(dir, "a", "b")
		require.NoError(t, backend.MkdirAll(sub))
		require.NoError(t, backend.Write(filepath.Join(sub, "f1"), nil))
		require.NoError(t, backend.Write(filepath.Join(sub, "f2"), nil))

		names, err := backend.List(sub)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"f1", "f2"}, names)

		_, err = backend.List(filepath.Join(dir, "nodir"))
		require.ErrorIs(t, err, ErrNotExist)
	})

	t.Run("Rename", func(t *testing.T) {
		oldDir := filepath.Join(dir, "frag_old")
		require.NoError(t, backend.MkdirAll(oldDir))
		require.NoError(t, backend.Write(filepath.Join(oldDir, "data"), []byte("d")))

		newDir := filepath.Join(dir, "frag_new")
		require.NoError(t, backend.Rename(oldDir, newDir))

		exists, err := backend.Exists(oldDir)
		require.NoError(t, err)
		require.False(t, exists)
		data, err := backend.Read(filepath.Join(newDir, "data"))
		require.NoError(t, err)
		require.Equal(t, []byte("d"), data)
	})

	t.Run("RemoveAll", func(t *testing.T) {
		sub := filepath.Join(dir, "gone")
		require.NoError(t, backend.MkdirAll(sub))
		require.NoError(t, backend.Write(filepath.Join(sub, "f"), nil))
		require.NoError(t, backend.RemoveAll(sub))
		exists, err := backend.Exists(sub)
		require.NoError(t, err)
		require.False(t, exists)

		// Removing a missing tree is not an error.
		require.NoError(t, backend.RemoveAll(sub))
	})

	t.Run("SyncAndSyncDir", func(t *testing.T) {
		p := filepath.Join(dir, "synced")
		require.NoError(t, backend.Write(p, []byte("s")))
		require.NoError(t, backend.Sync(p))
		require.NoError(t, backend.SyncDir(dir))
	})

	t.Run("WrapErrTagsStorage", func(t *testing.T) {
		err := backend.Remove(filepath.Join(dir, "missing"))
		require.ErrorIs(t, err, errs.ErrStorage)
	})
}
