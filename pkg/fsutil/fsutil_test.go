package fsutil_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/pkg/fsutil"
)

type failingRenameFs struct {
	afero.Fs
	err error
}

func (f *failingRenameFs) Rename(string, string) error {
	return f.err
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	t.Run("creates parents and sets mode", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "a.pem")
		require.NoError(t, fsutil.WriteFileAtomic(afero.NewOsFs(), path, []byte("data"), 0o600))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("replaces existing content", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "a.pem")
		require.NoError(t, os.WriteFile(path, []byte("old content"), 0o644))
		require.NoError(t, fsutil.WriteFileAtomic(afero.NewOsFs(), path, []byte("new"), 0o640))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
	})

	t.Run("failed rename leaves target and no temp files", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		path := filepath.Join(dir, "a.pem")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

		renameErr := errors.New("rename failed")
		err := fsutil.WriteFileAtomic(&failingRenameFs{Fs: afero.NewOsFs(), err: renameErr}, path, []byte("new"), 0o600)
		require.ErrorIs(t, err, renameErr)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "old", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}
