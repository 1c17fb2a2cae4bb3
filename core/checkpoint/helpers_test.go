package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/core/checkpoint"
)

// faultyFs injects errors for selected paths on top of a real filesystem.
type faultyFs struct {
	afero.Fs
	openErr   map[string]error
	renameErr map[string]error
}

func newFaultyFs() *faultyFs {
	return &faultyFs{
		Fs:        afero.NewOsFs(),
		openErr:   map[string]error{},
		renameErr: map[string]error{},
	}
}

func (f *faultyFs) Open(name string) (afero.File, error) {
	if err, ok := f.openErr[filepath.Clean(name)]; ok {
		return nil, err
	}
	return f.Fs.Open(name)
}

func (f *faultyFs) Rename(oldname, newname string) error {
	if err, ok := f.renameErr[filepath.Clean(newname)]; ok {
		return err
	}
	return f.Fs.Rename(oldname, newname)
}

type env struct {
	fs      afero.Fs
	workDir string
	crtDir  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		fs:      afero.NewOsFs(),
		workDir: filepath.Join(root, "work"),
		crtDir:  filepath.Join(root, "crt"),
	}
	require.NoError(t, os.MkdirAll(e.crtDir, 0o755))
	return e
}

func (e *env) store(t *testing.T, opts ...checkpoint.Option) *checkpoint.Store {
	t.Helper()
	s, err := checkpoint.NewStore(e.fs, e.workDir, opts...)
	require.NoError(t, err)
	return s
}

func (e *env) path(name string) string {
	return filepath.Join(e.crtDir, name)
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o640))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func historyIDs(t *testing.T, s *checkpoint.Store) []string {
	t.Helper()
	var ids []string
	for cp, err := range s.ListHistory() {
		require.NoError(t, err)
		ids = append(ids, cp.ID)
	}
	return ids
}
