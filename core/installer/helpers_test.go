package installer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/core/checkpoint"
	"github.com/dmitrymomot/lehaproxy/core/installer"
	"github.com/dmitrymomot/lehaproxy/core/reverter"
	"github.com/dmitrymomot/lehaproxy/pkg/bundle/bundletest"
)

const testCA = "Test Issuing CA"

type faultyFs struct {
	afero.Fs
	openErr   map[string]error
	renameErr map[string]error
}

func newFaultyFs() *faultyFs {
	return &faultyFs{Fs: afero.NewOsFs(), openErr: map[string]error{}, renameErr: map[string]error{}}
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

type fakeController struct {
	configErr  error
	restartErr error
	versionErr error
	managerErr error
	calls      []string
}

func (f *fakeController) ConfigTest(context.Context) error {
	f.calls = append(f.calls, "configtest")
	return f.configErr
}

func (f *fakeController) Restart(context.Context) error {
	f.calls = append(f.calls, "restart")
	return f.restartErr
}

func (f *fakeController) CheckVersion(context.Context) error {
	f.calls = append(f.calls, "version")
	return f.versionErr
}

func (f *fakeController) ServiceManagerExists() error {
	f.calls = append(f.calls, "manager")
	return f.managerErr
}

type harness struct {
	fs      afero.Fs
	workDir string
	crtDir  string
	cfg     installer.Config
	ca      *bundletest.CA
	ctrl    *fakeController
	rev     *reverter.Reverter
	inst    *installer.Installer
}

type harnessOption func(*harness)

func withFs(fs afero.Fs) harnessOption {
	return func(h *harness) { h.fs = fs }
}

func withConfig(fn func(*installer.Config)) harnessOption {
	return func(h *harness) { fn(&h.cfg) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		fs:      afero.NewOsFs(),
		workDir: filepath.Join(root, "work"),
		crtDir:  filepath.Join(root, "crt"),
		ca:      bundletest.NewCA(t, testCA),
		ctrl:    &fakeController{},
	}
	h.cfg = installer.Config{
		CrtDir:       h.crtDir,
		CrtSuffix:    ".pem",
		CACommonName: testCA,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.open(t)
	return h
}

// open builds a fresh reverter and installer over the same directories, the
// way a new process would.
func (h *harness) open(t *testing.T) {
	t.Helper()
	store, err := checkpoint.NewStore(h.fs, h.workDir)
	require.NoError(t, err)
	h.rev, err = reverter.New(store)
	require.NoError(t, err)
	h.inst, err = installer.New(h.cfg, h.rev,
		installer.WithFs(h.fs),
		installer.WithController(h.ctrl),
		installer.WithFallbackGenerator(func(cn string) ([]byte, error) {
			return bundletest.NewCA(t, "Fallback").Bundle(t, cn), nil
		}),
	)
	require.NoError(t, err)
}

func (h *harness) path(domain string) string {
	return filepath.Join(h.crtDir, domain+".pem")
}

// snapshot returns the crt directory contents keyed by file name.
func (h *harness) snapshot(t *testing.T) map[string]string {
	t.Helper()
	out := map[string]string{}
	entries, err := os.ReadDir(h.crtDir)
	if os.IsNotExist(err) {
		return out
	}
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(h.crtDir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(data)
	}
	return out
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
