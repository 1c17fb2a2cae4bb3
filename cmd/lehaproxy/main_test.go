package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/core/installer"
	"github.com/dmitrymomot/lehaproxy/pkg/bundle"
	"github.com/dmitrymomot/lehaproxy/pkg/bundle/bundletest"
	"github.com/dmitrymomot/lehaproxy/pkg/flock"
)

const testCA = "Test Issuing CA"

// fakeController fails Restart with the queued errors, one per call.
type fakeController struct {
	restartErrs []error
	restarts    int
}

func (f *fakeController) ConfigTest(context.Context) error { return nil }

func (f *fakeController) Restart(context.Context) error {
	f.restarts++
	if len(f.restartErrs) == 0 {
		return nil
	}
	err := f.restartErrs[0]
	f.restartErrs = f.restartErrs[1:]
	return err
}

func (f *fakeController) CheckVersion(context.Context) error { return nil }
func (f *fakeController) ServiceManagerExists() error        { return nil }

type testEnv struct {
	cfg    *Config
	ctrl   *fakeController
	ca     *bundletest.CA
	srcDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	return &testEnv{
		cfg: &Config{
			WorkDir: filepath.Join(root, "work"),
			Installer: installer.Config{
				CrtDir:         filepath.Join(root, "crt"),
				CrtSuffix:      ".pem",
				CACommonName:   testCA,
				NoFallbackCert: true,
			},
		},
		ctrl:   &fakeController{},
		ca:     bundletest.NewCA(t, testCA),
		srcDir: filepath.Join(root, "src"),
	}
}

func (e *testEnv) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := &cli{
		cfg:           e.cfg,
		installerOpts: []installer.Option{installer.WithController(e.ctrl)},
	}
	cmd := newRootCmd(c)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// writeSources writes cert, chain and key of m to the source directory.
func (e *testEnv) writeSources(t *testing.T, m bundle.Material) (cert, chain, key string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(e.srcDir, 0o700))
	cert = filepath.Join(e.srcDir, "cert.pem")
	chain = filepath.Join(e.srcDir, "chain.pem")
	key = filepath.Join(e.srcDir, "privkey.pem")
	require.NoError(t, os.WriteFile(cert, m.Cert, 0o600))
	require.NoError(t, os.WriteFile(chain, m.Chain, 0o600))
	require.NoError(t, os.WriteFile(key, m.Key, 0o600))
	return cert, chain, key
}

func (e *testEnv) deploy(t *testing.T, domain string) []byte {
	t.Helper()
	m := e.ca.Issue(t, domain)
	cert, chain, key := e.writeSources(t, m)
	_, err := e.execute(t, "deploy", domain, "--cert", cert, "--chain", chain, "--key", key)
	require.NoError(t, err)
	want, err := bundle.Assemble(m)
	require.NoError(t, err)
	return want
}

func (e *testEnv) bundle(t *testing.T, domain string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(e.cfg.Installer.CrtDir, domain+".pem"))
	require.NoError(t, err)
	return data
}

func TestDeployCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	want := e.deploy(t, "example.com")

	assert.Equal(t, want, e.bundle(t, "example.com"))
	assert.Equal(t, 1, e.ctrl.restarts)

	out, err := e.execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Deployed certificate for example.com")

	out, err = e.execute(t, "certs")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(e.cfg.Installer.CrtDir, "example.com.pem"))
}

func TestDeployRollsBackWhenRestartFails(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	first := e.deploy(t, "example.com")

	restartErr := errors.New("haproxy failed to start")
	e.ctrl.restartErrs = []error{restartErr}

	m := e.ca.Issue(t, "example.com")
	cert, chain, key := e.writeSources(t, m)
	_, err := e.execute(t, "deploy", "example.com", "--cert", cert, "--chain", chain, "--key", key)
	require.ErrorIs(t, err, restartErr)

	assert.Equal(t, first, e.bundle(t, "example.com"))
	assert.Equal(t, 3, e.ctrl.restarts)
}

func TestRollbackCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	first := e.deploy(t, "example.com")
	e.deploy(t, "example.com")

	_, err := e.execute(t, "rollback", "1")
	require.NoError(t, err)
	assert.Equal(t, first, e.bundle(t, "example.com"))

	_, err = e.execute(t, "rollback")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(e.cfg.Installer.CrtDir, "example.com.pem"))
	assert.True(t, os.IsNotExist(err))
}

func TestRollbackCommandRejectsBadCount(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	for _, arg := range []string{"-1", "two"} {
		_, err := e.execute(t, "rollback", "--", arg)
		assert.Error(t, err, arg)
	}
}

func TestCommandsFailWhileLocked(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	lock, err := flock.Acquire(filepath.Join(e.cfg.WorkDir, lockName))
	require.NoError(t, err)
	defer lock.Release()

	_, err = e.execute(t, "history")
	assert.ErrorIs(t, err, flock.ErrLocked)
}

func TestRecoverCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	_, err := e.execute(t, "recover")
	require.NoError(t, err)

	out, err := e.execute(t, "history")
	require.NoError(t, err)
	assert.Equal(t, "No changes recorded.\n", out)
}

func TestHistoryRemoteRequiresBucket(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	_, err := e.execute(t, "history", "--remote")
	assert.Error(t, err)
}
