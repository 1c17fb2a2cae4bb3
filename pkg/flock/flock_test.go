//go:build unix

package flock_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/pkg/flock"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "work", ".lock")

	l, err := flock.Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, l.Path())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))

	// flock locks belong to the open file description, so a second open in
	// the same process conflicts just like another process would.
	_, err = flock.Acquire(path)
	assert.ErrorIs(t, err, flock.ErrLocked)

	require.NoError(t, l.Release())
	require.NoError(t, l.Release())

	l2, err := flock.Acquire(path)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	held, err := flock.Acquire(path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = flock.Wait(ctx, path, 10*time.Millisecond)
	assert.ErrorIs(t, err, flock.ErrLocked)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = held.Release()
	}()

	l, err := flock.Wait(context.Background(), path, 5*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, l.Release())
}
