// Package flock serializes processes through an advisory lock file.
package flock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("flock: lock is held by another process")

// Lock is an acquired lock file. The lock is released when Release is called
// or the process exits.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes an exclusive lock on path without blocking. The file is
// created if needed and records the holder's pid.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("flock: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("flock: open %s: %w", path, err)
	}

	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{f: f, path: path}, nil
}

// Wait retries Acquire every interval until it succeeds or ctx is done.
func Wait(ctx context.Context, path string, interval time.Duration) (*Lock, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		l, err := Acquire(path)
		if !errors.Is(err, ErrLocked) {
			return l, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLocked, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. The file itself stays, so a
// concurrent Acquire never races with its removal.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := errors.Join(unlockFile(l.f), l.f.Close())
	l.f = nil
	return err
}
