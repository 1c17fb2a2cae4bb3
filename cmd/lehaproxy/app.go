package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/dmitrymomot/lehaproxy/core/checkpoint"
	"github.com/dmitrymomot/lehaproxy/core/installer"
	"github.com/dmitrymomot/lehaproxy/core/logger"
	"github.com/dmitrymomot/lehaproxy/core/reverter"
	"github.com/dmitrymomot/lehaproxy/integration/storage/s3"
	"github.com/dmitrymomot/lehaproxy/pkg/flock"
)

const lockName = ".lock"

// app is the per-invocation object graph. The lock is held from open until close.
type app struct {
	log      *slog.Logger
	lock     *flock.Lock
	inst     *installer.Installer
	archiver *s3.Archiver
}

func openApp(ctx context.Context, c *cli) (*app, error) {
	cfg := c.cfg
	lockPath := filepath.Join(cfg.WorkDir, lockName)

	var (
		lock *flock.Lock
		err  error
	)
	if cfg.LockTimeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, cfg.LockTimeout)
		lock, err = flock.Wait(waitCtx, lockPath, 250*time.Millisecond)
		cancel()
	} else {
		lock, err = flock.Acquire(lockPath)
	}
	if err != nil {
		return nil, fmt.Errorf("another instance is running: %w", err)
	}

	a := &app{log: c.log, lock: lock}
	if err := a.build(ctx, c); err != nil {
		return nil, errors.Join(err, lock.Release())
	}
	return a, nil
}

func (a *app) build(ctx context.Context, c *cli) error {
	cfg := c.cfg

	fs := c.fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	store, err := checkpoint.NewStore(fs, cfg.WorkDir, checkpoint.WithLogger(a.log))
	if err != nil {
		return err
	}

	revOpts := []reverter.Option{reverter.WithLogger(a.log)}
	if cfg.Archive.Bucket != "" {
		a.archiver, err = s3.New(ctx, cfg.Archive, s3.WithLogger(a.log), s3.WithUploadTimeout(time.Minute))
		if err != nil {
			return fmt.Errorf("checkpoint archive: %w", err)
		}
		revOpts = append(revOpts, reverter.WithArchiver(a.archiver))
	}

	rev, err := reverter.New(store, revOpts...)
	if err != nil {
		return err
	}

	instOpts := append([]installer.Option{
		installer.WithFs(fs),
		installer.WithLogger(a.log),
	}, c.installerOpts...)
	a.inst, err = installer.New(cfg.Installer, rev, instOpts...)
	return err
}

func (a *app) close() {
	if err := a.lock.Release(); err != nil {
		a.log.Warn("release lock", logger.Error(err), logger.FilePath(a.lock.Path()))
	}
}

// restartOrRollback restarts HAProxy after a finalized save. If the restart
// fails, the last n checkpoints are rolled back and HAProxy is restarted on
// the previous configuration.
func (a *app) restartOrRollback(ctx context.Context, n int) error {
	err := a.inst.Restart(ctx)
	if err == nil {
		return nil
	}

	a.log.Error("restart failed, rolling back", logger.Error(err), logger.Count("checkpoints", n))
	if rbErr := a.inst.RollbackCheckpoints(n); rbErr != nil {
		return errors.Join(err, rbErr)
	}
	if rsErr := a.inst.Restart(ctx); rsErr != nil {
		return errors.Join(err, fmt.Errorf("restart after rollback: %w", rsErr))
	}
	return err
}
