package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/dmitrymomot/lehaproxy/core/logger"
	"github.com/dmitrymomot/lehaproxy/pkg/fsutil"
)

// Rollback reverts the pending checkpoint, if any, and then the n most recent
// finalized checkpoints in reverse chronological order.
//
// When n exceeds the history nothing is touched. When a restore step fails,
// checkpoints already reverted stay reverted and the failing checkpoint stays
// in history; the returned *RollbackError names it.
func (s *Store) Rollback(n int) error {
	if n < 0 {
		return &RollbackError{Err: ErrInvalidCount}
	}

	ids, err := s.historyIDs()
	if err != nil {
		return &RollbackError{Err: err}
	}
	if n > len(ids) {
		return &RollbackError{Err: fmt.Errorf("%w: requested %d, have %d", ErrNotEnoughHistory, n, len(ids))}
	}

	if marker, err := s.HasMarker(); err != nil {
		return &RollbackError{CheckpointID: inProgressName, Err: err}
	} else if marker {
		if err := s.revertDir(s.pendingDir); err != nil {
			return &RollbackError{CheckpointID: inProgressName, Err: err}
		}
		s.logger.Info("pending checkpoint reverted", logger.Action("rollback"))
	}

	for _, id := range ids[:n] {
		if err := s.revertDir(filepath.Join(s.backupDir, id)); err != nil {
			return &RollbackError{CheckpointID: id, Err: err}
		}
		s.logger.Info("checkpoint reverted", logger.Checkpoint(id), logger.Action("rollback"))
	}
	return nil
}

// RevertPending reverts and removes the pending checkpoint. It is a no-op when
// nothing is pending.
func (s *Store) RevertPending() error {
	marker, err := s.HasMarker()
	if err != nil || !marker {
		return err
	}
	return s.revertDir(s.pendingDir)
}

// RecoverInProgress treats a leftover in-progress checkpoint as abandoned and
// reverts it. Calling it again afterwards is a no-op.
func (s *Store) RecoverInProgress() error {
	marker, err := s.HasMarker()
	if err != nil {
		return &RecoveryError{Dir: s.pendingDir, Err: err}
	}
	if !marker {
		return nil
	}

	s.logger.Warn("found unfinished checkpoint, reverting", logger.Action("recover"))
	if err := s.revertDir(s.pendingDir); err != nil {
		return &RecoveryError{Dir: s.pendingDir, Err: err}
	}
	s.logger.Info("unfinished checkpoint reverted", logger.Action("recover"))
	return nil
}

// revertDir restores pre-images, deletes new files and removes dir. Every step
// is safe to repeat, so a revert interrupted halfway can simply run again.
func (s *Store) revertDir(dir string) error {
	cp, err := s.readManifest(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Crashed before the first manifest write: nothing was recorded, so
		// nothing on disk was touched.
		return s.fs.RemoveAll(dir)
	case err != nil:
		return err
	}

	for _, f := range cp.Changed {
		data, err := afero.ReadFile(s.fs, filepath.Join(dir, f.PreImage))
		if err != nil {
			return fmt.Errorf("read pre-image of %s: %w", f.Path, err)
		}
		mode := f.Mode
		if mode == 0 {
			mode = filePerm
		}
		if err := fsutil.WriteFileAtomic(s.fs, f.Path, data, mode); err != nil {
			return fmt.Errorf("restore %s: %w", f.Path, err)
		}
	}

	for _, p := range cp.New {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}

	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove checkpoint directory: %w", err)
	}
	return nil
}
