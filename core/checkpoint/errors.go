package checkpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkDirRequired is returned when the store is created without a work directory.
	ErrWorkDirRequired = errors.New("checkpoint: work directory is required")

	// ErrStaging is returned when a path cannot be added to the pending checkpoint.
	ErrStaging = errors.New("checkpoint: cannot stage file")

	// ErrKindMismatch is returned when temporary changes are added to a pending permanent checkpoint.
	ErrKindMismatch = errors.New("checkpoint: pending checkpoint kind mismatch")

	// ErrNothingPending is returned when finalizing without a pending checkpoint.
	ErrNothingPending = errors.New("checkpoint: no pending checkpoint")

	// ErrNotEnoughHistory is returned when a rollback asks for more checkpoints than exist.
	ErrNotEnoughHistory = errors.New("checkpoint: not enough checkpoints in history")

	// ErrInvalidCount is returned for a negative rollback count.
	ErrInvalidCount = errors.New("checkpoint: rollback count must not be negative")

	// ErrNotFound is returned when a finalized checkpoint does not exist.
	ErrNotFound = errors.New("checkpoint: not found")

	// ErrRollback is matched by every *RollbackError.
	ErrRollback = errors.New("checkpoint: rollback failed")

	// ErrRecovery is matched by every *RecoveryError.
	ErrRecovery = errors.New("checkpoint: recovery failed")
)

// RollbackError reports which checkpoint could not be reverted.
// Checkpoints reverted before the failing one stay reverted.
type RollbackError struct {
	CheckpointID string
	Err          error
}

func (e *RollbackError) Error() string {
	if e.CheckpointID == "" {
		return fmt.Sprintf("checkpoint: rollback failed: %v", e.Err)
	}
	return fmt.Sprintf("checkpoint: rollback of %s failed: %v", e.CheckpointID, e.Err)
}

func (e *RollbackError) Unwrap() []error {
	return []error{ErrRollback, e.Err}
}

// RecoveryError reports an in-progress checkpoint that could not be reverted.
// It usually means on-disk corruption and needs manual intervention.
type RecoveryError struct {
	Dir string
	Err error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("checkpoint: recovery of %s failed, manual intervention required: %v", e.Dir, e.Err)
}

func (e *RecoveryError) Unwrap() []error {
	return []error{ErrRecovery, e.Err}
}
