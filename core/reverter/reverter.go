package reverter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/lehaproxy/core/checkpoint"
	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// State is the position of the reverter in its transaction cycle.
type State string

const (
	// StateIdle means no checkpoint is pending.
	StateIdle State = "idle"
	// StateStaging means a checkpoint is open and collecting changes.
	StateStaging State = "staging"
)

// Reverter is the transaction boundary around file changes. It owns the
// checkpoint store and keeps at most one checkpoint pending.
type Reverter struct {
	mu             sync.Mutex
	store          *checkpoint.Store
	state          State
	archiver       Archiver
	archiveTimeout time.Duration
	logger         *slog.Logger
}

// New creates a reverter and resolves any checkpoint left unfinished by a
// previous run before returning.
func New(store *checkpoint.Store, opts ...Option) (*Reverter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	r := &Reverter{
		store:          store,
		state:          StateIdle,
		archiveTimeout: 30 * time.Second,
		logger:         slog.Default().With(logger.Component("reverter")),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.RecoveryRoutine(); err != nil {
		return nil, err
	}
	return r, nil
}

// State reports whether a checkpoint is currently pending.
func (r *Reverter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// AddToCheckpoint captures paths in the pending permanent checkpoint.
func (r *Reverter) AddToCheckpoint(paths []string, notes string) error {
	return r.begin(checkpoint.KindPermanent, paths, notes)
}

// AddToTempCheckpoint captures paths in the pending temporary checkpoint.
func (r *Reverter) AddToTempCheckpoint(paths []string, notes string) error {
	return r.begin(checkpoint.KindTemporary, paths, notes)
}

func (r *Reverter) begin(kind checkpoint.Kind, paths []string, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.refresh()

	if err := r.store.Begin(kind, paths, notes); err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}
	return nil
}

// RegisterFileCreation records paths that are about to be created, so that
// rollback deletes them.
func (r *Reverter) RegisterFileCreation(temporary bool, paths ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.refresh()

	kind := checkpoint.KindPermanent
	if temporary {
		kind = checkpoint.KindTemporary
	}
	if err := r.store.RegisterNew(kind, paths...); err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}
	return nil
}

// FinalizeCheckpoint moves the pending checkpoint into history under title.
// With an archiver configured the checkpoint is also copied off-host; archive
// failures are logged and do not fail the finalize.
func (r *Reverter) FinalizeCheckpoint(title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.refresh()

	cp, err := r.store.MergeIntoPermanent(title)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}

	if r.archiver != nil {
		r.archive(cp.ID)
	}
	return nil
}

func (r *Reverter) archive(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.archiveTimeout)
	defer cancel()

	start := time.Now()
	walk := func(visit func(string, io.Reader) error) error {
		return r.store.WalkCheckpoint(id, visit)
	}
	if err := r.archiver.Archive(ctx, id, walk); err != nil {
		r.logger.Warn("failed to archive checkpoint",
			logger.Checkpoint(id),
			logger.Error(err))
		return
	}
	r.logger.Debug("checkpoint archived", logger.Checkpoint(id), logger.Elapsed(start))
}

// RevertTemporaryConfig discards a pending temporary checkpoint. It is a no-op
// when nothing is pending and fails when the pending checkpoint is permanent.
func (r *Reverter) RevertTemporaryConfig() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.refresh()

	cp, err := r.store.Pending()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}
	if cp == nil {
		return nil
	}
	if cp.Kind != checkpoint.KindTemporary {
		return fmt.Errorf("%w: %w: pending checkpoint is permanent", ErrReverter, checkpoint.ErrKindMismatch)
	}
	if err := r.store.RevertPending(); err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}
	r.logger.Info("temporary changes reverted", logger.Action("revert"))
	return nil
}

// RollbackCheckpoints reverts the pending checkpoint and the n most recent
// finalized ones. The error unwraps to *checkpoint.RollbackError.
func (r *Reverter) RollbackCheckpoints(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.refresh()

	if err := r.store.Rollback(n); err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}
	return nil
}

// RecoveryRoutine reverts a checkpoint left in progress by an interrupted run.
// The error unwraps to *checkpoint.RecoveryError.
func (r *Reverter) RecoveryRoutine() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.refresh()

	if err := r.store.RecoverInProgress(); err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}
	return nil
}

// ViewConfigChanges writes the pending checkpoint, if any, and the history,
// newest first, in a form meant for operators.
func (r *Reverter) ViewConfigChanges(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending, err := r.store.Pending()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrReverter, err)
	}

	count := 0
	if pending != nil {
		count++
		if _, err := fmt.Fprintf(w, "Pending %s checkpoint (started %s)\n%s\n",
			pending.Kind, pending.CreatedAt.Format(time.DateTime), pending.Summary()); err != nil {
			return err
		}
	}

	for cp, err := range r.store.ListHistory() {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrReverter, err)
		}
		count++
		if _, err := fmt.Fprintf(w, "Checkpoint %s (%s)\n%s\n",
			cp.ID, cp.CreatedAt.Format(time.DateTime), cp.Summary()); err != nil {
			return err
		}
	}

	if count == 0 {
		_, err := fmt.Fprintln(w, "No changes recorded.")
		return err
	}
	return nil
}

// refresh re-reads the pending marker. Callers hold mu.
func (r *Reverter) refresh() {
	marker, err := r.store.HasMarker()
	if err != nil {
		r.logger.Warn("failed to check pending checkpoint", logger.Error(err))
		return
	}
	if marker {
		r.state = StateStaging
	} else {
		r.state = StateIdle
	}
}
