package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/dmitrymomot/lehaproxy/core/logger"
	"github.com/dmitrymomot/lehaproxy/pkg/fsutil"
)

const (
	backupsDirName = "backups"
	inProgressName = "IN_PROGRESS"
	manifestName   = "manifest.json"
	notesName      = "CHANGES_SINCE"
)

// Store keeps at most one pending checkpoint under backups/IN_PROGRESS and a
// history of finalized checkpoints under backups/<id>.
type Store struct {
	fs         afero.Fs
	backupDir  string
	pendingDir string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.With(logger.Component("checkpoint"))
		}
	}
}

// WithClock overrides the time source used for checkpoint identifiers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a store rooted at workDir. A nil fs means the OS filesystem.
func NewStore(fsys afero.Fs, workDir string, opts ...Option) (*Store, error) {
	if workDir == "" {
		return nil, ErrWorkDirRequired
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}

	backupDir := filepath.Join(workDir, backupsDirName)
	s := &Store{
		fs:         fsys,
		backupDir:  backupDir,
		pendingDir: filepath.Join(backupDir, inProgressName),
		now:        time.Now,
		logger:     slog.Default().With(logger.Component("checkpoint")),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.fs.MkdirAll(backupDir, dirPerm); err != nil {
		return nil, fmt.Errorf("checkpoint: create backup directory: %w", err)
	}
	return s, nil
}

// BackupDir returns the directory holding history and the pending checkpoint.
func (s *Store) BackupDir() string {
	return s.backupDir
}

// BeginTemporary adds paths to the pending temporary checkpoint, opening one if needed.
func (s *Store) BeginTemporary(paths []string, notes string) error {
	return s.Begin(KindTemporary, paths, notes)
}

// Begin adds paths to the pending checkpoint of the given kind. Existing files
// have their bytes copied as pre-images; missing files are recorded as new.
// Paths already tracked keep their earliest pre-image.
//
// A permanent Begin over a pending temporary checkpoint merges the temporary
// changes into the permanent one. A temporary Begin over a pending permanent
// checkpoint fails with ErrKindMismatch.
//
// On failure the store is left exactly as it was before the call.
func (s *Store) Begin(kind Kind, paths []string, notes string) error {
	cp, err := s.Pending()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStaging, err)
	}

	created := cp == nil
	var prevNotes string
	if !created {
		prevNotes = cp.Summary()
	}
	switch {
	case created:
		cp = &Checkpoint{Kind: kind, CreatedAt: s.now().UTC()}
	case cp.Kind == kind:
	case kind == KindTemporary:
		return fmt.Errorf("%w: cannot add temporary changes to a pending permanent checkpoint", ErrKindMismatch)
	default:
		s.logger.Debug("merging temporary checkpoint into permanent",
			logger.Count("changed", len(cp.Changed)),
			logger.Count("new", len(cp.New)))
		cp.Kind = KindPermanent
	}

	if err := s.fs.MkdirAll(s.pendingDir, dirPerm); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrStaging, s.pendingDir, err)
	}

	var copied []string
	fail := func(cause error) error {
		var cleanup error
		for _, name := range copied {
			cleanup = multierr.Append(cleanup, s.fs.Remove(filepath.Join(s.pendingDir, name)))
		}
		if created {
			cleanup = multierr.Append(cleanup, s.fs.RemoveAll(s.pendingDir))
		} else {
			// The notes file is written before the manifest and may already
			// describe the rejected paths.
			cleanup = multierr.Append(cleanup,
				fsutil.WriteFileAtomic(s.fs, filepath.Join(s.pendingDir, notesName), []byte(prevNotes), filePerm))
		}
		if cleanup != nil {
			s.logger.Warn("failed to clean up after staging error", logger.Error(cleanup))
		}
		return fmt.Errorf("%w: %w", ErrStaging, cause)
	}

	for _, p := range paths {
		p = filepath.Clean(p)
		if cp.Tracks(p) {
			continue
		}

		info, err := s.fs.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			cp.New = append(cp.New, p)
			continue
		case err != nil:
			return fail(fmt.Errorf("stat %s: %w", p, err))
		case info.IsDir():
			return fail(fmt.Errorf("%s is a directory", p))
		}

		name := preImageName(len(cp.Changed), p)
		if err := copyFile(s.fs, p, filepath.Join(s.pendingDir, name)); err != nil {
			return fail(fmt.Errorf("copy pre-image of %s: %w", p, err))
		}
		copied = append(copied, name)
		cp.Changed = append(cp.Changed, ChangedFile{Path: p, PreImage: name, Mode: info.Mode().Perm()})
	}

	cp.Notes += notes
	if err := s.writeManifest(s.pendingDir, cp); err != nil {
		return fail(err)
	}

	s.logger.Debug("paths added to checkpoint",
		slog.String("kind", string(cp.Kind)),
		logger.Paths(paths))
	return nil
}

// RegisterNew records paths the caller is about to create. A path that already
// exists is captured with its pre-image instead, so rollback never deletes a
// file the checkpoint did not create.
func (s *Store) RegisterNew(kind Kind, paths ...string) error {
	for _, p := range paths {
		if ok, _ := afero.Exists(s.fs, p); ok {
			s.logger.Debug("registered path already exists, capturing pre-image", logger.FilePath(p))
		}
	}
	return s.Begin(kind, paths, "")
}

// Pending returns the pending checkpoint or nil when there is none.
func (s *Store) Pending() (*Checkpoint, error) {
	cp, err := s.readManifest(s.pendingDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// HasMarker reports whether the in-progress directory exists.
func (s *Store) HasMarker() (bool, error) {
	return afero.DirExists(s.fs, s.pendingDir)
}

// MergeIntoPermanent promotes the pending checkpoint into history under a new,
// monotonically increasing identifier.
func (s *Store) MergeIntoPermanent(title string) (*Checkpoint, error) {
	cp, err := s.Pending()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, ErrNothingPending
	}

	id, err := s.nextID()
	if err != nil {
		return nil, err
	}

	orig := *cp
	cp.Kind = KindPermanent
	cp.Title = title
	if err := s.writeManifest(s.pendingDir, cp); err != nil {
		s.restoreManifest(&orig)
		return nil, err
	}
	if err := s.fs.Rename(s.pendingDir, filepath.Join(s.backupDir, id)); err != nil {
		s.restoreManifest(&orig)
		return nil, fmt.Errorf("checkpoint: finalize %s: %w", id, err)
	}
	cp.ID = id

	s.logger.Info("checkpoint finalized",
		logger.Checkpoint(id),
		slog.String("title", title),
		logger.Count("changed", len(cp.Changed)),
		logger.Count("new", len(cp.New)))
	return cp, nil
}

// restoreManifest puts back the pending manifest after a failed finalize, so
// the checkpoint keeps its kind and title.
func (s *Store) restoreManifest(cp *Checkpoint) {
	if err := s.writeManifest(s.pendingDir, cp); err != nil {
		s.logger.Error("failed to restore pending manifest",
			logger.Error(err),
			slog.String("kind", string(cp.Kind)))
	}
}
