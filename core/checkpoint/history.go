package checkpoint

import (
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/afero"
)

// idLayout produces identifiers that sort lexicographically in time order.
const idLayout = "20060102T150405.000000000Z"

// ListHistory yields finalized checkpoints, most recent first. Manifests are read
// lazily as the sequence is consumed; ranging again re-reads the directory.
func (s *Store) ListHistory() iter.Seq2[Checkpoint, error] {
	return func(yield func(Checkpoint, error) bool) {
		ids, err := s.historyIDs()
		if err != nil {
			yield(Checkpoint{}, err)
			return
		}
		for _, id := range ids {
			cp, err := s.readManifest(filepath.Join(s.backupDir, id))
			if err != nil {
				if !yield(Checkpoint{ID: id}, fmt.Errorf("checkpoint: read %s: %w", id, err)) {
					return
				}
				continue
			}
			cp.ID = id
			if !yield(*cp, nil) {
				return
			}
		}
	}
}

// HistoryLen returns the number of finalized checkpoints.
func (s *Store) HistoryLen() (int, error) {
	ids, err := s.historyIDs()
	return len(ids), err
}

// WalkCheckpoint calls fn for every file stored in a finalized checkpoint:
// manifest, notes and pre-images.
func (s *Store) WalkCheckpoint(id string, fn func(name string, r io.Reader) error) error {
	if _, err := time.Parse(idLayout, id); err != nil {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	dir := filepath.Join(s.backupDir, id)
	if ok, _ := afero.DirExists(s.fs, dir); !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return fmt.Errorf("checkpoint: list %s: %w", id, err)
	}
	for _, e := range entries {
		if !e.Mode().IsRegular() {
			continue
		}
		if err := s.walkFile(filepath.Join(dir, e.Name()), e.Name(), fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) walkFile(path, name string, fn func(string, io.Reader) error) error {
	f, err := s.fs.Open(path)
	if err != nil {
		return fmt.Errorf("checkpoint: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return fn(name, f)
}

// historyIDs returns finalized checkpoint ids, newest first.
func (s *Store) historyIDs() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.backupDir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list history: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse(idLayout, e.Name()); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	slices.Sort(ids)
	slices.Reverse(ids)
	return ids, nil
}

// nextID returns an identifier strictly greater than every existing one, even
// when the clock moved backwards since the last finalize.
func (s *Store) nextID() (string, error) {
	now := s.now().UTC()

	ids, err := s.historyIDs()
	if err != nil {
		return "", err
	}
	if len(ids) > 0 {
		latest, err := time.Parse(idLayout, ids[0])
		if err == nil && !now.After(latest) {
			now = latest.Add(time.Nanosecond)
		}
	}
	return now.Format(idLayout), nil
}
