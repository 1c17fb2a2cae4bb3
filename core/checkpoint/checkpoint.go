package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/lehaproxy/pkg/fsutil"
)

// Kind tells whether a checkpoint is provisional or part of durable history.
type Kind string

const (
	// KindTemporary checkpoints are discarded or merged into the next permanent one.
	KindTemporary Kind = "temporary"
	// KindPermanent checkpoints become history entries once finalized.
	KindPermanent Kind = "permanent"
)

// ChangedFile is a path that existed before the checkpoint. Its bytes and mode
// were copied into the checkpoint directory under PreImage.
type ChangedFile struct {
	Path     string      `json:"path"`
	PreImage string      `json:"pre_image"`
	Mode     os.FileMode `json:"mode"`
}

// Checkpoint is one unit of file changes that can be rolled back as a whole.
type Checkpoint struct {
	// ID is empty while the checkpoint is pending.
	ID        string        `json:"-"`
	Kind      Kind          `json:"kind"`
	Title     string        `json:"title,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Changed   []ChangedFile `json:"changed,omitempty"`
	New       []string      `json:"new,omitempty"`
}

// Tracks reports whether path is already recorded, either as changed or new.
func (c *Checkpoint) Tracks(path string) bool {
	if slices.Contains(c.New, path) {
		return true
	}
	for _, f := range c.Changed {
		if f.Path == path {
			return true
		}
	}
	return false
}

// ChangedPaths returns the paths of all changed files.
func (c *Checkpoint) ChangedPaths() []string {
	out := make([]string, 0, len(c.Changed))
	for _, f := range c.Changed {
		out = append(out, f.Path)
	}
	return out
}

// Pending reports whether the checkpoint has not been finalized yet.
func (c *Checkpoint) Pending() bool {
	return c.ID == ""
}

// Summary renders the checkpoint the way it is stored in CHANGES_SINCE.
func (c *Checkpoint) Summary() string {
	var b strings.Builder
	if c.Title != "" {
		fmt.Fprintf(&b, "-- %s --\n", c.Title)
	}
	if c.Notes != "" {
		b.WriteString(c.Notes)
		if !strings.HasSuffix(c.Notes, "\n") {
			b.WriteByte('\n')
		}
	}
	if len(c.Changed) > 0 {
		b.WriteString("Changed files:\n")
		for _, f := range c.Changed {
			fmt.Fprintf(&b, "  %s\n", f.Path)
		}
	}
	if len(c.New) > 0 {
		b.WriteString("New files:\n")
		for _, p := range c.New {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}
	return b.String()
}

func preImageName(index int, path string) string {
	return fmt.Sprintf("%d_%s", index, filepath.Base(path))
}

func (s *Store) readManifest(dir string) (*Checkpoint, error) {
	data, err := readFile(s.fs, filepath.Join(dir, manifestName))
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode manifest in %s: %w", dir, err)
	}
	return &cp, nil
}

func (s *Store) writeManifest(dir string, cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.fs, filepath.Join(dir, notesName), []byte(cp.Summary()), filePerm); err != nil {
		return fmt.Errorf("write notes: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.fs, filepath.Join(dir, manifestName), data, filePerm); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
