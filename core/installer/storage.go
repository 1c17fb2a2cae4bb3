package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/dmitrymomot/lehaproxy/pkg/fsutil"
)

const bundlePerm os.FileMode = 0o600

// storage provides low-level bundle file operations in the crt directory.
type storage struct {
	fs     afero.Fs
	dir    string
	suffix string
}

func (s *storage) path(domain string) string {
	return filepath.Join(s.dir, domain+s.suffix)
}

// list returns bundle paths sorted by name. A missing directory holds no bundles.
func (s *storage) list() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		// Skip temp files left by interrupted writes.
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, s.suffix) {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// domain returns the domain a bundle path belongs to.
func (s *storage) domain(path string) string {
	return strings.TrimSuffix(filepath.Base(path), s.suffix)
}

func (s *storage) exists(path string) (bool, error) {
	info, err := s.fs.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, err
	case info.IsDir():
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}

func (s *storage) read(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// write replaces path atomically, creating parent directories as needed.
func (s *storage) write(path string, data []byte) error {
	if err := fsutil.WriteFileAtomic(s.fs, path, data, bundlePerm); err != nil {
		return fmt.Errorf("failed to save bundle: %w", err)
	}
	return nil
}
