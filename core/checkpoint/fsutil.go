package checkpoint

import (
	"io"
	"os"

	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o700
	filePerm os.FileMode = 0o600
)

func readFile(fs afero.Fs, path string) ([]byte, error) {
	return afero.ReadFile(fs, path)
}

// copyFile copies src into dst, truncating dst. dst is created with filePerm
// because pre-images may hold private keys.
func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
