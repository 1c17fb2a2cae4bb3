//go:build !unix

package flock

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("flock: file locking is not supported on this platform")

func lockFile(*os.File) error   { return errUnsupported }
func unlockFile(*os.File) error { return nil }
