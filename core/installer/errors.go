package installer

import "errors"

var (
	// ErrPlugin is returned when a request cannot be served with the given input.
	ErrPlugin = errors.New("installer: plugin error")

	// ErrStaging is returned when staged bundles cannot be captured in a checkpoint.
	// Staged state is discarded and no checkpoint opened by the call is left open.
	ErrStaging = errors.New("installer: staging failed")

	// ErrWrite is returned when a staged bundle cannot be written after its
	// checkpoint was opened. The checkpoint stays open for rollback.
	ErrWrite = errors.New("installer: write failed")

	// ErrConfigTest is returned when HAProxy rejects its configuration.
	ErrConfigTest = errors.New("installer: configuration test failed")

	// ErrCrtDirRequired is returned when no certificate directory is configured.
	ErrCrtDirRequired = errors.New("installer: certificate directory is required")

	// ErrReverterRequired is returned when New is called without a reverter.
	ErrReverterRequired = errors.New("installer: reverter is required")
)
