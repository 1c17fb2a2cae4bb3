package reverter

import "errors"

var (
	// ErrReverter wraps every failure reported by the checkpoint store.
	ErrReverter = errors.New("reverter: operation failed")

	// ErrStoreRequired is returned by New when no store is given.
	ErrStoreRequired = errors.New("reverter: checkpoint store is required")
)
