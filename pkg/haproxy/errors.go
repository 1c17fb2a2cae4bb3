package haproxy

import "errors"

var (
	// ErrConfigTest is returned when HAProxy rejects its configuration.
	ErrConfigTest = errors.New("haproxy: configuration test failed")

	// ErrMisconfiguration is returned when HAProxy cannot be restarted.
	ErrMisconfiguration = errors.New("haproxy: restart failed")

	// ErrNotSupported is returned for HAProxy versions older than MinVersion.
	ErrNotSupported = errors.New("haproxy: version not supported")

	// ErrNoInstallation is returned when HAProxy or the service manager cannot be found.
	ErrNoInstallation = errors.New("haproxy: installation not found")

	// ErrEmptyCommand is returned when a configured command has no executable.
	ErrEmptyCommand = errors.New("haproxy: command is empty")
)
