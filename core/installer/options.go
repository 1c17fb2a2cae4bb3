package installer

import (
	"context"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/dmitrymomot/lehaproxy/pkg/bundle"
)

// Controller runs HAProxy lifecycle commands. *haproxy.Controller satisfies it.
type Controller interface {
	ConfigTest(ctx context.Context) error
	Restart(ctx context.Context) error
	CheckVersion(ctx context.Context) error
	ServiceManagerExists() error
}

// Validator inspects a bundle without failing.
type Validator func(data []byte) bundle.Result

// FallbackGenerator creates a placeholder bundle for commonName.
type FallbackGenerator func(commonName string) ([]byte, error)

// Option configures an Installer.
type Option func(*Installer)

// WithFs sets the filesystem used for the crt directory. Defaults to the OS.
func WithFs(fs afero.Fs) Option {
	return func(i *Installer) {
		if fs != nil {
			i.fs = fs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Installer) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithValidator replaces bundle.Validate.
func WithValidator(v Validator) Option {
	return func(i *Installer) {
		if v != nil {
			i.validate = v
		}
	}
}

// WithController replaces the HAProxy controller built from Config.HAProxy.
func WithController(c Controller) Option {
	return func(i *Installer) {
		if c != nil {
			i.ctrl = c
		}
	}
}

// WithFallbackGenerator replaces bundle.SelfSigned.
func WithFallbackGenerator(g FallbackGenerator) Option {
	return func(i *Installer) {
		if g != nil {
			i.fallback = g
		}
	}
}
