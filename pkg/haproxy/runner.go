package haproxy

import (
	"context"
	"os/exec"
)

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and returns combined stdout and stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// LookPath reports where an executable lives.
	LookPath(file string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (execRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
