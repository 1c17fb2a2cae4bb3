package haproxy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// MinVersion is the oldest HAProxy release able to load certificates from a directory.
const MinVersion = "1.5"

var versionRe = regexp.MustCompile(`HA-?Proxy version ([0-9]{1,4})\.([0-9]{1,4})\.([0-9a-z]{1,10})`)

// Commands describes how to talk to the local HAProxy service.
type Commands struct {
	ServiceManager string   `env:"SERVICE_MANAGER" envDefault:"systemctl"`
	VersionCmd     []string `env:"VERSION_CMD" envSeparator:" " envDefault:"/usr/sbin/haproxy -v"`
	RestartCmd     []string `env:"RESTART_CMD" envSeparator:" " envDefault:"sudo systemctl restart haproxy"`
	ConfTestCmd    []string `env:"CONFTEST_CMD" envSeparator:" " envDefault:"/usr/sbin/haproxy -c -f"`
	Config         string   `env:"CONFIG" envDefault:"/etc/haproxy/haproxy.cfg"`
}

// Controller restarts and inspects HAProxy through external commands.
type Controller struct {
	cmds   Commands
	runner Runner
	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithRunner replaces the command runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(c *Controller) {
		if r != nil {
			c.runner = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l.With(logger.Component("haproxy"))
		}
	}
}

// New creates a controller for the given commands.
func New(cmds Commands, opts ...Option) *Controller {
	c := &Controller{
		cmds:   cmds,
		runner: execRunner{},
		logger: slog.Default().With(logger.Component("haproxy")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConfigTest asks HAProxy to validate its configuration file.
func (c *Controller) ConfigTest(ctx context.Context) error {
	cmd := append(append([]string{}, c.cmds.ConfTestCmd...), c.cmds.Config)
	out, err := c.run(ctx, cmd)
	if err != nil {
		return fmt.Errorf("%w: %w: %s", ErrConfigTest, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Restart validates the configuration and restarts the service.
func (c *Controller) Restart(ctx context.Context) error {
	if err := c.ConfigTest(ctx); err != nil {
		return err
	}

	start := time.Now()
	out, err := c.run(ctx, c.cmds.RestartCmd)
	if err != nil {
		return fmt.Errorf("%w: %w: %s", ErrMisconfiguration, err, strings.TrimSpace(string(out)))
	}
	c.logger.Info("haproxy restarted", logger.Duration(time.Since(start)))
	return nil
}

// Version returns the installed HAProxy version as major.minor.patch.
func (c *Controller) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.cmds.VersionCmd)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoInstallation, err)
	}
	m := versionRe.FindSubmatch(out)
	if m == nil {
		return "", fmt.Errorf("%w: unrecognized version output %q", ErrNoInstallation, firstLine(out))
	}
	return fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3]), nil
}

// CheckVersion fails with ErrNotSupported when HAProxy is older than MinVersion.
func (c *Controller) CheckVersion(ctx context.Context) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if semver.Compare(toSemver(v), "v"+MinVersion) < 0 {
		return fmt.Errorf("%w: have %s, need %s or newer", ErrNotSupported, v, MinVersion)
	}
	c.logger.Debug("haproxy version accepted", logger.Version(v))
	return nil
}

// ServiceManagerExists checks that the service manager used for restarts is installed.
func (c *Controller) ServiceManagerExists() error {
	if _, err := c.runner.LookPath(c.cmds.ServiceManager); err != nil {
		return fmt.Errorf("%w: service manager %q: %w", ErrNoInstallation, c.cmds.ServiceManager, err)
	}
	return nil
}

func (c *Controller) run(ctx context.Context, cmd []string) ([]byte, error) {
	if len(cmd) == 0 || cmd[0] == "" {
		return nil, ErrEmptyCommand
	}
	c.logger.Debug("running command", slog.String("command", strings.Join(cmd, " ")))
	return c.runner.Run(ctx, cmd[0], cmd[1:]...)
}

// toSemver converts an HAProxy version to semver form. Development patch
// levels such as "dev19" drop to major.minor.
func toSemver(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) == 3 && strings.Trim(parts[2], "0123456789") == "" {
		return "v" + v
	}
	return "v" + parts[0] + "." + parts[1]
}

func firstLine(b []byte) string {
	line, _, _ := bytes.Cut(bytes.TrimSpace(b), []byte("\n"))
	return string(line)
}
