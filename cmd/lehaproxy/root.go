package main

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/lehaproxy/core/config"
	"github.com/dmitrymomot/lehaproxy/core/installer"
	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// cli carries state shared by every subcommand. Tests preset cfg, fs and
// installerOpts; main leaves them empty.
type cli struct {
	cfg           *Config
	log           *slog.Logger
	fs            afero.Fs
	installerOpts []installer.Option

	workDir string
	verbose bool
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "lehaproxy",
		Short:         "Deploy ACME certificates to HAProxy with checkpointed rollback",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.workDir, "work-dir", "", "directory holding checkpoints and the lock file (overrides WORK_DIR)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newDeployCmd(c),
		newRenewCmd(c),
		newRollbackCmd(c),
		newHistoryCmd(c),
		newRecoverCmd(c),
		newCertsCmd(c),
		newRestartCmd(c),
		newCheckCmd(c),
	)
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	if c.cfg == nil {
		var cfg Config
		if err := config.Load(&cfg); err != nil {
			return err
		}
		c.cfg = &cfg
	}
	if c.workDir != "" {
		c.cfg.WorkDir = c.workDir
	}
	if c.cfg.WorkDir == "" {
		return fmt.Errorf("work directory is required")
	}

	level := logger.ParseLevel(c.cfg.LogLevel)
	if c.verbose {
		level = slog.LevelDebug
	}
	opts := []logger.Option{
		logger.WithLevel(level),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithAttr(logger.RunID(uuid.NewString())),
	}
	if c.cfg.LogFormat == "json" {
		opts = append(opts, logger.WithJSONFormatter())
	}
	c.log = logger.New(opts...)
	return nil
}

// run opens the app for the duration of fn.
func (c *cli) run(cmd *cobra.Command, fn func(*app) error) error {
	a, err := openApp(cmd.Context(), c)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
