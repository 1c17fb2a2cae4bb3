package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/lehaproxy/core/installer"
	"github.com/dmitrymomot/lehaproxy/core/logger"
	"github.com/dmitrymomot/lehaproxy/pkg/letsencrypt"
)

func newDeployCmd(c *cli) *cobra.Command {
	var (
		src       installer.Sources
		title     string
		temporary bool
		noRestart bool
	)

	cmd := &cobra.Command{
		Use:   "deploy <domain>",
		Short: "Install a certificate bundle for a domain from PEM files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain := args[0]
			if title == "" {
				title = "Deployed certificate for " + domain
			}
			return c.run(cmd, func(a *app) error {
				ctx := cmd.Context()
				if err := a.inst.Prepare(ctx); err != nil {
					return err
				}
				if err := a.inst.DeployCert(domain, src); err != nil {
					return err
				}
				if err := a.inst.Save(title, temporary); err != nil {
					return errors.Join(err, a.inst.RecoveryRoutine())
				}
				if noRestart {
					return nil
				}
				if temporary {
					return a.inst.Restart(ctx)
				}
				return a.restartOrRollback(ctx, 1)
			})
		},
	}

	cmd.Flags().StringVar(&src.CertPath, "cert", "", "certificate PEM file")
	cmd.Flags().StringVar(&src.KeyPath, "key", "", "private key PEM file")
	cmd.Flags().StringVar(&src.ChainPath, "chain", "", "intermediate chain PEM file")
	cmd.Flags().StringVar(&src.FullchainPath, "fullchain", "", "certificate plus chain PEM file (preferred over --cert/--chain)")
	cmd.Flags().StringVar(&title, "title", "", "checkpoint title")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "record a temporary checkpoint that the next run reverts")
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "do not restart HAProxy")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func newRenewCmd(c *cli) *cobra.Command {
	var (
		domains   []string
		email     string
		staging   bool
		noRestart bool
	)

	cmd := &cobra.Command{
		Use:   "renew",
		Short: "Obtain a certificate over HTTP-01 and deploy it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if len(domains) == 0 {
				domains = cfg.Domains
			}
			if email == "" {
				email = cfg.ACMEEmail
			}

			opts := []letsencrypt.Option{
				letsencrypt.WithHTTP01Address(cfg.HTTP01Address),
				letsencrypt.WithHTTP01ProxyHeader(cfg.HTTP01ProxyHeader),
				letsencrypt.WithLogger(c.log),
			}
			switch {
			case staging:
				opts = append(opts, letsencrypt.WithCADirectoryURL(letsencrypt.StagingDirectoryURL))
			case cfg.ACMEDirectoryURL != "":
				opts = append(opts, letsencrypt.WithCADirectoryURL(cfg.ACMEDirectoryURL))
			}
			gen, err := letsencrypt.NewGenerator(domains, email, opts...)
			if err != nil {
				return err
			}

			return c.run(cmd, func(a *app) error {
				ctx := cmd.Context()
				if err := a.inst.Prepare(ctx); err != nil {
					return err
				}

				m, err := gen.Obtain(ctx)
				if err != nil {
					return err
				}
				domain := gen.Domains()[0]
				if err := a.inst.DeployBundle(domain, m); err != nil {
					return err
				}
				if err := a.inst.Save("Renewed certificate for "+domain, false); err != nil {
					return errors.Join(err, a.inst.RecoveryRoutine())
				}
				a.log.Info("certificate renewed", logger.Domain(domain))
				if noRestart {
					return nil
				}
				return a.restartOrRollback(ctx, 1)
			})
		},
	}

	cmd.Flags().StringSliceVarP(&domains, "domain", "d", nil, "domain to request, first one is the bundle name (defaults to DOMAINS)")
	cmd.Flags().StringVar(&email, "email", "", "ACME account email (defaults to ACME_EMAIL)")
	cmd.Flags().BoolVar(&staging, "staging", false, "use the Let's Encrypt staging directory")
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "do not restart HAProxy")
	return cmd
}

func newRollbackCmd(c *cli) *cobra.Command {
	var noRestart bool

	cmd := &cobra.Command{
		Use:   "rollback [checkpoints]",
		Short: "Revert the pending checkpoint and the given number of finalized ones (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return fmt.Errorf("invalid checkpoint count %q", args[0])
				}
				n = v
			}
			return c.run(cmd, func(a *app) error {
				if err := a.inst.RollbackCheckpoints(n); err != nil {
					return err
				}
				if noRestart {
					return nil
				}
				return a.inst.Restart(cmd.Context())
			})
		},
	}
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "do not restart HAProxy")
	return cmd
}

func newHistoryCmd(c *cli) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the pending checkpoint and finalized history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(a *app) error {
				out := cmd.OutOrStdout()
				if !remote {
					return a.inst.ViewConfigChanges(out)
				}
				if a.archiver == nil {
					return fmt.Errorf("no archive bucket configured")
				}
				ids, err := a.archiver.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "list checkpoints in the archive bucket instead")
	return cmd
}

func newRecoverCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Revert a checkpoint left unfinished by an interrupted run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the reverter already runs recovery.
			return c.run(cmd, func(a *app) error {
				return a.inst.RecoveryRoutine()
			})
		},
	}
}

func newCertsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "certs",
		Short: "List managed certificate bundles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(a *app) error {
				certs, err := a.inst.GetAllCertsKeys()
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "BUNDLE\tCONFIG")
				for _, ck := range certs {
					fmt.Fprintf(w, "%s\t%s\n", ck.CertPath, ck.ConfigPath)
				}
				return w.Flush()
			})
		},
	}
}

func newRestartCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Test the HAProxy configuration and restart the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(a *app) error {
				return a.inst.Restart(cmd.Context())
			})
		},
	}
}

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the HAProxy installation and configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(a *app) error {
				ctx := cmd.Context()
				if err := a.inst.Prepare(ctx); err != nil {
					return err
				}
				if err := a.inst.ConfigTest(ctx); err != nil {
					return err
				}
				names, err := a.inst.GetAllNames()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "HAProxy configuration OK, %d domain(s) deployed\n", len(names))
				return nil
			})
		},
	}
}
