// Package installer deploys certificate bundles into HAProxy's crt directory.
//
// Deployments are staged in memory and written by Save inside a reverter
// checkpoint, so every save can be rolled back and an interrupted save is
// reverted on the next start.
//
//	inst, err := installer.New(cfg, rev, installer.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	if err := inst.DeployCert("example.com", installer.Sources{
//		FullchainPath: "/etc/letsencrypt/live/example.com/fullchain.pem",
//		KeyPath:       "/etc/letsencrypt/live/example.com/privkey.pem",
//	}); err != nil {
//		return err
//	}
//	if err := inst.Save("Deployed example.com", false); err != nil {
//		return err
//	}
//	return inst.Restart(ctx)
//
// Unless disabled, Save keeps a self-signed fallback.pem in the directory
// while no valid bundle exists, because HAProxy refuses to start with an
// empty crt directory.
package installer
