// Package reverter is the transaction boundary for file changes.
//
// A Reverter wraps a checkpoint.Store and moves through a small cycle:
// Idle, then Staging while a checkpoint is open, then back to Idle once the
// checkpoint is finalized or rolled back. New runs the recovery routine, so a
// checkpoint abandoned by a crashed run is reverted before any new work starts.
//
//	store, err := checkpoint.NewStore(afero.NewOsFs(), "/var/lib/lehaproxy")
//	if err != nil {
//		return err
//	}
//	rev, err := reverter.New(store, reverter.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	if err := rev.AddToCheckpoint([]string{"/etc/haproxy/certs/example.com.pem"}, ""); err != nil {
//		return err
//	}
//	// write the files...
//	if err := rev.FinalizeCheckpoint("Deployed example.com"); err != nil {
//		return err
//	}
//
// Every store failure is wrapped with ErrReverter; rollback and recovery
// failures additionally unwrap to *checkpoint.RollbackError and
// *checkpoint.RecoveryError.
package reverter
