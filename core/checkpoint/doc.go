// Package checkpoint stores file changes as checkpoints that can be rolled back.
//
// A Store keeps at most one pending checkpoint and a history of finalized ones:
//
//	<workDir>/backups/IN_PROGRESS/manifest.json    pending checkpoint
//	<workDir>/backups/IN_PROGRESS/CHANGES_SINCE    human-readable notes
//	<workDir>/backups/IN_PROGRESS/<n>_<basename>   pre-images
//	<workDir>/backups/<id>/...                     finalized checkpoints
//
// The IN_PROGRESS directory doubles as the crash marker: if it exists when a
// process starts, the previous run died before finalizing and RecoverInProgress
// reverts it.
//
// Files that existed before a checkpoint are copied as pre-images before the
// caller modifies them; files that did not exist are recorded as new and are
// deleted on rollback. A path is never recorded both ways.
//
//	store, err := checkpoint.NewStore(afero.NewOsFs(), "/var/lib/lehaproxy")
//	if err != nil {
//		return err
//	}
//	if err := store.Begin(checkpoint.KindPermanent, []string{"/etc/ssl/crt/a.example.pem"}, "Changed certificate for domain a.example\n"); err != nil {
//		return err
//	}
//	// ... write the new bytes ...
//	cp, err := store.MergeIntoPermanent("renewal")
//
// Rollback reverts the newest checkpoints first and stops at the first failure;
// the returned *RollbackError names the checkpoint that could not be reverted.
package checkpoint
