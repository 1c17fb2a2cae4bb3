// Package s3 archives finalized checkpoints to Amazon S3 or an S3-compatible
// service, so the rollback history survives the loss of the host.
//
//	arch, err := s3.New(ctx, s3.Config{
//		Bucket: "ops-backups",
//		Region: "eu-west-1",
//		Prefix: "lehaproxy/lb-01",
//	})
//	if err != nil {
//		return err
//	}
//	rev, err := reverter.New(store, reverter.WithArchiver(arch))
//
// Every file of a checkpoint (manifest, notes, pre-images) becomes one object
// under <prefix>/<checkpoint id>/. Objects are stored with SSE-S3 encryption.
package s3
