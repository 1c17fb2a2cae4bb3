// Package letsencrypt obtains certificates from an ACME CA using HTTP-01
// challenges answered on an internal port.
//
// HAProxy forwards /.well-known/acme-challenge/ to the internal port
// (DefaultHTTP01Port unless configured), where the Authenticator starts a
// listener for the duration of each challenge.
//
//	gen, err := letsencrypt.NewGenerator(
//		[]string{"example.com", "www.example.com"},
//		"admin@example.com",
//		letsencrypt.WithHTTP01Address("127.0.0.1:8000"),
//	)
//	if err != nil {
//		return err
//	}
//
//	m, err := gen.Obtain(ctx)
//	if err != nil {
//		return err
//	}
//	// hand m to the installer: inst.DeployBundle("example.com", m)
//
// Use WithCADirectoryURL(StagingDirectoryURL) against the staging
// environment while testing.
package letsencrypt
