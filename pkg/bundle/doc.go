// Package bundle builds and inspects the combined PEM files HAProxy reads from
// its crt directory: certificate chain followed by the private key.
//
//	data, err := bundle.Assemble(bundle.Material{Fullchain: fullchain, Key: key})
//	if err != nil {
//		return err
//	}
//
//	res := bundle.Validate(data)
//	if !res.Valid {
//		log.Info("skipping bundle", slog.String("reason", res.Reason))
//	}
package bundle
