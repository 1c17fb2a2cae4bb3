package bundle

import "errors"

var (
	// ErrMissingKey is returned when a bundle is assembled without a private key.
	ErrMissingKey = errors.New("bundle: private key is required")

	// ErrMissingCert is returned when neither a certificate nor a fullchain is given.
	ErrMissingCert = errors.New("bundle: certificate or fullchain is required")

	// ErrCommonNameRequired is returned when a self-signed bundle is requested without a name.
	ErrCommonNameRequired = errors.New("bundle: common name is required")
)
