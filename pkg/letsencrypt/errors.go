package letsencrypt

import "errors"

var (
	// ErrDomainRequired is returned when no domain is requested.
	ErrDomainRequired = errors.New("letsencrypt: at least one domain is required")

	// ErrEmptyDomain is returned for blank entries in the domain list.
	ErrEmptyDomain = errors.New("letsencrypt: domain entries cannot be empty")

	// ErrEmailRequired is returned when no account email is given.
	ErrEmailRequired = errors.New("letsencrypt: email is required")

	// ErrInvalidAddress is returned for a malformed challenge listen address.
	ErrInvalidAddress = errors.New("letsencrypt: invalid http-01 address")

	// ErrEmptyCertificate is returned when the CA sends no certificate or key.
	ErrEmptyCertificate = errors.New("letsencrypt: empty certificate received from ACME server")
)
