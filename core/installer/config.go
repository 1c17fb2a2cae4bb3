package installer

import "github.com/dmitrymomot/lehaproxy/pkg/haproxy"

// Config holds installer settings. Field tags follow core/config conventions.
type Config struct {
	// CrtDir is the directory HAProxy loads certificate bundles from.
	CrtDir string `env:"CRT_DIR" envDefault:"/opt/certbot/haproxy_fullchains"`
	// CrtSuffix is appended to the domain to form the bundle file name.
	CrtSuffix string `env:"CRT_SUFFIX" envDefault:".pem"`
	// CACommonName is the issuer common name of certificates this tool manages.
	CACommonName string `env:"CA_COMMON_NAME" envDefault:"R11"`
	// NoFallbackCert disables the self-signed placeholder bundle.
	NoFallbackCert bool `env:"NO_FALLBACK_CERT" envDefault:"false"`
	// FallbackCommonName is the DNS name put into the placeholder bundle.
	FallbackCommonName string `env:"FALLBACK_COMMON_NAME" envDefault:"localhost"`

	HAProxy haproxy.Commands `envPrefix:"HAPROXY_"`
}

const fallbackName = "fallback"
