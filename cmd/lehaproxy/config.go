package main

import (
	"time"

	"github.com/dmitrymomot/lehaproxy/core/installer"
	"github.com/dmitrymomot/lehaproxy/integration/storage/s3"
)

// Config is loaded from the environment (and .env) via core/config.
type Config struct {
	WorkDir     string        `env:"WORK_DIR" envDefault:"/var/lib/lehaproxy"`
	LockTimeout time.Duration `env:"LOCK_TIMEOUT" envDefault:"0s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	Installer installer.Config

	ACMEEmail         string   `env:"ACME_EMAIL"`
	ACMEDirectoryURL  string   `env:"ACME_DIRECTORY_URL"`
	Domains           []string `env:"DOMAINS" envSeparator:","`
	HTTP01Address     string   `env:"HTTP01_ADDRESS" envDefault:":8000"`
	HTTP01ProxyHeader string   `env:"HTTP01_PROXY_HEADER"`

	// Archive is disabled unless a bucket is set.
	Archive s3.Config `envPrefix:"ARCHIVE_S3_"`
}
