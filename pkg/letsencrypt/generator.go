package letsencrypt

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"

	"github.com/dmitrymomot/lehaproxy/core/logger"
	"github.com/dmitrymomot/lehaproxy/pkg/bundle"
)

// Option configures the certificate generator.
type Option func(*config) error

// WithCADirectoryURL overrides the ACME directory URL (defaults to Let's Encrypt production).
func WithCADirectoryURL(url string) Option {
	return func(cfg *config) error {
		cfg.caDirURL = strings.TrimSpace(url)
		return nil
	}
}

// WithHTTP01Address selects the bind address for the internal HTTP-01 challenge server (host:port).
// Leave empty to listen on all interfaces on DefaultHTTP01Port.
func WithHTTP01Address(addr string) Option {
	return func(cfg *config) error {
		cfg.http01Address = strings.TrimSpace(addr)
		return nil
	}
}

// WithHTTP01ProxyHeader sets the header the challenge server inspects for host matching when behind a proxy (e.g. X-Forwarded-Host).
func WithHTTP01ProxyHeader(header string) Option {
	return func(cfg *config) error {
		cfg.proxyHeader = strings.TrimSpace(header)
		return nil
	}
}

// WithAuthenticator uses an existing authenticator instead of building one from the address options.
func WithAuthenticator(a *Authenticator) Option {
	return func(cfg *config) error {
		cfg.authenticator = a
		return nil
	}
}

// WithCertificateKeyType overrides the key type used for the issued certificate's private key.
func WithCertificateKeyType(keyType certcrypto.KeyType) Option {
	return func(cfg *config) error {
		cfg.certificateKeyType = keyType
		return nil
	}
}

// WithBundle toggles whether the returned certificate includes the issuer chain concatenated to the leaf cert (default true).
func WithBundle(bundle bool) Option {
	return func(cfg *config) error {
		cfg.bundle = bundle
		return nil
	}
}

// WithRetry sets how many times a transient issuance failure is attempted
// and the initial backoff, doubled after each attempt. Defaults to 3 and 5s.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(cfg *config) error {
		if attempts < 1 {
			return fmt.Errorf("letsencrypt: retry attempts must be positive, got %d", attempts)
		}
		cfg.maxAttempts = attempts
		cfg.retryBackoff = backoff
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) error {
		cfg.logger = l
		return nil
	}
}

// Generator issues certificates via an ACME CA and returns them in memory.
// Writing them to disk is left to the installer, which owns checkpoints.
type Generator struct {
	cfg             config
	clientFactory   clientFactory
	accountKeyMaker func() (crypto.PrivateKey, error)
}

type config struct {
	domains            []string
	email              string
	caDirURL           string
	certificateKeyType certcrypto.KeyType
	bundle             bool
	http01Address      string
	proxyHeader        string
	authenticator      *Authenticator
	maxAttempts        int
	retryBackoff       time.Duration
	logger             *slog.Logger
}

// ACME directories of Let's Encrypt.
const (
	ProductionDirectoryURL = lego.LEDirectoryProduction
	StagingDirectoryURL    = lego.LEDirectoryStaging

	defaultDirectoryURL = ProductionDirectoryURL
)

// NewGenerator constructs a Generator for the provided domain list and account email.
// The first domain becomes the certificate's common name.
func NewGenerator(domains []string, email string, opts ...Option) (*Generator, error) {
	cfg := config{
		domains:            cloneStrings(domains),
		email:              strings.TrimSpace(email),
		caDirURL:           defaultDirectoryURL,
		certificateKeyType: certcrypto.RSA2048,
		bundle:             true,
		maxAttempts:        3,
		retryBackoff:       5 * time.Second,
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	gen := &Generator{
		cfg:           cfg,
		clientFactory: defaultClientFactory,
		accountKeyMaker: func() (crypto.PrivateKey, error) {
			return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		},
	}

	return gen, nil
}

// Domains returns the domains the generator requests.
func (g *Generator) Domains() []string {
	return cloneStrings(g.cfg.domains)
}

// Obtain gets a fresh certificate from the CA, answering HTTP-01 challenges
// through the authenticator.
func (g *Generator) Obtain(ctx context.Context) (bundle.Material, error) {
	if err := ctx.Err(); err != nil {
		return bundle.Material{}, err
	}
	start := time.Now()

	accountKey, err := g.accountKeyMaker()
	if err != nil {
		return bundle.Material{}, fmt.Errorf("generate account key: %w", err)
	}

	user := &accountUser{
		email: g.cfg.email,
		key:   accountKey,
	}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = g.cfg.caDirURL
	legoCfg.Certificate.KeyType = g.cfg.certificateKeyType

	client, err := g.clientFactory(legoCfg)
	if err != nil {
		return bundle.Material{}, fmt.Errorf("create acme client: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return bundle.Material{}, err
	}

	if err := client.SetHTTP01Provider(g.cfg.authenticator); err != nil {
		return bundle.Material{}, fmt.Errorf("configure http-01 provider: %w", err)
	}

	registrationResource, err := client.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return bundle.Material{}, fmt.Errorf("register account: %w", err)
	}
	user.registration = registrationResource

	if err := ctx.Err(); err != nil {
		return bundle.Material{}, err
	}

	certRes, err := g.obtain(ctx, client, certificate.ObtainRequest{
		Domains:        g.cfg.domains,
		Bundle:         g.cfg.bundle,
		EmailAddresses: []string{g.cfg.email},
	})
	if err != nil {
		return bundle.Material{}, err
	}

	m, err := g.material(certRes)
	if err != nil {
		return bundle.Material{}, err
	}

	g.cfg.logger.Info("certificate obtained",
		logger.Domain(g.cfg.domains[0]),
		logger.Count("domains", len(g.cfg.domains)),
		logger.Elapsed(start))
	return m, nil
}

func (g *Generator) material(certRes *certificate.Resource) (bundle.Material, error) {
	if certRes == nil || len(certRes.Certificate) == 0 {
		return bundle.Material{}, fmt.Errorf("%w: no certificate", ErrEmptyCertificate)
	}
	if len(certRes.PrivateKey) == 0 {
		return bundle.Material{}, fmt.Errorf("%w: no private key", ErrEmptyCertificate)
	}

	m := bundle.Material{
		Key:   certRes.PrivateKey,
		Chain: certRes.IssuerCertificate,
	}
	// With bundling on, the certificate already carries the issuer chain.
	if g.cfg.bundle {
		m.Fullchain = certRes.Certificate
	} else {
		m.Cert = certRes.Certificate
	}
	return m, nil
}

func (cfg *config) applyDefaults() error {
	if len(cfg.domains) == 0 {
		return ErrDomainRequired
	}

	for i := range cfg.domains {
		cfg.domains[i] = strings.TrimSpace(cfg.domains[i])
		if cfg.domains[i] == "" {
			return ErrEmptyDomain
		}
	}

	if cfg.email == "" {
		return ErrEmailRequired
	}

	if cfg.caDirURL == "" {
		cfg.caDirURL = defaultDirectoryURL
	}

	if cfg.certificateKeyType == "" {
		cfg.certificateKeyType = certcrypto.RSA2048
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	cfg.logger = cfg.logger.With(logger.Component("letsencrypt"))

	if cfg.authenticator == nil {
		a, err := NewAuthenticator(cfg.http01Address, cfg.proxyHeader, WithAuthenticatorLogger(cfg.logger))
		if err != nil {
			return err
		}
		cfg.authenticator = a
	}

	return nil
}

func httpCanonicalHeader(header string) string {
	return textprotoCanonicalMIMEHeader(header)
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	out := make([]string, len(values))
	copy(out, values)
	return out
}

type clientFactory func(*lego.Config) (acmeClient, error)

type acmeClient interface {
	Register(options registration.RegisterOptions) (*registration.Resource, error)
	SetHTTP01Provider(provider challenge.Provider) error
	Obtain(request certificate.ObtainRequest) (*certificate.Resource, error)
}

func defaultClientFactory(cfg *lego.Config) (acmeClient, error) {
	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	return &legoClientAdapter{client: client}, nil
}

type legoClientAdapter struct {
	client *lego.Client
}

func (l *legoClientAdapter) Register(options registration.RegisterOptions) (*registration.Resource, error) {
	return l.client.Registration.Register(options)
}

func (l *legoClientAdapter) SetHTTP01Provider(provider challenge.Provider) error {
	return l.client.Challenge.SetHTTP01Provider(provider)
}

func (l *legoClientAdapter) Obtain(request certificate.ObtainRequest) (*certificate.Resource, error) {
	return l.client.Certificate.Obtain(request)
}

type accountUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *accountUser) GetEmail() string {
	return u.email
}

func (u *accountUser) GetRegistration() *registration.Resource {
	return u.registration
}

func (u *accountUser) GetPrivateKey() crypto.PrivateKey {
	return u.key
}

var textprotoCanonicalMIMEHeader = func(v string) string {
	if v == "" {
		return ""
	}
	return http.CanonicalHeaderKey(v)
}
