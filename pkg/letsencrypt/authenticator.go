package letsencrypt

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/challenge/http01"

	"github.com/dmitrymomot/lehaproxy/core/logger"
)

// DefaultHTTP01Port is the internal port HAProxy forwards
// /.well-known/acme-challenge/ requests to.
const DefaultHTTP01Port = "8000"

// Authenticator answers HTTP-01 challenges from a short-lived listener on the
// internal port. It satisfies lego's challenge.Provider.
type Authenticator struct {
	mu       sync.Mutex
	provider *http01.ProviderServer
	logger   *slog.Logger
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithAuthenticatorLogger sets the logger.
func WithAuthenticatorLogger(l *slog.Logger) AuthenticatorOption {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l.With(logger.Component("authenticator"))
		}
	}
}

// NewAuthenticator listens on addr (host:port) while a challenge is active.
// An empty addr means all interfaces on DefaultHTTP01Port; an empty port
// means DefaultHTTP01Port. proxyHeader, when set, is used for host matching
// instead of the Host header.
func NewAuthenticator(addr, proxyHeader string, opts ...AuthenticatorOption) (*Authenticator, error) {
	host, port, err := parseHTTPAddress(addr)
	if err != nil {
		return nil, err
	}
	if port == "" {
		port = DefaultHTTP01Port
	}

	provider := http01.NewProviderServer(host, port)
	if proxyHeader != "" {
		provider.SetProxyHeader(httpCanonicalHeader(proxyHeader))
	}

	a := &Authenticator{
		provider: provider,
		logger:   slog.Default().With(logger.Component("authenticator")),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// SupportedChallenges lists the challenge types the authenticator can answer.
func (a *Authenticator) SupportedChallenges() []challenge.Type {
	return []challenge.Type{challenge.HTTP01}
}

// Address returns the listen address.
func (a *Authenticator) Address() string {
	return a.provider.GetAddress()
}

// Perform starts serving keyAuth for token on the internal port.
func (a *Authenticator) Perform(domain, token, keyAuth string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.provider.Present(domain, token, keyAuth); err != nil {
		return err
	}
	a.logger.Debug("http-01 challenge listener started",
		logger.Domain(domain),
		slog.String("address", a.provider.GetAddress()))
	return nil
}

// Cleanup stops the challenge listener.
func (a *Authenticator) Cleanup(domain, token, keyAuth string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.provider.CleanUp(domain, token, keyAuth); err != nil {
		return err
	}
	a.logger.Debug("http-01 challenge listener stopped", logger.Domain(domain))
	return nil
}

// Present implements challenge.Provider.
func (a *Authenticator) Present(domain, token, keyAuth string) error {
	return a.Perform(domain, token, keyAuth)
}

// CleanUp implements challenge.Provider.
func (a *Authenticator) CleanUp(domain, token, keyAuth string) error {
	return a.Cleanup(domain, token, keyAuth)
}

var _ challenge.Provider = (*Authenticator)(nil)

func parseHTTPAddress(addr string) (string, string, error) {
	if addr == "" {
		return "", "", nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("%w %q: %w", ErrInvalidAddress, addr, err)
	}

	return host, port, nil
}
