package letsencrypt_test

import (
	"io"
	"net"
	"net/http"
	"testing"

	"github.com/go-acme/lego/v4/challenge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/pkg/letsencrypt"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestAuthenticatorServesChallenge(t *testing.T) {
	addr := freeAddr(t)
	a, err := letsencrypt.NewAuthenticator(addr, "")
	require.NoError(t, err)
	assert.Equal(t, []challenge.Type{challenge.HTTP01}, a.SupportedChallenges())
	assert.Equal(t, addr, a.Address())

	require.NoError(t, a.Perform("example.com", "tok3n", "tok3n.thumbprint"))

	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/.well-known/acme-challenge/tok3n", nil)
	require.NoError(t, err)
	req.Host = "example.com"

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tok3n.thumbprint", string(body))

	require.NoError(t, a.Cleanup("example.com", "tok3n", "tok3n.thumbprint"))

	_, err = net.Dial("tcp", addr)
	assert.Error(t, err, "listener must be closed after cleanup")
}

func TestAuthenticatorAddress(t *testing.T) {
	a, err := letsencrypt.NewAuthenticator("", "")
	require.NoError(t, err)
	assert.Equal(t, ":"+letsencrypt.DefaultHTTP01Port, a.Address())

	a, err = letsencrypt.NewAuthenticator("127.0.0.1:", "X-Forwarded-Host")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:"+letsencrypt.DefaultHTTP01Port, a.Address())

	_, err = letsencrypt.NewAuthenticator("no-port", "")
	assert.ErrorIs(t, err, letsencrypt.ErrInvalidAddress)
}

func TestCleanupWithoutPerform(t *testing.T) {
	a, err := letsencrypt.NewAuthenticator(freeAddr(t), "")
	require.NoError(t, err)
	assert.NoError(t, a.Cleanup("example.com", "t", "k"))
}
