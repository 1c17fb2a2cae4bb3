package bundle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/lehaproxy/pkg/bundle"
	"github.com/dmitrymomot/lehaproxy/pkg/bundle/bundletest"
)

func TestAssemble(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      bundle.Material
		want    string
		wantErr error
	}{
		{
			name: "fullchain wins over cert and chain",
			in:   bundle.Material{Cert: []byte("CERT\n"), Chain: []byte("CHAIN\n"), Fullchain: []byte("FULL\n"), Key: []byte("KEY\n")},
			want: "FULL\nKEY\n",
		},
		{
			name: "cert chain key",
			in:   bundle.Material{Cert: []byte("CERT\n"), Chain: []byte("CHAIN\n"), Key: []byte("KEY\n")},
			want: "CERT\nCHAIN\nKEY\n",
		},
		{
			name: "cert without chain",
			in:   bundle.Material{Cert: []byte("CERT\n"), Key: []byte("KEY\n")},
			want: "CERT\nKEY\n",
		},
		{
			name: "parts are joined byte for byte",
			in:   bundle.Material{Cert: []byte("-----END CERTIFICATE-----"), Chain: []byte("CHAIN"), Key: []byte("-----END PRIVATE KEY-----")},
			want: "-----END CERTIFICATE-----CHAIN-----END PRIVATE KEY-----",
		},
		{
			name:    "missing key",
			in:      bundle.Material{Fullchain: []byte("FULL\n")},
			wantErr: bundle.ErrMissingKey,
		},
		{
			name:    "missing cert",
			in:      bundle.Material{Key: []byte("KEY\n")},
			wantErr: bundle.ErrMissingCert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := bundle.Assemble(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	ca := bundletest.NewCA(t, "Test Issuing CA")
	m := ca.Issue(t, "example.com")
	other := ca.Issue(t, "other.com")

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		data, err := bundle.Assemble(m)
		require.NoError(t, err)

		res := bundle.Validate(data)
		assert.True(t, res.Valid, res.Reason)
		assert.True(t, res.KeyMatches)
		assert.Equal(t, "Test Issuing CA", res.IssuerCN)
		assert.Equal(t, "example.com", res.Subject)
		assert.Equal(t, []string{"example.com"}, res.DNSNames)
		assert.False(t, res.NotAfter.IsZero())
	})

	t.Run("key before certificate", func(t *testing.T) {
		t.Parallel()
		data := append(append([]byte{}, m.Key...), m.Cert...)
		res := bundle.Validate(data)
		assert.True(t, res.Valid, res.Reason)
	})

	t.Run("mismatched key", func(t *testing.T) {
		t.Parallel()
		data, err := bundle.Assemble(bundle.Material{Cert: m.Cert, Key: other.Key})
		require.NoError(t, err)

		res := bundle.Validate(data)
		assert.False(t, res.Valid)
		assert.False(t, res.KeyMatches)
		assert.Equal(t, "Test Issuing CA", res.IssuerCN)
		assert.Contains(t, res.Reason, "does not match")
	})

	t.Run("no key", func(t *testing.T) {
		t.Parallel()
		res := bundle.Validate(m.Cert)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Reason, "no private key")
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		res := bundle.Validate([]byte("not a pem file"))
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Reason)
		assert.Empty(t, res.IssuerCN)
	})
}

func TestSelfSigned(t *testing.T) {
	t.Parallel()

	data, err := bundle.SelfSigned("fallback.invalid")
	require.NoError(t, err)

	res := bundle.Validate(data)
	assert.True(t, res.Valid, res.Reason)
	assert.Contains(t, res.DNSNames, "fallback.invalid")
	assert.Equal(t, res.Subject, res.IssuerCN, "self-signed")

	_, err = bundle.SelfSigned("")
	assert.ErrorIs(t, err, bundle.ErrCommonNameRequired)
}
