package bundle

import (
	"crypto/rsa"
	"fmt"

	"github.com/go-acme/lego/v4/certcrypto"
)

// SelfSigned returns a bundle with a fresh RSA 2048 key and a certificate
// signed by that key for commonName. HAProxy refuses to start when a crt
// directory is empty, so the bundle serves as a placeholder.
func SelfSigned(commonName string) ([]byte, error) {
	if commonName == "" {
		return nil, ErrCommonNameRequired
	}

	key, err := certcrypto.GeneratePrivateKey(certcrypto.RSA2048)
	if err != nil {
		return nil, fmt.Errorf("bundle: generate key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("bundle: unexpected key type %T", key)
	}

	cert, err := certcrypto.GeneratePemCert(rsaKey, commonName, nil)
	if err != nil {
		return nil, fmt.Errorf("bundle: generate certificate: %w", err)
	}

	return Assemble(Material{Cert: cert, Key: certcrypto.PEMEncode(rsaKey)})
}
