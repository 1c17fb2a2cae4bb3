package bundle

import (
	"crypto"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
)

// Result describes a parsed bundle. Validate never fails; callers decide
// whether to skip an invalid bundle based on Valid and Reason.
type Result struct {
	Valid      bool
	Reason     string
	IssuerCN   string
	Subject    string
	DNSNames   []string
	NotAfter   time.Time
	KeyMatches bool
}

// Validate parses a PEM bundle holding a certificate chain and a private key
// and checks that the key belongs to the leaf certificate.
func Validate(data []byte) Result {
	certs, err := certcrypto.ParsePEMBundle(data)
	if err != nil {
		return Result{Reason: "no certificate: " + err.Error()}
	}

	leaf := certs[0]
	res := Result{
		IssuerCN: leaf.Issuer.CommonName,
		Subject:  leaf.Subject.CommonName,
		DNSNames: leaf.DNSNames,
		NotAfter: leaf.NotAfter,
	}

	key, err := privateKey(data)
	if err != nil {
		res.Reason = err.Error()
		return res
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		res.Reason = "unsupported private key type"
		return res
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(leaf.PublicKey) {
		res.Reason = "private key does not match certificate"
		return res
	}

	res.KeyMatches = true
	res.Valid = true
	return res
}

// privateKey returns the first private key block found in data.
func privateKey(data []byte) (crypto.PrivateKey, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, errors.New("no private key")
		}
		if !strings.HasSuffix(block.Type, "PRIVATE KEY") {
			continue
		}
		key, err := certcrypto.ParsePEMPrivateKey(pem.EncodeToMemory(block))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		return key, nil
	}
}
