package bundle

import (
	"bytes"
)

// Material is the PEM input for one HAProxy bundle.
type Material struct {
	Cert      []byte
	Key       []byte
	Chain     []byte
	Fullchain []byte
}

// Assemble concatenates material into the single file HAProxy loads:
// fullchain followed by key when a fullchain is present, otherwise
// certificate, chain (if any) and key. Parts are joined byte for byte.
func Assemble(m Material) ([]byte, error) {
	if len(m.Key) == 0 {
		return nil, ErrMissingKey
	}

	var parts [][]byte
	switch {
	case len(m.Fullchain) > 0:
		parts = append(parts, m.Fullchain)
	case len(m.Cert) > 0:
		parts = append(parts, m.Cert)
		if len(m.Chain) > 0 {
			parts = append(parts, m.Chain)
		}
	default:
		return nil, ErrMissingCert
	}
	parts = append(parts, m.Key)

	return bytes.Join(parts, nil), nil
}
