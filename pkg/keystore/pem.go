package keystore

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// decodePEM reads certificates and at most one unencrypted private key.
// A key makes the file a key store whose chain is every certificate in
// file order; without a key every certificate is trusted.
func decodePEM(data []byte) (*Material, error) {
	var (
		certs []*x509.Certificate
		key   crypto.PrivateKey
	)

	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing certificate: %v", ErrUnreadable, err)
			}
			certs = append(certs, cert)
		case "ENCRYPTED PRIVATE KEY":
			return nil, fmt.Errorf("%w: encrypted PEM keys are not supported", ErrUnreadable)
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			if key != nil {
				return nil, fmt.Errorf("%w: more than one private key", ErrUnreadable)
			}
			k, err := parsePrivateKey(block)
			if err != nil {
				return nil, fmt.Errorf("%w: parsing private key: %v", ErrUnreadable, err)
			}
			key = k
		}
	}

	if len(certs) == 0 && key == nil {
		return nil, fmt.Errorf("%w: no PEM blocks found", ErrUnreadable)
	}

	if key == nil {
		return &Material{trusted: certs}, nil
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: private key without certificate", ErrUnreadable)
	}
	return &Material{
		keyPairs: []KeyPair{{
			Alias:      certs[0].Subject.CommonName,
			PrivateKey: key,
			Chain:      certs,
		}},
	}, nil
}

func parsePrivateKey(block *pem.Block) (crypto.PrivateKey, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	}
}
