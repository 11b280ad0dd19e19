package keystore

import (
	"crypto/x509"
	"errors"
	"fmt"

	"software.sslmate.com/src/go-pkcs12"
)

// decodePKCS12 reads either a key store (one key bag plus chain) or a
// Java-style trust store holding only certificates.
func decodePKCS12(data []byte, passphrase string) (*Material, error) {
	key, leaf, caCerts, err := pkcs12.DecodeChain(data, passphrase)
	if err == nil {
		return &Material{
			keyPairs: []KeyPair{{
				Alias:      leaf.Subject.CommonName,
				PrivateKey: key,
				Chain:      append([]*x509.Certificate{leaf}, caCerts...),
			}},
		}, nil
	}
	if errors.Is(err, pkcs12.ErrIncorrectPassword) {
		return nil, ErrIncorrectPassphrase
	}

	certs, tsErr := pkcs12.DecodeTrustStore(data, passphrase)
	if tsErr != nil {
		if errors.Is(tsErr, pkcs12.ErrIncorrectPassword) {
			return nil, ErrIncorrectPassphrase
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return &Material{trusted: certs}, nil
}
