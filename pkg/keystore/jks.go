package keystore

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"sort"
	"strings"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
)

// decodeJKS reads a Java KeyStore. Private key entries are protected by
// the store passphrase, as Java tooling does by default.
func decodeJKS(data []byte, passphrase string) (*Material, error) {
	ks := jks.New()
	if err := ks.Load(bytes.NewReader(data), []byte(passphrase)); err != nil {
		// keystore-go reports a failed integrity check as an invalid digest
		if strings.Contains(err.Error(), "digest") {
			return nil, ErrIncorrectPassphrase
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	aliases := ks.Aliases()
	sort.Strings(aliases)

	m := &Material{}
	for _, alias := range aliases {
		switch {
		case ks.IsPrivateKeyEntry(alias):
			entry, err := ks.GetPrivateKeyEntry(alias, []byte(passphrase))
			if err != nil {
				return nil, fmt.Errorf("%w: key entry %q: %v", ErrIncorrectPassphrase, alias, err)
			}
			kp, err := jksKeyPair(alias, entry)
			if err != nil {
				return nil, fmt.Errorf("%w: key entry %q: %v", ErrUnreadable, alias, err)
			}
			m.keyPairs = append(m.keyPairs, kp)
		case ks.IsTrustedCertificateEntry(alias):
			entry, err := ks.GetTrustedCertificateEntry(alias)
			if err != nil {
				return nil, fmt.Errorf("%w: certificate entry %q: %v", ErrUnreadable, alias, err)
			}
			cert, err := x509.ParseCertificate(entry.Certificate.Content)
			if err != nil {
				return nil, fmt.Errorf("%w: certificate entry %q: %v", ErrUnreadable, alias, err)
			}
			m.trusted = append(m.trusted, cert)
		}
	}
	return m, nil
}

func jksKeyPair(alias string, entry jks.PrivateKeyEntry) (KeyPair, error) {
	key, err := x509.ParsePKCS8PrivateKey(entry.PrivateKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("parsing private key: %w", err)
	}

	chain := make([]*x509.Certificate, 0, len(entry.CertificateChain))
	for _, c := range entry.CertificateChain {
		cert, err := x509.ParseCertificate(c.Content)
		if err != nil {
			return KeyPair{}, fmt.Errorf("parsing certificate chain: %w", err)
		}
		chain = append(chain, cert)
	}
	if len(chain) == 0 {
		return KeyPair{}, fmt.Errorf("no certificate chain")
	}

	return KeyPair{Alias: alias, PrivateKey: key, Chain: chain}, nil
}
