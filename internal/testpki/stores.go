package testpki

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jks "github.com/pavlo-v-chernykh/keystore-go/v4"
	"software.sslmate.com/src/go-pkcs12"
)

// EncodeKeyStore encodes the identity as a key store of the given format
// ("PKCS12", "JKS" or "PEM"). The PEM form ignores the password.
func EncodeKeyStore(id *Identity, format, password string) ([]byte, error) {
	switch strings.ToUpper(format) {
	case "PKCS12":
		return pkcs12.Modern.Encode(id.Key, id.Cert, id.Chain[1:], password)
	case "JKS":
		return encodeJKSKey(id, password)
	case "PEM":
		return encodePEMKey(id)
	default:
		return nil, fmt.Errorf("unsupported store format %q", format)
	}
}

// EncodeTrustStore encodes certs as a trust store of the given format
func EncodeTrustStore(certs []*x509.Certificate, format, password string) ([]byte, error) {
	switch strings.ToUpper(format) {
	case "PKCS12":
		return pkcs12.Modern.EncodeTrustStore(certs, password)
	case "JKS":
		return encodeJKSTrust(certs, password)
	case "PEM":
		var buf bytes.Buffer
		for _, c := range certs {
			if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}); err != nil {
				return nil, err
			}
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported store format %q", format)
	}
}

func encodeJKSKey(id *Identity, password string) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}

	chain := make([]jks.Certificate, len(id.Chain))
	for i, c := range id.Chain {
		chain[i] = jks.Certificate{Type: "X509", Content: c.Raw}
	}

	ks := jks.New()
	entry := jks.PrivateKeyEntry{
		CreationTime:     time.Now(),
		PrivateKey:       der,
		CertificateChain: chain,
	}
	if err := ks.SetPrivateKeyEntry(strings.ToLower(id.Cert.Subject.CommonName), entry, []byte(password)); err != nil {
		return nil, fmt.Errorf("adding key entry: %w", err)
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJKSTrust(certs []*x509.Certificate, password string) ([]byte, error) {
	ks := jks.New()
	for i, c := range certs {
		entry := jks.TrustedCertificateEntry{
			CreationTime: time.Now(),
			Certificate:  jks.Certificate{Type: "X509", Content: c.Raw},
		}
		if err := ks.SetTrustedCertificateEntry(fmt.Sprintf("ca-%d", i), entry); err != nil {
			return nil, fmt.Errorf("adding certificate entry: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := ks.Store(&buf, []byte(password)); err != nil {
		return nil, fmt.Errorf("storing JKS: %w", err)
	}
	return buf.Bytes(), nil
}

func encodePEMKey(id *Identity) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(id.Key)
	if err != nil {
		return nil, fmt.Errorf("marshaling private key: %w", err)
	}

	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		return nil, err
	}
	for _, c := range id.Chain {
		if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// StorePaths lists the files written by WriteStores
type StorePaths struct {
	ClientKeyStore string
	ServerKeyStore string
	TrustStore     string
}

// WriteStores issues a fresh fixture and writes the client key store, the
// server key store and a shared CA trust store into dir
func WriteStores(dir, format, password string) (*StorePaths, error) {
	f, err := NewFixture()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	ext := map[string]string{"PKCS12": ".p12", "JKS": ".jks", "PEM": ".pem"}[strings.ToUpper(format)]
	if ext == "" {
		return nil, fmt.Errorf("unsupported store format %q", format)
	}

	paths := &StorePaths{
		ClientKeyStore: filepath.Join(dir, "client"+ext),
		ServerKeyStore: filepath.Join(dir, "server"+ext),
		TrustStore:     filepath.Join(dir, "truststore"+ext),
	}

	writes := []struct {
		path   string
		encode func() ([]byte, error)
	}{
		{paths.ClientKeyStore, func() ([]byte, error) { return EncodeKeyStore(f.Client, format, password) }},
		{paths.ServerKeyStore, func() ([]byte, error) { return EncodeKeyStore(f.Server, format, password) }},
		{paths.TrustStore, func() ([]byte, error) {
			return EncodeTrustStore([]*x509.Certificate{f.CA.Cert}, format, password)
		}},
	}
	for _, w := range writes {
		data, err := w.encode()
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", filepath.Base(w.path), err)
		}
		if err := os.WriteFile(w.path, data, 0o600); err != nil {
			return nil, fmt.Errorf("writing %s: %w", w.path, err)
		}
	}
	return paths, nil
}
