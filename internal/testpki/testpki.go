// Package testpki issues throwaway certificate authorities and leaf
// certificates, and encodes them as PKCS#12, JKS or PEM stores.
//
// It backs the package tests and the `wsclient pki` command, which writes a
// demo set of stores for a local mutual-TLS setup. Nothing issued here is
// fit for production.
package testpki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// Usage selects the extended key usage of an issued certificate
type Usage int

const (
	ServerAuth Usage = iota
	ClientAuth
)

// Authority is a self-signed certificate authority
type Authority struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// Identity is an issued leaf certificate with its key
type Identity struct {
	Cert  *x509.Certificate
	Key   *ecdsa.PrivateKey
	Chain []*x509.Certificate // leaf first, then the issuing CA
}

// NewAuthority creates a self-signed CA valid for one day
func NewAuthority(commonName string) (*Authority, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating CA key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	tpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   commonName,
			Organization: []string{"go-wsclient test PKI"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}

	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("creating CA certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing CA certificate: %w", err)
	}

	return &Authority{Cert: cert, Key: key}, nil
}

// Issue signs a leaf certificate for commonName. Hosts that parse as IP
// addresses become IP SANs, the rest DNS SANs.
func (a *Authority) Issue(commonName string, usage Usage, hosts ...string) (*Identity, error) {
	return a.issue(commonName, usage, time.Now().Add(-time.Hour), time.Now().Add(24*time.Hour), hosts)
}

// IssueExpired signs a leaf certificate whose validity ended an hour ago
func (a *Authority) IssueExpired(commonName string, usage Usage, hosts ...string) (*Identity, error) {
	return a.issue(commonName, usage, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour), hosts)
}

func (a *Authority) issue(commonName string, usage Usage, notBefore, notAfter time.Time, hosts []string) (*Identity, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating leaf key: %w", err)
	}

	serial, err := newSerial()
	if err != nil {
		return nil, err
	}

	tpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	switch usage {
	case ServerAuth:
		tpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
	case ClientAuth:
		tpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tpl.IPAddresses = append(tpl.IPAddresses, ip)
		} else {
			tpl.DNSNames = append(tpl.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, tpl, a.Cert, &key.PublicKey, a.Key)
	if err != nil {
		return nil, fmt.Errorf("creating leaf certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parsing leaf certificate: %w", err)
	}

	return &Identity{
		Cert:  cert,
		Key:   key,
		Chain: []*x509.Certificate{cert, a.Cert},
	}, nil
}

// Pool returns a pool holding only this authority
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.Cert)
	return pool
}

// TLSCertificate converts the identity for use in a tls.Config
func (id *Identity) TLSCertificate() tls.Certificate {
	chain := make([][]byte, len(id.Chain))
	for i, c := range id.Chain {
		chain[i] = c.Raw
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  id.Key,
		Leaf:        id.Cert,
	}
}

// Fixture is a CA with a server identity for localhost and a client identity
type Fixture struct {
	CA     *Authority
	Server *Identity
	Client *Identity
}

// NewFixture issues a complete mutual-TLS fixture
func NewFixture() (*Fixture, error) {
	ca, err := NewAuthority("go-wsclient test CA")
	if err != nil {
		return nil, err
	}
	server, err := ca.Issue("localhost", ServerAuth, "localhost", "127.0.0.1", "::1")
	if err != nil {
		return nil, err
	}
	client, err := ca.Issue("wsclient", ClientAuth)
	if err != nil {
		return nil, err
	}
	return &Fixture{CA: ca, Server: server, Client: client}, nil
}

// ServerTLSConfig returns a server config that requires client
// certificates issued by the fixture CA
func (f *Fixture) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{f.Server.TLSCertificate()},
		ClientCAs:    f.CA.Pool(),
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}
}

func newSerial() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %w", err)
	}
	return serial, nil
}
