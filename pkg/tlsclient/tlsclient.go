package tlsclient

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sirosfoundation/go-wsclient/pkg/keystore"
)

// Store names the store implicated in a configuration failure
type Store string

const (
	StoreKey   Store = "key store"
	StoreTrust Store = "trust store"
)

// Common errors
var (
	ErrMissingMaterial  = errors.New("store material not loaded")
	ErrNoTrustAnchors   = errors.New("no trusted certificates")
	ErrNoKeyEntry       = errors.New("no private key entry")
	ErrAmbiguousKey     = errors.New("more than one private key entry and no alias selected")
	ErrKeyMismatch      = errors.New("private key does not match certificate")
	ErrUnsupportedKey   = errors.New("unsupported private key type")
	ErrCertificateRange = errors.New("certificate is outside its validity period")
)

// ConfigurationError reports why a TLS context could not be built
type ConfigurationError struct {
	Store  Store
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("tls configuration: %s %s: %v", e.Store, e.Source, e.Err)
	}
	return fmt.Sprintf("tls configuration: %s: %v", e.Store, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

type options struct {
	serverName string
	minVersion uint16
	keyAlias   string
	now        func() time.Time
	logger     *slog.Logger
}

// Option customises Build
type Option func(*options)

// WithServerName pins the name the server certificate must match instead
// of the connection host
func WithServerName(name string) Option {
	return func(o *options) { o.serverName = name }
}

// WithMinVersion sets the minimum TLS version; TLS 1.2 by default
func WithMinVersion(v uint16) Option {
	return func(o *options) { o.minVersion = v }
}

// WithKeyAlias selects the key entry to present when the key store has several
func WithKeyAlias(alias string) Option {
	return func(o *options) { o.keyAlias = alias }
}

// WithLogger sets the logger used to report the built context
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Context is an immutable TLS client context. It is safe for concurrent use.
type Context struct {
	config *tls.Config
	leaf   *x509.Certificate
	roots  []*x509.Certificate
}

// Build validates the key and trust material and derives a TLS client context
func Build(key, trust *keystore.Material, opts ...Option) (*Context, error) {
	o := &options{
		minVersion: tls.VersionTLS12,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	roots, pool, err := trustAnchors(trust)
	if err != nil {
		return nil, err
	}

	cert, err := clientCertificate(key, o)
	if err != nil {
		return nil, err
	}

	config := &tls.Config{
		MinVersion:   o.minVersion,
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		ServerName:   o.serverName,
	}

	o.logger.Debug("tls client context built",
		slog.String("client_subject", cert.Leaf.Subject.String()),
		slog.Int("trust_anchors", len(roots)),
		slog.String("server_name", o.serverName))

	return &Context{
		config: config,
		leaf:   cert.Leaf,
		roots:  roots,
	}, nil
}

func trustAnchors(trust *keystore.Material) ([]*x509.Certificate, *x509.CertPool, error) {
	if trust == nil {
		return nil, nil, &ConfigurationError{Store: StoreTrust, Err: ErrMissingMaterial}
	}

	roots := trust.TrustedCertificates()
	if len(roots) == 0 {
		return nil, nil, &ConfigurationError{Store: StoreTrust, Source: trust.Source(), Err: ErrNoTrustAnchors}
	}

	pool := x509.NewCertPool()
	for _, c := range roots {
		pool.AddCert(c)
	}
	return roots, pool, nil
}

func clientCertificate(key *keystore.Material, o *options) (tls.Certificate, error) {
	fail := func(err error) (tls.Certificate, error) {
		source := ""
		if key != nil {
			source = key.Source()
		}
		return tls.Certificate{}, &ConfigurationError{Store: StoreKey, Source: source, Err: err}
	}

	if key == nil {
		return fail(ErrMissingMaterial)
	}

	pair, err := selectKeyPair(key.KeyPairs(), o.keyAlias)
	if err != nil {
		return fail(err)
	}

	leaf := pair.Leaf()
	signer, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return fail(fmt.Errorf("%w: %T", ErrUnsupportedKey, pair.PrivateKey))
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(leaf.PublicKey) {
		return fail(ErrKeyMismatch)
	}

	now := o.now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return fail(fmt.Errorf("%w: %s valid %s to %s", ErrCertificateRange,
			leaf.Subject, leaf.NotBefore.Format(time.RFC3339), leaf.NotAfter.Format(time.RFC3339)))
	}

	chain := make([][]byte, len(pair.Chain))
	for i, c := range pair.Chain {
		chain[i] = c.Raw
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  signer,
		Leaf:        leaf,
	}, nil
}

func selectKeyPair(pairs []keystore.KeyPair, alias string) (keystore.KeyPair, error) {
	if alias != "" {
		for _, p := range pairs {
			if p.Alias == alias {
				return p, nil
			}
		}
		return keystore.KeyPair{}, fmt.Errorf("%w: alias %q", ErrNoKeyEntry, alias)
	}

	switch len(pairs) {
	case 0:
		return keystore.KeyPair{}, ErrNoKeyEntry
	case 1:
		return pairs[0], nil
	default:
		return keystore.KeyPair{}, ErrAmbiguousKey
	}
}

// Config returns a copy of the TLS client configuration
func (c *Context) Config() *tls.Config {
	return c.config.Clone()
}

// Leaf returns the client certificate presented during the handshake
func (c *Context) Leaf() *x509.Certificate {
	return c.leaf
}

// TrustAnchors returns the certificates accepted as server certificate issuers
func (c *Context) TrustAnchors() []*x509.Certificate {
	return append([]*x509.Certificate(nil), c.roots...)
}

// NewTransport returns an HTTP transport whose every connection uses this
// context. Dial sets the connect timeout; zero means no limit.
func (c *Context) NewTransport(dial time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dial,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:     c.Config(),
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}
