package keystore

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Format identifies the encoding of a store
type Format string

// Supported store formats
const (
	FormatPKCS12 Format = "PKCS12"
	FormatJKS    Format = "JKS"
	FormatPEM    Format = "PEM"
)

// Common errors
var (
	ErrUnknownFormat       = errors.New("unknown store format")
	ErrIncorrectPassphrase = errors.New("incorrect store passphrase")
	ErrUnreadable          = errors.New("store is unreadable")
	ErrEmptyStore          = errors.New("store contains no entries")
)

// ParseFormat maps a format tag such as "pkcs12", "p12" or "jks" to a Format
func ParseFormat(tag string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "PKCS12", "P12", "PFX":
		return FormatPKCS12, nil
	case "JKS":
		return FormatJKS, nil
	case "PEM":
		return FormatPEM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, tag)
	}
}

// StoreLoadError reports a store that could not be loaded
type StoreLoadError struct {
	Source string
	Format Format
	Err    error
}

func (e *StoreLoadError) Error() string {
	return fmt.Sprintf("loading %s store %s: %v", e.Format, e.Source, e.Err)
}

func (e *StoreLoadError) Unwrap() error {
	return e.Err
}

// KeyPair is a private key together with its certificate chain, leaf first
type KeyPair struct {
	Alias      string
	PrivateKey crypto.PrivateKey
	Chain      []*x509.Certificate
}

// Leaf returns the certificate belonging to the private key
func (k KeyPair) Leaf() *x509.Certificate {
	if len(k.Chain) == 0 {
		return nil
	}
	return k.Chain[0]
}

// Material is the parsed content of a key store or trust store.
//
// Material is immutable once loaded and safe for concurrent reads.
type Material struct {
	source   string
	format   Format
	keyPairs []KeyPair
	trusted  []*x509.Certificate
}

// Source returns the name the store was loaded from
func (m *Material) Source() string {
	return m.source
}

// Format returns the store format
func (m *Material) Format() Format {
	return m.format
}

// KeyPairs returns the private key entries of the store
func (m *Material) KeyPairs() []KeyPair {
	out := make([]KeyPair, len(m.keyPairs))
	for i, kp := range m.keyPairs {
		kp.Chain = append([]*x509.Certificate(nil), kp.Chain...)
		out[i] = kp
	}
	return out
}

// TrustedCertificates returns the trusted certificate entries of the store
func (m *Material) TrustedCertificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), m.trusted...)
}

// Load reads a store of the given format from r.
//
// The stream is consumed once; closing it remains the caller's job.
func Load(r io.Reader, passphrase string, format Format) (*Material, error) {
	return load(r, "<stream>", passphrase, format)
}

// LoadFile reads a store from disk
func LoadFile(path, passphrase string, format Format) (*Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &StoreLoadError{Source: path, Format: format, Err: fmt.Errorf("%w: %v", ErrUnreadable, err)}
	}
	defer f.Close()

	return load(f, path, passphrase, format)
}

func load(r io.Reader, source, passphrase string, format Format) (*Material, error) {
	fail := func(err error) (*Material, error) {
		return nil, &StoreLoadError{Source: source, Format: format, Err: err}
	}

	f, err := ParseFormat(string(format))
	if err != nil {
		return fail(err)
	}
	format = f

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrUnreadable, err))
	}
	data := buf.Bytes()
	if len(data) == 0 {
		return fail(fmt.Errorf("%w: empty input", ErrUnreadable))
	}

	var m *Material
	switch format {
	case FormatPKCS12:
		m, err = decodePKCS12(data, passphrase)
	case FormatJKS:
		m, err = decodeJKS(data, passphrase)
	case FormatPEM:
		m, err = decodePEM(data)
	}
	if err != nil {
		return fail(err)
	}
	if len(m.keyPairs) == 0 && len(m.trusted) == 0 {
		return fail(ErrEmptyStore)
	}

	m.source = source
	m.format = format
	return m, nil
}
