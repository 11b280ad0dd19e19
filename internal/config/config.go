// Package config handles configuration loading for the wsclient command.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This keeps store passwords
// and basic auth credentials out of the file itself.
//
// # Configuration Sections
//
//   - client: endpoint, plain or secure transport, message style, timeouts
//   - tls: client key store, trust store and expected server name
//   - auth: basic auth credentials
//   - server: the sample country service (address, mutual TLS, basic auth)
//   - logging: level and output format
//
// # Example Configuration
//
//	client:
//	  endpoint: https://localhost:8443/ws
//	  transport: secure
//	  messageStyle: soap11
//	  timeout: 30s
//
//	tls:
//	  keyStore:
//	    path: /etc/wsclient/client.p12
//	    password: ${KEYSTORE_PASSWORD}
//	    type: PKCS12
//	  trustStore:
//	    path: /etc/wsclient/truststore.jks
//	    password: ${TRUSTSTORE_PASSWORD}
//	    type: JKS
//
// See [Load] for loading configuration from a file.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-wsclient/pkg/keystore"
)

// Transport modes
const (
	TransportPlain  = "plain"
	TransportSecure = "secure"
)

// Config is the root configuration structure
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	TLS     TLSConfig     `yaml:"tls"`
	Auth    AuthConfig    `yaml:"auth"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig holds RPC client settings
type ClientConfig struct {
	Endpoint       string        `yaml:"endpoint" validate:"omitempty,url"`
	Transport      string        `yaml:"transport" validate:"oneof=plain secure"`
	MessageStyle   string        `yaml:"messageStyle" validate:"oneof=pox soap11"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	ConnectTimeout time.Duration `yaml:"connectTimeout" validate:"gte=0"`

	// Retries is the number of extra attempts the CLI makes on connection
	// failures and timeouts. Zero disables retrying.
	Retries uint `yaml:"retries" validate:"lte=10"`

	// Compress gzips request bodies
	Compress bool `yaml:"compress"`
}

// StoreConfig locates a key store or trust store
type StoreConfig struct {
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
	Type     string `yaml:"type"`
}

// TLSConfig holds the client's TLS material
type TLSConfig struct {
	KeyStore   StoreConfig `yaml:"keyStore"`
	TrustStore StoreConfig `yaml:"trustStore"`
	KeyAlias   string      `yaml:"keyAlias"`

	// ServerName overrides the host name expected in the server certificate
	ServerName string `yaml:"serverName" validate:"omitempty,hostname_rfc1123"`
}

// AuthConfig holds basic auth credentials
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password" validate:"required_with=Username"`
}

// ServerConfig holds country service settings
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"hostname_port"`
	TLS  struct {
		Enabled    bool        `yaml:"enabled"`
		KeyStore   StoreConfig `yaml:"keyStore"`
		TrustStore StoreConfig `yaml:"trustStore"`
	} `yaml:"tls"`
	BasicAuth AuthConfig `yaml:"basicAuth"`
	Realm     string     `yaml:"realm"`
	Metrics   bool       `yaml:"metrics"`
}

// LoggingConfig holds log output settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their YAML names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Client.Transport == "" {
		c.Client.Transport = TransportPlain
	}
	if c.Client.MessageStyle == "" {
		c.Client.MessageStyle = "pox"
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = 30 * time.Second
	}
	if c.Client.ConnectTimeout == 0 {
		c.Client.ConnectTimeout = 10 * time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.Realm == "" {
		c.Server.Realm = "country"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				field := strings.TrimPrefix(fe.Namespace(), "Config.")
				msgs = append(msgs, fmt.Sprintf("%s failed '%s' check", field, fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Client.Transport == TransportSecure {
		if err := c.TLS.KeyStore.check("tls.keyStore"); err != nil {
			return err
		}
		if err := c.TLS.TrustStore.check("tls.trustStore"); err != nil {
			return err
		}
	}

	if c.Server.TLS.Enabled {
		if err := c.Server.TLS.KeyStore.check("server.tls.keyStore"); err != nil {
			return err
		}
		if err := c.Server.TLS.TrustStore.check("server.tls.trustStore"); err != nil {
			return err
		}
	}

	return nil
}

// check requires path, type and password; PEM stores carry no password
func (s StoreConfig) check(name string) error {
	if s.Path == "" {
		return fmt.Errorf("%s.path is required", name)
	}
	if s.Type == "" {
		return fmt.Errorf("%s.type is required", name)
	}
	format, err := keystore.ParseFormat(s.Type)
	if err != nil {
		return fmt.Errorf("%s.type: %w", name, err)
	}
	if s.Password == "" && format != keystore.FormatPEM {
		return fmt.Errorf("%s.password is required for %s stores", name, format)
	}
	return nil
}

// Load reads the configured store
func (s StoreConfig) Load() (*keystore.Material, error) {
	format, err := keystore.ParseFormat(s.Type)
	if err != nil {
		return nil, err
	}
	return keystore.LoadFile(s.Path, s.Password, format)
}
