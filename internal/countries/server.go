package countries

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sirosfoundation/go-wsclient/pkg/keystore"
	"github.com/sirosfoundation/go-wsclient/pkg/transport"
)

// Path is where the service is mounted
const Path = "/ws"

// DefaultRealm is the basic auth realm announced in 401 challenges
const DefaultRealm = "country"

// Options configures the country service
type Options struct {
	// Addr to listen on; port 0 binds an ephemeral port.
	// Defaults to 127.0.0.1:0.
	Addr string

	// TLS enables HTTPS with mandatory client certificates. ClientCAs
	// must be set.
	TLS *tls.Config

	// BasicAuth, when set, guards the service
	BasicAuth *transport.Credentials
	Realm     string

	Repository *Repository

	// Registry, when set, receives the service metrics which are then
	// served at /metrics
	Registry *prometheus.Registry

	Logger *slog.Logger
}

// Server is a running country service
type Server struct {
	srv     *transport.Server
	secure  bool
	metrics *metrics
}

type metrics struct {
	requests *prometheus.CounterVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "countries_requests_total",
			Help: "getCountry requests by outcome.",
		}, []string{"outcome"}),
	}
	if err := reg.Register(m.requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			m.requests = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return m
}

func (m *metrics) inc(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// Start binds the listen address and serves the country service in the
// background
func Start(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}
	if opts.Realm == "" {
		opts.Realm = DefaultRealm
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	endpoint, err := NewEndpoint(opts.Repository, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if opts.Registry != nil {
		endpoint.metrics = newMetrics(opts.Registry)
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = transport.MessageEndpoint(endpoint, logger)
	if opts.BasicAuth != nil {
		handler = transport.BasicAuth(opts.Realm, *opts.BasicAuth, handler)
	}
	mux.Handle(Path, handler)
	mux.HandleFunc("GET /health", handleHealth)

	config := transport.DefaultServerConfig()
	config.Logger = logger
	if opts.TLS != nil {
		if opts.TLS.ClientCAs == nil {
			return nil, fmt.Errorf("country service: TLS requires a client CA pool")
		}
		config.TLS = opts.TLS.Clone()
		config.TLS.ClientAuth = tls.RequireAndVerifyClientCert
		if config.TLS.MinVersion == 0 {
			config.TLS.MinVersion = tls.VersionTLS12
		}
	}

	srv := transport.NewServer(opts.Addr, config, mux)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return &Server{srv: srv, secure: opts.TLS != nil, metrics: endpoint.metrics}, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Port returns the bound port
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.srv.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// URL returns the service endpoint URL
func (s *Server) URL() string {
	scheme := "http"
	if s.secure {
		scheme = "https"
	}

	host, port, _ := net.SplitHostPort(s.srv.Addr().String())
	if ip := net.ParseIP(host); ip == nil || ip.IsUnspecified() {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(host, port), Path)
}

// Done reports the serve loop's exit error
func (s *Server) Done() <-chan error {
	return s.srv.Done()
}

// Shutdown gracefully stops the service
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Close stops the service, waiting up to five seconds for in-flight requests
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// TLSConfig builds a mutual-TLS server configuration from the service's key
// store and the trust store holding the CAs of accepted clients
func TLSConfig(key, trust *keystore.Material) (*tls.Config, error) {
	if key == nil || trust == nil {
		return nil, fmt.Errorf("server TLS needs a key store and a trust store")
	}
	pairs := key.KeyPairs()
	if len(pairs) != 1 {
		return nil, fmt.Errorf("server key store %s: want exactly one key entry, found %d", key.Source(), len(pairs))
	}
	anchors := trust.TrustedCertificates()
	if len(anchors) == 0 {
		return nil, fmt.Errorf("server trust store %s: no trusted certificates", trust.Source())
	}

	pair := pairs[0]
	cert := tls.Certificate{PrivateKey: pair.PrivateKey, Leaf: pair.Leaf()}
	for _, c := range pair.Chain {
		cert.Certificate = append(cert.Certificate, c.Raw)
	}

	pool := x509.NewCertPool()
	for _, c := range anchors {
		pool.AddCert(c)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
