package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-wsclient/pkg/compression"
	"github.com/sirosfoundation/go-wsclient/pkg/tlsclient"
)

const (
	// ContentTypeXML is the default content type of outbound messages
	ContentTypeXML = "application/xml; charset=utf-8"

	// HeaderRequestID carries a per-call correlation ID
	HeaderRequestID = "X-Request-ID"

	maxErrorBody = 4096
)

// Credentials are basic-auth credentials
type Credentials struct {
	Username string
	Password string
}

// SenderConfig contains Request Sender configuration
type SenderConfig struct {
	// TLS selects the secure transport. Nil means plain.
	TLS *tlsclient.Context

	// Timeout bounds a whole round trip; expiry is reported as KindTimeout
	Timeout         time.Duration
	ConnectTimeout  time.Duration
	IdleConnTimeout time.Duration

	UserAgent      string
	DefaultHeaders http.Header

	Metrics *Metrics
	Logger  *slog.Logger
}

// DefaultSenderConfig returns a plain sender configuration
func DefaultSenderConfig() *SenderConfig {
	return &SenderConfig{
		Timeout:         30 * time.Second,
		ConnectTimeout:  10 * time.Second,
		IdleConnTimeout: 90 * time.Second,
		UserAgent:       "go-wsclient/1.0",
		DefaultHeaders:  http.Header{"Accept": []string{"application/xml"}},
	}
}

// Sender performs blocking request/response exchanges over HTTP.
//
// A Sender is safe for concurrent use. It never retries.
type Sender struct {
	client  *http.Client
	secure  bool
	config  *SenderConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewSender creates a new Request Sender
func NewSender(config *SenderConfig) *Sender {
	if config == nil {
		config = DefaultSenderConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var base *http.Transport
	if config.TLS != nil {
		base = config.TLS.NewTransport(config.ConnectTimeout)
	} else {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   config.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
		}
	}
	if config.IdleConnTimeout > 0 {
		base.IdleConnTimeout = config.IdleConnTimeout
	}

	var rt http.RoundTripper = &authTransport{next: base}
	if config.TLS != nil {
		rt = &secureOnlyTransport{next: rt}
	}

	return &Sender{
		client: &http.Client{
			Transport: rt,
			Timeout:   config.Timeout,
		},
		secure:  config.TLS != nil,
		config:  config,
		metrics: config.Metrics,
		logger:  logger,
	}
}

// Secure reports whether the sender uses the TLS client context
func (s *Sender) Secure() bool {
	return s.secure
}

type sendOptions struct {
	contentType string
	headers     http.Header
	credentials *Credentials
	compress    bool
}

// SendOption customises a single Send
type SendOption func(*sendOptions)

// WithCredentials attaches basic-auth credentials to every request of the
// call that targets the endpoint's host and port, whatever the path or realm
func WithCredentials(c Credentials) SendOption {
	return func(o *sendOptions) { o.credentials = &c }
}

// WithContentType overrides the outbound content type
func WithContentType(ct string) SendOption {
	return func(o *sendOptions) { o.contentType = ct }
}

// WithHeader adds a request header
func WithHeader(key, value string) SendOption {
	return func(o *sendOptions) { o.headers.Add(key, value) }
}

// WithCompression gzips the request body and sets Content-Encoding
func WithCompression() SendOption {
	return func(o *sendOptions) { o.compress = true }
}

// Send posts message to endpoint and returns the complete response body
func (s *Sender) Send(ctx context.Context, endpoint string, message []byte, opts ...SendOption) ([]byte, error) {
	o := &sendOptions{
		contentType: ContentTypeXML,
		headers:     http.Header{},
	}
	for _, opt := range opts {
		opt(o)
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		if err == nil {
			err = fmt.Errorf("unsupported endpoint URL")
		}
		return nil, &TransportError{Kind: KindInvalidEndpoint, Endpoint: endpoint, Err: err}
	}
	if s.secure && u.Scheme != "https" {
		return nil, &TransportError{Kind: KindInvalidEndpoint, Endpoint: endpoint, Err: ErrPlaintextForbidden}
	}

	if o.credentials != nil {
		ctx = context.WithValue(ctx, authKey{}, &authScope{hostPort: canonicalHostPort(u), creds: *o.credentials})
	}

	if o.compress {
		if message, err = compression.NewCompressor().Compress(message); err != nil {
			return nil, &TransportError{Kind: KindOther, Endpoint: endpoint, Err: err}
		}
		o.headers.Set("Content-Encoding", compression.Encoding)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(message))
	if err != nil {
		return nil, &TransportError{Kind: KindInvalidEndpoint, Endpoint: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	for k, vs := range s.config.DefaultHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range o.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	req.Header.Set("Content-Type", o.contentType)
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}
	requestID := req.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
		req.Header.Set(HeaderRequestID, requestID)
	}

	log := s.logger.With(
		slog.String("endpoint", endpoint),
		slog.String("request_id", requestID),
		slog.Bool("secure", s.secure))

	start := time.Now()
	body, err := s.roundTrip(req, endpoint)
	elapsed := time.Since(start)

	if err != nil {
		terr := err.(*TransportError)
		s.metrics.observe(string(terr.Kind), elapsed)
		log.Warn("round trip failed",
			slog.String("kind", string(terr.Kind)),
			slog.Int("status", terr.StatusCode),
			slog.Duration("duration", elapsed),
			slog.Any("error", terr.Err))
		return nil, err
	}

	s.metrics.observe("ok", elapsed)
	log.Debug("round trip completed",
		slog.Int("bytes", len(body)),
		slog.Duration("duration", elapsed))
	return body, nil
}

func (s *Sender) roundTrip(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Kind: classify(err), Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &TransportError{
			Kind:       KindHTTPStatus,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: classify(err), Endpoint: endpoint, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	return body, nil
}

// CloseIdleConnections releases pooled connections
func (s *Sender) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}
