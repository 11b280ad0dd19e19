package transport

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirosfoundation/go-wsclient/pkg/compression"
)

// MaxMessageSize bounds request bodies accepted by MessageEndpoint, after
// decompression
const MaxMessageSize = 16 << 20

// ServerConfig contains HTTP(S) server configuration
type ServerConfig struct {
	// TLS enables HTTPS. Set ClientAuth to require client certificates.
	TLS *tls.Config

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Logger *slog.Logger
}

// DefaultServerConfig returns a plain HTTP server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}
}

// Response is the outcome of handling one message
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// MessageHandler processes incoming XML messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, contentType string, message []byte) (*Response, error)
}

// MessageEndpoint adapts a MessageHandler to HTTP POST requests
func MessageEndpoint(h MessageHandler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, MaxMessageSize+1))
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if len(body) > MaxMessageSize {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		switch enc := r.Header.Get("Content-Encoding"); {
		case enc == "" || strings.EqualFold(enc, "identity"):
		case compression.IsGzip(enc):
			body, err = compression.NewCompressor().WithLimit(MaxMessageSize).Decompress(body)
			if errors.Is(err, compression.ErrTooLarge) {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			if err != nil {
				http.Error(w, "Failed to decompress request body", http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "Unsupported content encoding", http.StatusUnsupportedMediaType)
			return
		}

		resp, err := h.HandleMessage(r.Context(), r.Header.Get("Content-Type"), body)
		if err != nil {
			logger.Error("message handling failed",
				slog.String("path", r.URL.Path),
				slog.String("request_id", r.Header.Get(HeaderRequestID)),
				slog.Any("error", err))
			http.Error(w, fmt.Sprintf("Failed to process message: %v", err), http.StatusInternalServerError)
			return
		}

		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		contentType := resp.ContentType
		if contentType == "" {
			contentType = ContentTypeXML
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write(resp.Body)
	})
}

// BasicAuth rejects requests without the expected credentials with a
// 401 challenge for realm
func BasicAuth(realm string, creds Credentials, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(creds.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(creds.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server serves an http.Handler over HTTP or HTTPS
type Server struct {
	server   *http.Server
	config   *ServerConfig
	logger   *slog.Logger
	listener net.Listener
	done     chan error
}

// NewServer creates a new server for addr. Port 0 binds an ephemeral port.
func NewServer(addr string, config *ServerConfig, handler http.Handler) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			TLSConfig:    config.TLS,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
		logger: logger,
	}
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	if s.config.TLS != nil && len(s.config.TLS.Certificates) == 0 && s.config.TLS.GetCertificate == nil {
		return fmt.Errorf("no TLS certificates configured")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	if s.config.TLS != nil {
		ln = tls.NewListener(ln, s.config.TLS)
	}
	s.listener = ln
	s.done = make(chan error, 1)

	go func() {
		err := s.server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()

	s.logger.Info("server started",
		slog.String("addr", ln.Addr().String()),
		slog.Bool("tls", s.config.TLS != nil))
	return nil
}

// Addr returns the bound address; nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Done reports the serve loop's exit error
func (s *Server) Done() <-chan error {
	return s.done
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.logger.Info("server stopped")
	return err
}
