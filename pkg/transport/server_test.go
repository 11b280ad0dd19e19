package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirosfoundation/go-wsclient/internal/testpki"
)

// mockMessageHandler is a test implementation of MessageHandler
type mockMessageHandler struct {
	response *Response
	err      error
	received []byte
}

func (h *mockMessageHandler) HandleMessage(ctx context.Context, contentType string, message []byte) (*Response, error) {
	h.received = message
	if h.err != nil {
		return nil, h.err
	}
	return h.response, nil
}

func TestDefaultServerConfig(t *testing.T) {
	config := DefaultServerConfig()

	if config.TLS != nil {
		t.Error("expected plain server by default")
	}
	if config.ReadTimeout != 30*time.Second {
		t.Errorf("expected ReadTimeout 30s, got %v", config.ReadTimeout)
	}
	if config.IdleTimeout != 90*time.Second {
		t.Errorf("expected IdleTimeout 90s, got %v", config.IdleTimeout)
	}
}

func TestMessageEndpoint_MethodNotAllowed(t *testing.T) {
	endpoint := MessageEndpoint(&mockMessageHandler{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	w := httptest.NewRecorder()
	endpoint.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestMessageEndpoint_Success(t *testing.T) {
	handler := &mockMessageHandler{
		response: &Response{Body: []byte("<Response/>")},
	}
	endpoint := MessageEndpoint(handler, nil)

	req := httptest.NewRequest(http.MethodPost, "/ws", strings.NewReader("<Request/>"))
	w := httptest.NewRecorder()
	endpoint.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != ContentTypeXML {
		t.Errorf("expected content-type %q, got %q", ContentTypeXML, ct)
	}
	if w.Body.String() != "<Response/>" {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
	if string(handler.received) != "<Request/>" {
		t.Errorf("unexpected message: %s", handler.received)
	}
}

func TestMessageEndpoint_CustomStatus(t *testing.T) {
	handler := &mockMessageHandler{
		response: &Response{StatusCode: http.StatusInternalServerError, ContentType: "text/xml", Body: []byte("<Fault/>")},
	}
	endpoint := MessageEndpoint(handler, nil)

	req := httptest.NewRequest(http.MethodPost, "/ws", http.NoBody)
	w := httptest.NewRecorder()
	endpoint.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/xml" {
		t.Errorf("unexpected content-type %q", ct)
	}
}

func TestMessageEndpoint_HandlerError(t *testing.T) {
	endpoint := MessageEndpoint(&mockMessageHandler{err: http.ErrAbortHandler}, nil)

	req := httptest.NewRequest(http.MethodPost, "/ws", http.NoBody)
	w := httptest.NewRecorder()
	endpoint.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
}

func TestBasicAuth(t *testing.T) {
	handler := BasicAuth("country", Credentials{Username: "user", Password: "pass"},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodPost, "/ws", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Basic realm="country"` {
		t.Errorf("unexpected challenge %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/ws", nil)
	req.SetBasicAuth("user", "pass")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", w.Code)
	}
}

func TestServer_StartNoCertificates(t *testing.T) {
	server := NewServer("127.0.0.1:0", &ServerConfig{TLS: &tls.Config{}}, nil)

	if err := server.Start(); err == nil {
		t.Error("expected error when no certificates configured")
	}
}

func TestServer_Lifecycle(t *testing.T) {
	handler := &mockMessageHandler{response: &Response{Body: []byte("<Pong/>")}}
	server := NewServer("127.0.0.1:0", nil, MessageEndpoint(handler, nil))

	if server.Addr() != nil {
		t.Error("expected nil address before Start")
	}
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	response, err := NewSender(nil).Send(context.Background(), "http://"+server.Addr().String()+"/ws", []byte("<Ping/>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(response) != "<Pong/>" {
		t.Errorf("unexpected response: %s", response)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-server.Done(); err != nil {
		t.Errorf("unexpected serve error: %v", err)
	}
}

func TestServer_MutualTLS(t *testing.T) {
	f, err := testpki.NewFixture()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	handler := &mockMessageHandler{response: &Response{Body: []byte("<Pong/>")}}
	server := NewServer("127.0.0.1:0", &ServerConfig{TLS: f.ServerTLSConfig()}, MessageEndpoint(handler, nil))
	if err := server.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer server.Shutdown(context.Background())

	sender := NewSender(&SenderConfig{TLS: buildTLSContext(t, f.Client, f.CA.Cert), Timeout: 10 * time.Second})
	response, err := sender.Send(context.Background(), "https://"+server.Addr().String()+"/ws", []byte("<Ping/>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(response) != "<Pong/>" {
		t.Errorf("unexpected response: %s", response)
	}
}

func TestMessageEndpoint_GzipRequest(t *testing.T) {
	handler := &mockMessageHandler{response: &Response{Body: []byte("<Response/>")}}
	server := httptest.NewServer(MessageEndpoint(handler, nil))
	defer server.Close()

	response, err := NewSender(nil).Send(context.Background(), server.URL, []byte("<Request/>"), WithCompression())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(response) != "<Response/>" {
		t.Errorf("unexpected response: %s", response)
	}
	if string(handler.received) != "<Request/>" {
		t.Errorf("expected inflated message, got %q", handler.received)
	}
}

func TestMessageEndpoint_BadEncoding(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		body     string
		status   int
	}{
		{"unsupported", "br", "<Request/>", http.StatusUnsupportedMediaType},
		{"corrupt gzip", "gzip", "<Request/>", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &mockMessageHandler{response: &Response{}}
			req := httptest.NewRequest(http.MethodPost, "/ws", strings.NewReader(tt.body))
			req.Header.Set("Content-Encoding", tt.encoding)
			w := httptest.NewRecorder()
			MessageEndpoint(handler, nil).ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if handler.received != nil {
				t.Error("handler must not be called")
			}
		})
	}
}

func TestMessageEndpoint_TooLarge(t *testing.T) {
	handler := &mockMessageHandler{response: &Response{}}
	req := httptest.NewRequest(http.MethodPost, "/ws", strings.NewReader(strings.Repeat("x", MaxMessageSize+1)))
	w := httptest.NewRecorder()
	MessageEndpoint(handler, nil).ServeHTTP(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", w.Code)
	}
}
