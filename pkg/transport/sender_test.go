package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sirosfoundation/go-wsclient/internal/testpki"
	"github.com/sirosfoundation/go-wsclient/pkg/compression"
	"github.com/sirosfoundation/go-wsclient/pkg/keystore"
	"github.com/sirosfoundation/go-wsclient/pkg/tlsclient"
)

func buildTLSContext(t *testing.T, id *testpki.Identity, trusted ...*x509.Certificate) *tlsclient.Context {
	t.Helper()

	keyData, err := testpki.EncodeKeyStore(id, "PKCS12", "changeit")
	if err != nil {
		t.Fatalf("encoding key store: %v", err)
	}
	trustData, err := testpki.EncodeTrustStore(trusted, "PKCS12", "changeit")
	if err != nil {
		t.Fatalf("encoding trust store: %v", err)
	}
	key, err := keystore.Load(bytes.NewReader(keyData), "changeit", keystore.FormatPKCS12)
	if err != nil {
		t.Fatalf("loading key store: %v", err)
	}
	trust, err := keystore.Load(bytes.NewReader(trustData), "changeit", keystore.FormatPKCS12)
	if err != nil {
		t.Fatalf("loading trust store: %v", err)
	}

	ctx, err := tlsclient.Build(key, trust)
	if err != nil {
		t.Fatalf("building TLS context: %v", err)
	}
	return ctx
}

func expectKind(t *testing.T, err error, kind Kind) *TransportError {
	t.Helper()
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if terr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, terr.Kind, err)
	}
	return terr
}

func TestDefaultSenderConfig(t *testing.T) {
	config := DefaultSenderConfig()

	if config.TLS != nil {
		t.Error("expected plain transport by default")
	}
	if config.Timeout != 30*time.Second {
		t.Errorf("expected Timeout 30s, got %v", config.Timeout)
	}
	if config.ConnectTimeout != 10*time.Second {
		t.Errorf("expected ConnectTimeout 10s, got %v", config.ConnectTimeout)
	}
	if got := config.DefaultHeaders.Get("Accept"); got != "application/xml" {
		t.Errorf("expected Accept application/xml, got %q", got)
	}
}

func TestNewSender_NilConfig(t *testing.T) {
	sender := NewSender(nil)

	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.client == nil {
		t.Error("expected http.Client to be initialized")
	}
	if sender.Secure() {
		t.Error("expected plain sender")
	}
}

func TestSender_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != ContentTypeXML {
			t.Errorf("expected content-type %q, got %q", ContentTypeXML, ct)
		}
		if r.Header.Get("Accept") != "application/xml" {
			t.Errorf("expected Accept 'application/xml', got %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("User-Agent") != "go-wsclient/1.0" {
			t.Errorf("expected User-Agent 'go-wsclient/1.0'")
		}
		if r.Header.Get(HeaderRequestID) == "" {
			t.Error("expected a request ID")
		}
		if _, _, ok := r.BasicAuth(); ok {
			t.Error("expected no credentials")
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "<Request/>" {
			t.Errorf("unexpected request body: %s", body)
		}

		w.Header().Set("Content-Type", ContentTypeXML)
		w.Write([]byte("<Response/>"))
	}))
	defer server.Close()

	response, err := NewSender(nil).Send(context.Background(), server.URL, []byte("<Request/>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(response) != "<Response/>" {
		t.Errorf("unexpected response: %s", string(response))
	}
}

func TestSender_Send_Options(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "text/xml; charset=utf-8" {
			t.Errorf("unexpected content-type %q", ct)
		}
		if r.Header.Get("SOAPAction") != `""` {
			t.Errorf("expected SOAPAction header")
		}
		if r.Header.Get(HeaderRequestID) != "fixed-id" {
			t.Errorf("expected caller request ID, got %q", r.Header.Get(HeaderRequestID))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	_, err := NewSender(nil).Send(context.Background(), server.URL, []byte("<Request/>"),
		WithContentType("text/xml; charset=utf-8"),
		WithHeader("SOAPAction", `""`),
		WithHeader(HeaderRequestID, "fixed-id"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSender_Send_Compression(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "gzip" {
			t.Errorf("expected gzip content encoding, got %q", r.Header.Get("Content-Encoding"))
		}
		body, _ := io.ReadAll(r.Body)
		plain, err := compression.NewCompressor().Decompress(body)
		if err != nil {
			t.Errorf("request body is not gzip: %v", err)
		}
		if string(plain) != "<Request/>" {
			t.Errorf("unexpected request body: %s", plain)
		}
		w.Write([]byte("<Response/>"))
	}))
	defer server.Close()

	if _, err := NewSender(nil).Send(context.Background(), server.URL, []byte("<Request/>"), WithCompression()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSender_Send_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	_, err := NewSender(nil).Send(context.Background(), server.URL, []byte("<Request/>"))
	terr := expectKind(t, err, KindHTTPStatus)
	if terr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", terr.StatusCode)
	}
	if string(terr.Body) != "Internal Server Error" {
		t.Errorf("unexpected body: %s", terr.Body)
	}
	if terr.Endpoint != server.URL {
		t.Errorf("expected endpoint %s, got %s", server.URL, terr.Endpoint)
	}
}

func TestSender_Send_BasicAuth(t *testing.T) {
	creds := Credentials{Username: "user", Password: "pass"}
	server := httptest.NewServer(BasicAuth("country", creds, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<ok/>"))
	})))
	defer server.Close()

	sender := NewSender(nil)

	_, err := sender.Send(context.Background(), server.URL+"/ws", []byte("<Request/>"))
	terr := expectKind(t, err, KindHTTPStatus)
	if terr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", terr.StatusCode)
	}

	response, err := sender.Send(context.Background(), server.URL+"/any/path", []byte("<Request/>"), WithCredentials(creds))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(response) != "<ok/>" {
		t.Errorf("unexpected response: %s", response)
	}

	_, err = sender.Send(context.Background(), server.URL, []byte("<Request/>"),
		WithCredentials(Credentials{Username: "user", Password: "wrong"}))
	expectKind(t, err, KindHTTPStatus)
}

func TestSender_Send_CredentialsScopedToOrigin(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			t.Error("credentials leaked to another origin")
		}
		w.Write([]byte("<other/>"))
	}))
	defer other.Close()

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("expected credentials on the origin")
		}
		http.Redirect(w, r, other.URL+"/elsewhere", http.StatusTemporaryRedirect)
	}))
	defer origin.Close()

	response, err := NewSender(nil).Send(context.Background(), origin.URL, []byte("<Request/>"),
		WithCredentials(Credentials{Username: "user", Password: "pass"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(response) != "<other/>" {
		t.Errorf("unexpected response: %s", response)
	}
}

func TestSender_Send_ConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewSender(nil).Send(context.Background(), "http://"+addr+"/ws", []byte("<Request/>"))
	expectKind(t, err, KindConnectRefused)
}

func TestSender_Send_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	config := DefaultSenderConfig()
	config.Timeout = 100 * time.Millisecond

	_, err := NewSender(config).Send(context.Background(), server.URL, []byte("<Request/>"))
	expectKind(t, err, KindTimeout)
}

func TestSender_Send_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewSender(nil).Send(ctx, server.URL, []byte("<Request/>"))
	expectKind(t, err, KindTimeout)
}

func TestSender_Send_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSender(nil).Send(ctx, server.URL, []byte("<Request/>"))
	if err == nil {
		t.Error("expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestSender_Send_InvalidURL(t *testing.T) {
	for _, endpoint := range []string{"://missing-scheme", "ftp://localhost/ws", "http:///ws"} {
		_, err := NewSender(nil).Send(context.Background(), endpoint, []byte("<Request/>"))
		expectKind(t, err, KindInvalidEndpoint)
	}
}

func TestSender_Secure(t *testing.T) {
	f, err := testpki.NewFixture()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) == 0 {
			t.Error("expected a client certificate")
		}
		w.Write([]byte("<Secure/>"))
	}))
	server.TLS = f.ServerTLSConfig()
	server.StartTLS()
	defer server.Close()

	sender := NewSender(&SenderConfig{
		TLS:     buildTLSContext(t, f.Client, f.CA.Cert),
		Timeout: 10 * time.Second,
	})
	if !sender.Secure() {
		t.Fatal("expected secure sender")
	}

	response, err := sender.Send(context.Background(), server.URL, []byte("<Request/>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(response) != "<Secure/>" {
		t.Errorf("unexpected response: %s", response)
	}

	_, err = sender.Send(context.Background(), "http://127.0.0.1:1/ws", []byte("<Request/>"))
	terr := expectKind(t, err, KindInvalidEndpoint)
	if !errors.Is(terr, ErrPlaintextForbidden) {
		t.Errorf("expected ErrPlaintextForbidden, got %v", terr)
	}
}

func TestSender_Secure_RedirectToPlaintext(t *testing.T) {
	f, err := testpki.NewFixture()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}

	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("plaintext server must not be reached")
	}))
	defer plain.Close()

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, plain.URL, http.StatusFound)
	}))
	server.TLS = f.ServerTLSConfig()
	server.StartTLS()
	defer server.Close()

	sender := NewSender(&SenderConfig{TLS: buildTLSContext(t, f.Client, f.CA.Cert), Timeout: 10 * time.Second})
	_, err = sender.Send(context.Background(), server.URL, []byte("<Request/>"))
	terr := expectKind(t, err, KindInvalidEndpoint)
	if !errors.Is(terr, ErrPlaintextForbidden) {
		t.Errorf("expected ErrPlaintextForbidden, got %v", terr)
	}
}

func TestSender_Secure_UnknownIssuer(t *testing.T) {
	f, err := testpki.NewFixture()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	other, err := testpki.NewAuthority("unrelated CA")
	if err != nil {
		t.Fatalf("authority: %v", err)
	}

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached")
	}))
	server.TLS = f.ServerTLSConfig()
	server.StartTLS()
	defer server.Close()

	sender := NewSender(&SenderConfig{TLS: buildTLSContext(t, f.Client, other.Cert), Timeout: 10 * time.Second})
	_, err = sender.Send(context.Background(), server.URL, []byte("<Request/>"))
	expectKind(t, err, KindHandshakeFailure)
}

func TestSender_Secure_ClientRejectedByServer(t *testing.T) {
	f, err := testpki.NewFixture()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	rogue, err := testpki.NewAuthority("rogue CA")
	if err != nil {
		t.Fatalf("authority: %v", err)
	}
	rogueClient, err := rogue.Issue("intruder", testpki.ClientAuth)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be reached")
	}))
	// TLS 1.2 verifies the client certificate before the handshake completes
	server.TLS = f.ServerTLSConfig()
	server.TLS.MaxVersion = tls.VersionTLS12
	server.StartTLS()
	defer server.Close()

	// trusts the real server, presents a certificate the server does not accept
	sender := NewSender(&SenderConfig{TLS: buildTLSContext(t, rogueClient, f.CA.Cert), Timeout: 10 * time.Second})
	_, err = sender.Send(context.Background(), server.URL, []byte("<Request/>"))
	expectKind(t, err, KindHandshakeFailure)
}

func TestSender_Metrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("<ok/>"))
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	config := DefaultSenderConfig()
	config.Metrics = metrics
	sender := NewSender(config)

	for i := 0; i < 2; i++ {
		if _, err := sender.Send(context.Background(), server.URL+"/ok", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if _, err := sender.Send(context.Background(), server.URL+"/fail", nil); err == nil {
		t.Fatal("expected error")
	}

	if got := testutil.ToFloat64(metrics.requests.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected 2 ok requests, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.requests.WithLabelValues(string(KindHTTPStatus))); got != 1 {
		t.Errorf("expected 1 http_status failure, got %v", got)
	}

	// a second registration reuses the existing collectors
	again := NewMetrics(reg)
	if got := testutil.ToFloat64(again.requests.WithLabelValues("ok")); got != 2 {
		t.Errorf("expected shared collector, got %v", got)
	}
}
