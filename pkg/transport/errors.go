package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Kind classifies a failed round trip
type Kind string

const (
	KindConnectRefused   Kind = "connect_refused"
	KindHandshakeFailure Kind = "handshake_failure"
	KindTimeout          Kind = "timeout"
	KindHTTPStatus       Kind = "http_status"
	KindInvalidEndpoint  Kind = "invalid_endpoint"
	KindOther            Kind = "other"
)

// ErrPlaintextForbidden is returned when a secure sender is asked to reach
// a non-https URL
var ErrPlaintextForbidden = errors.New("plaintext request on secure transport")

// TransportError reports a round trip that did not complete successfully
type TransportError struct {
	Kind       Kind
	Endpoint   string
	StatusCode int    // set for KindHTTPStatus
	Body       []byte // response body for KindHTTPStatus, possibly truncated
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: unexpected status code %d", e.Endpoint, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Kind)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classify maps a client error onto a Kind
func classify(err error) Kind {
	if errors.Is(err, ErrPlaintextForbidden) {
		return KindInvalidEndpoint
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectRefused
	}
	if isHandshakeError(err) {
		return KindHandshakeFailure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}

func isHandshakeError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		unknownErr  x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
		alertErr    tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &unknownErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr),
		errors.As(err, &alertErr):
		return true
	}

	// alerts sent by the peer, e.g. "remote error: tls: certificate required"
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "remote error"
}
