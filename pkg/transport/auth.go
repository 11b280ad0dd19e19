package transport

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

type authKey struct{}

// authScope binds credentials to one host and port. Any path and any
// realm on that origin receives them.
type authScope struct {
	hostPort string
	creds    Credentials
}

func canonicalHostPort(u *url.URL) string {
	port := u.Port()
	if port == "" {
		switch u.Scheme {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(strings.ToLower(u.Hostname()), port)
}

// authTransport adds preemptive basic auth to requests inside the scope
// carried by the request context, including redirects.
type authTransport struct {
	next http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	scope, ok := req.Context().Value(authKey{}).(*authScope)
	if !ok || canonicalHostPort(req.URL) != scope.hostPort {
		return t.next.RoundTrip(req)
	}

	r := req.Clone(req.Context())
	r.SetBasicAuth(scope.creds.Username, scope.creds.Password)
	return t.next.RoundTrip(r)
}

// secureOnlyTransport refuses every non-https request, so neither the
// initial request nor a redirect can fall back to plaintext.
type secureOnlyTransport struct {
	next http.RoundTripper
}

func (t *secureOnlyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, ErrPlaintextForbidden
	}
	return t.next.RoundTrip(req)
}
