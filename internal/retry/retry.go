// Package retry re-runs failed calls with exponential backoff.
//
// The transport never retries on its own; callers that want retries, such
// as the CLI, wrap a call in [Do]. Only failures that leave the request
// unprocessed or that the server marks as temporary are retried.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sirosfoundation/go-wsclient/pkg/transport"
)

// Policy configures retrying
type Policy struct {
	// Retries is the number of attempts after the first. Zero runs fn once.
	Retries uint

	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration

	Logger *slog.Logger
}

// DefaultPolicy returns a policy with the given number of retries
func DefaultPolicy(retries uint) Policy {
	return Policy{
		Retries:         retries,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  30 * time.Second,
	}
}

// Retryable reports whether err is worth another attempt: refused
// connections, timeouts and 502/503/504 responses
func Retryable(err error) bool {
	var terr *transport.TransportError
	if !errors.As(err, &terr) {
		return false
	}
	switch terr.Kind {
	case transport.KindConnectRefused, transport.KindTimeout:
		return true
	case transport.KindHTTPStatus:
		switch terr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// policy is exhausted. The last error is returned unwrapped.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.Reset()

	attempt := 0
	op := func() (T, error) {
		attempt++
		v, err := fn(ctx)
		if err != nil && !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(p.Retries + 1),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("call failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", next),
				slog.Any("error", err))
		}),
	}
	if p.MaxElapsedTime > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsedTime))
	}

	v, err := backoff.Retry(ctx, op, opts...)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return v, err
}
