package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sirosfoundation/go-wsclient/pkg/transport"
)

// Sender performs one request/response exchange. *transport.Sender
// implements it.
type Sender interface {
	Send(ctx context.Context, endpoint string, message []byte, opts ...transport.SendOption) ([]byte, error)
}

// Client is a typed XML RPC client
type Client struct {
	sender     Sender
	marshaller *Marshaller
	factory    MessageFactory
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithMessageFactory selects the message style; the default is POX
func WithMessageFactory(f MessageFactory) Option {
	return func(c *Client) { c.factory = f }
}

// WithLogger sets the client logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client that sends through sender and binds types with m
func New(sender Sender, m *Marshaller, opts ...Option) *Client {
	c := &Client{
		sender:     sender,
		marshaller: m,
		factory:    POX,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Marshaller returns the client's type bindings
func (c *Client) Marshaller() *Marshaller {
	return c.marshaller
}

// Call sends request to endpoint and decodes the reply into response, which
// must point to a registered type
func (c *Client) Call(ctx context.Context, endpoint string, request, response any, opts ...transport.SendOption) error {
	payload, err := c.exchange(ctx, endpoint, request, opts)
	if err != nil {
		return err
	}
	return c.marshaller.UnmarshalInto(payload, response)
}

// MarshalSendAndReceive sends request to endpoint and returns a pointer to
// the registered type matching the reply's root element
func (c *Client) MarshalSendAndReceive(ctx context.Context, endpoint string, request any, opts ...transport.SendOption) (any, error) {
	payload, err := c.exchange(ctx, endpoint, request, opts)
	if err != nil {
		return nil, err
	}
	return c.marshaller.Unmarshal(payload)
}

// Invoke is the generic form of Call
func Invoke[T any](ctx context.Context, c *Client, endpoint string, request any, opts ...transport.SendOption) (*T, error) {
	var response T
	if err := c.Call(ctx, endpoint, request, &response, opts...); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) exchange(ctx context.Context, endpoint string, request any, opts []transport.SendOption) ([]byte, error) {
	payload, err := c.marshaller.Marshal(request)
	if err != nil {
		return nil, err
	}
	message, err := c.factory.Envelope(payload)
	if err != nil {
		return nil, &SerializationError{Type: fmt.Sprintf("%T", request), Err: err}
	}

	// caller options come last so they can override the style defaults
	sendOpts := append(c.factory.SendOptions(), opts...)
	reply, err := c.sender.Send(ctx, endpoint, message, sendOpts...)
	if err != nil {
		if fault := c.faultFrom(err); fault != nil {
			c.logger.Warn("service returned fault",
				slog.String("endpoint", endpoint),
				slog.String("code", fault.Code),
				slog.String("reason", fault.String))
			return nil, fault
		}
		return nil, err
	}

	payload, err = c.factory.Payload(reply)
	if err != nil {
		var fault *FaultError
		if errors.As(err, &fault) {
			return nil, fault
		}
		return nil, &DeserializationError{Err: err}
	}

	c.logger.Debug("call completed",
		slog.String("endpoint", endpoint),
		slog.String("request", fmt.Sprintf("%T", request)),
		slog.Int("bytes", len(reply)))
	return payload, nil
}

// faultFrom extracts a SOAP Fault from an HTTP 500 reply
func (c *Client) faultFrom(err error) *FaultError {
	var terr *transport.TransportError
	if !errors.As(err, &terr) || terr.Kind != transport.KindHTTPStatus ||
		terr.StatusCode != http.StatusInternalServerError || len(terr.Body) == 0 {
		return nil
	}
	if _, ok := c.factory.(SOAP11Factory); !ok {
		return nil
	}

	var fault *FaultError
	if _, perr := c.factory.Payload(terr.Body); errors.As(perr, &fault) {
		fault.Err = err
		return fault
	}
	return nil
}
