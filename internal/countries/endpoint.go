package countries

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sirosfoundation/go-wsclient/pkg/transport"
	"github.com/sirosfoundation/go-wsclient/pkg/wsclient"
)

// ErrCountryNotFound is reported for an unknown country name
var ErrCountryNotFound = errors.New("country not found")

// Endpoint serves getCountry requests in POX or SOAP 1.1 style. SOAP is
// selected by a text/xml content type.
type Endpoint struct {
	repo       *Repository
	marshaller *wsclient.Marshaller
	metrics    *metrics
	logger     *slog.Logger
}

// NewEndpoint creates an endpoint answering from repo
func NewEndpoint(repo *Repository, logger *slog.Logger) (*Endpoint, error) {
	m, err := NewMarshaller()
	if err != nil {
		return nil, err
	}
	if repo == nil {
		repo = DefaultRepository()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{repo: repo, marshaller: m, logger: logger}, nil
}

func isSOAP(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/xml")
}

// HandleMessage implements transport.MessageHandler
func (e *Endpoint) HandleMessage(ctx context.Context, contentType string, message []byte) (*transport.Response, error) {
	var factory wsclient.MessageFactory = wsclient.POX
	responseType := transport.ContentTypeXML
	if isSOAP(contentType) {
		factory = wsclient.SOAP11
		responseType = wsclient.ContentTypeSOAP11
	}

	payload, err := factory.Payload(message)
	if err != nil {
		e.metrics.inc("bad_request")
		return e.fault(factory, responseType, http.StatusBadRequest, wsclient.FaultClient, fmt.Errorf("reading request: %w", err))
	}

	var req GetCountryRequest
	if err := e.marshaller.UnmarshalInto(payload, &req); err != nil {
		e.metrics.inc("bad_request")
		return e.fault(factory, responseType, http.StatusBadRequest, wsclient.FaultClient, err)
	}

	country, ok := e.repo.FindCountry(req.Name)
	if !ok {
		e.metrics.inc("not_found")
		e.logger.Info("unknown country", slog.String("name", req.Name))
		return e.fault(factory, responseType, http.StatusInternalServerError, wsclient.FaultServer,
			fmt.Errorf("%w: %s", ErrCountryNotFound, req.Name))
	}

	body, err := e.marshaller.Marshal(&GetCountryResponse{Country: country})
	if err != nil {
		return nil, err
	}
	if body, err = factory.Envelope(body); err != nil {
		return nil, err
	}

	e.metrics.inc("found")
	e.logger.Debug("country served", slog.String("name", country.Name))
	return &transport.Response{ContentType: responseType, Body: body}, nil
}

// fault answers SOAP requests with a Fault and a 500 status as SOAP 1.1
// requires, and POX requests with a plain status
func (e *Endpoint) fault(factory wsclient.MessageFactory, contentType string, status int, code string, cause error) (*transport.Response, error) {
	soap, ok := factory.(wsclient.SOAP11Factory)
	if !ok {
		return &transport.Response{
			StatusCode:  status,
			ContentType: "text/plain; charset=utf-8",
			Body:        []byte(cause.Error()),
		}, nil
	}

	body, err := soap.Fault(code, cause.Error())
	if err != nil {
		return nil, err
	}
	return &transport.Response{
		StatusCode:  http.StatusInternalServerError,
		ContentType: contentType,
		Body:        body,
	}, nil
}
