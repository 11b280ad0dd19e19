// Package countries is the sample country web service: a single
// getCountry operation served at /ws over plain HTTP or mutual TLS,
// optionally behind basic auth.
package countries

import (
	"encoding/xml"

	"github.com/sirosfoundation/go-wsclient/pkg/wsclient"
)

// Namespace is the target namespace of the country schema
const Namespace = "http://spring.io/guides/gs-producing-web-service"

// Currency is an ISO 4217 currency code
type Currency string

const (
	GBP Currency = "GBP"
	EUR Currency = "EUR"
	PLN Currency = "PLN"
)

// GetCountryRequest asks for a country by name
type GetCountryRequest struct {
	XMLName xml.Name `xml:"http://spring.io/guides/gs-producing-web-service getCountryRequest"`
	Name    string   `xml:"name"`
}

// GetCountryResponse carries the requested country
type GetCountryResponse struct {
	XMLName xml.Name `xml:"http://spring.io/guides/gs-producing-web-service getCountryResponse"`
	Country Country  `xml:"country"`
}

// Country describes one country
type Country struct {
	Name       string   `xml:"name"`
	Population int      `xml:"population"`
	Capital    string   `xml:"capital"`
	Currency   Currency `xml:"currency"`
}

// NewMarshaller binds the country request and response types
func NewMarshaller() (*wsclient.Marshaller, error) {
	return wsclient.NewMarshaller(GetCountryRequest{}, GetCountryResponse{})
}
