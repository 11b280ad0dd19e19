// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gowsclient is a client core for XML web services reached over
plain HTTP or mutually authenticated TLS.

# Overview

go-wsclient turns typed request values into XML, posts them to a service
endpoint and binds the XML reply to a typed response. Transport security
is built from Java-style credential stores (PKCS#12, JKS) or PEM files, so
clients can reuse the key and trust stores that existing SOAP deployments
already ship.

# Package Structure

	github.com/sirosfoundation/go-wsclient/pkg/keystore  - Credential store loading (PKCS12, JKS, PEM)
	github.com/sirosfoundation/go-wsclient/pkg/tlsclient - Mutual-TLS client contexts built from stores
	github.com/sirosfoundation/go-wsclient/pkg/transport - HTTP request sender, basic auth, message server
	github.com/sirosfoundation/go-wsclient/pkg/wsclient  - XML marshalling, SOAP 1.1 envelopes, RPC client

The cmd/wsclient command wraps these packages together with a sample
country service and a throwaway PKI generator.

# Quick Start

Calling a service over mutual TLS:

	key, _ := keystore.LoadFile("client.p12", "changeit", keystore.FormatPKCS12)
	trust, _ := keystore.LoadFile("truststore.jks", "changeit", keystore.FormatJKS)

	tlsCtx, err := tlsclient.Build(key, trust)
	if err != nil {
	    return err
	}

	cfg := transport.DefaultSenderConfig()
	cfg.TLS = tlsCtx
	sender := transport.NewSender(cfg)

	m, _ := wsclient.NewMarshaller(&GetCountryRequest{}, &GetCountryResponse{})
	client := wsclient.New(sender, m, wsclient.WithMessageFactory(wsclient.SOAP11))

	resp, err := wsclient.Invoke[GetCountryResponse](ctx, client,
	    "https://localhost:8443/ws", &GetCountryRequest{Name: "Spain"})

# Security

  - Server host names are always verified against the certificate
  - Only certificates chaining to the configured trust store are accepted
  - A secure sender refuses http:// endpoints
  - Basic auth credentials are only sent to the endpoint's own host and port

# License

BSD-2-Clause License
*/
package gowsclient
