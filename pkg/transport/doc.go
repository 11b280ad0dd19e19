// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport implements the HTTP message transport.

A [Sender] performs one blocking POST round trip per call and returns the
raw response body. It runs either plain or secure; a secure sender opens
every connection with a TLS client context built by package tlsclient and
refuses any non-https request, redirects included.

# Client Usage

	sender := transport.NewSender(&transport.SenderConfig{
	    TLS:     tlsCtx, // nil for plain HTTP
	    Timeout: 30 * time.Second,
	})

	response, err := sender.Send(ctx, "https://localhost:8443/ws", body,
	    transport.WithCredentials(transport.Credentials{Username: "user", Password: "pass"}))

Credentials are sent preemptively to any path on the endpoint's host and
port, whatever realm the server announces.

# Errors

Failures are reported as [*TransportError] with a [Kind]:

	KindConnectRefused   - nothing listening on the endpoint
	KindHandshakeFailure - TLS handshake or certificate verification failed
	KindTimeout          - connect, handshake or response deadline expired
	KindHTTPStatus       - the server answered with a non-2xx status
	KindInvalidEndpoint  - malformed URL, or plaintext URL on a secure sender

The sender never retries.

# Server Usage

[Server] and [MessageEndpoint] host a [MessageHandler] over HTTP or HTTPS,
optionally behind [BasicAuth]:

	srv := transport.NewServer("127.0.0.1:0", &transport.ServerConfig{TLS: serverTLS},
	    transport.MessageEndpoint(handler, logger))
	if err := srv.Start(); err != nil {
	    return err
	}
	defer srv.Shutdown(ctx)
*/
package transport
