// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package tlsclient builds the TLS client context used for mutually
authenticated message exchange.

A [Context] is built once from a key store and a trust store loaded by
package keystore and is then shared, read-only, by every connection the
transport opens:

	key, _ := keystore.LoadFile("client.p12", pass, keystore.FormatPKCS12)
	trust, _ := keystore.LoadFile("truststore.p12", pass, keystore.FormatPKCS12)

	tlsCtx, err := tlsclient.Build(key, trust)
	if err != nil {
	    // *tlsclient.ConfigurationError names the implicated store
	}

# Verification policy

  - Only certificates from the trust store are accepted as issuers of the
    server certificate; the system roots are never consulted.
  - The client presents the single key entry of the key store (or the one
    selected with [WithKeyAlias]).
  - The server certificate must match the connection host, or the name set
    with [WithServerName]. Verification cannot be disabled.

Construction is all-or-nothing: [Build] returns either a complete context
or a [*ConfigurationError].
*/
package tlsclient
