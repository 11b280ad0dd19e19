// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package keystore loads client key stores and trust stores.

A key store carries the client's own certificate chain and private key,
a trust store carries the certificate authorities whose issued server
certificates are accepted. Both are read from a byte stream protected by
a passphrase and tagged with a store format.

# Formats

	keystore.FormatPKCS12 - PKCS#12 (.p12, .pfx), including Java trust stores
	keystore.FormatJKS    - Java KeyStore
	keystore.FormatPEM    - PEM certificates with an optional unencrypted key

# Usage

	key, err := keystore.LoadFile("client.p12", "changeit", keystore.FormatPKCS12)
	if err != nil {
	    return err
	}
	trust, err := keystore.LoadFile("truststore.jks", "changeit", keystore.FormatJKS)

A failed load returns a [*StoreLoadError] and never a partially populated
[Material]. The sentinel errors [ErrIncorrectPassphrase], [ErrUnknownFormat],
[ErrUnreadable] and [ErrEmptyStore] can be matched with errors.Is.
*/
package keystore
