// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package compression gzips XML message bodies.

Large SOAP payloads compress well. The transport uses this package for
the request side: a sender gzips the body and sets Content-Encoding, the
message endpoint inflates it before the handler sees it. Response bodies
are left to net/http, which negotiates gzip on its own.

# Compression

	compressor := compression.NewCompressor()
	compressed, err := compressor.Compress(payload)

Inflating untrusted input should always be bounded:

	body, err := compression.NewCompressor().WithLimit(16 << 20).Decompress(compressed)
	if errors.Is(err, compression.ErrTooLarge) {
	    // reject
	}

# References

  - GZIP RFC 1952: https://datatracker.ietf.org/doc/html/rfc1952
  - HTTP Content-Encoding: https://datatracker.ietf.org/doc/html/rfc9110#section-8.4
*/
package compression
