// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package wsclient implements a typed XML RPC client.

A [Client] marshals a request value to XML, posts it to an endpoint through
a [Sender] and unmarshals the reply into a response value. Types are bound to
XML elements by a [Marshaller]: each registered type is matched by the
element declared in its XMLName field tag, or by its type name.

# Usage

	m, err := wsclient.NewMarshaller(GetCountryRequest{}, GetCountryResponse{})
	if err != nil {
	    return err
	}
	client := wsclient.New(sender, m, wsclient.WithMessageFactory(wsclient.SOAP11))

	resp, err := wsclient.Invoke[GetCountryResponse](ctx, client,
	    "https://localhost:8443/ws", &GetCountryRequest{Name: "Spain"})

# Message styles

	wsclient.POX    - the payload document is the message (default)
	wsclient.SOAP11 - the payload travels in a SOAP 1.1 Envelope/Body

With SOAP11 a Fault in the reply is returned as a [*FaultError].

# Errors

	*SerializationError   - the request could not be turned into XML
	*DeserializationError - the reply was not well-formed or not the expected element
	*FaultError           - the service answered with a SOAP Fault

Transport failures are returned as the sender reported them, typically a
[*transport.TransportError].
*/
package wsclient
