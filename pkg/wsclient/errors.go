package wsclient

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrNilValue          = errors.New("nil value")
	ErrUnregisteredType  = errors.New("type is not registered")
	ErrMalformed         = errors.New("message is not well-formed XML")
	ErrNoRootElement     = errors.New("message has no root element")
	ErrUnexpectedElement = errors.New("unexpected element")
)

// SerializationError reports a request that could not be marshalled
type SerializationError struct {
	Type string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing %s: %v", e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// DeserializationError reports a reply that could not be unmarshalled
type DeserializationError struct {
	Element string // root element of the reply, if one was found
	Err     error
}

func (e *DeserializationError) Error() string {
	if e.Element == "" {
		return fmt.Sprintf("deserializing response: %v", e.Err)
	}
	return fmt.Sprintf("deserializing %s: %v", e.Element, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// FaultError is a SOAP 1.1 Fault returned by the service
type FaultError struct {
	Code   string
	String string
	Actor  string
	Detail string

	// Err is the transport failure that carried the fault, usually an
	// HTTP 500 status
	Err error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("soap fault %s: %s", e.Code, e.String)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}
