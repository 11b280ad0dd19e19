package wsclient

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"reflect"
	"strings"

	"github.com/beevik/etree"
)

var xmlNameType = reflect.TypeOf(xml.Name{})

// Marshaller binds Go types to XML elements.
//
// A Marshaller is immutable after construction and safe for concurrent use.
type Marshaller struct {
	byName map[xml.Name]reflect.Type
	byType map[reflect.Type]xml.Name
}

// NewMarshaller registers the types of prototypes. Each prototype is a
// struct value or pointer; its element is taken from the XMLName field tag
// when present, otherwise from the type name.
func NewMarshaller(prototypes ...any) (*Marshaller, error) {
	m := &Marshaller{
		byName: make(map[xml.Name]reflect.Type),
		byType: make(map[reflect.Type]xml.Name),
	}
	for _, p := range prototypes {
		if p == nil {
			return nil, fmt.Errorf("registering prototype: %w", ErrNilValue)
		}
		t := reflect.TypeOf(p)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("registering %s: not a struct type", t)
		}

		name := elementName(t)
		if other, ok := m.byName[name]; ok && other != t {
			return nil, fmt.Errorf("registering %s: element %s already bound to %s", t, formatName(name), other)
		}
		m.byName[name] = t
		m.byType[t] = name
	}
	return m, nil
}

// elementName resolves the element a struct type marshals to
func elementName(t reflect.Type) xml.Name {
	if f, ok := t.FieldByName("XMLName"); ok && f.Type == xmlNameType {
		tag, _, _ := strings.Cut(f.Tag.Get("xml"), ",")
		if tag != "" {
			if i := strings.LastIndex(tag, " "); i >= 0 {
				return xml.Name{Space: tag[:i], Local: tag[i+1:]}
			}
			return xml.Name{Local: tag}
		}
	}
	return xml.Name{Local: t.Name()}
}

func formatName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// ElementName returns the element v is bound to
func (m *Marshaller) ElementName(v any) (xml.Name, error) {
	t, err := m.lookupType(v)
	if err != nil {
		return xml.Name{}, err
	}
	return m.byType[t], nil
}

func (m *Marshaller) lookupType(v any) (reflect.Type, error) {
	if v == nil {
		return nil, ErrNilValue
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if _, ok := m.byType[t]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregisteredType, t)
	}
	return t, nil
}

// Marshal encodes a registered value as an XML document
func (m *Marshaller) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, &SerializationError{Type: "<nil>", Err: ErrNilValue}
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, &SerializationError{Type: rv.Type().String(), Err: ErrNilValue}
	}
	t, err := m.lookupType(v)
	if err != nil {
		return nil, &SerializationError{Type: fmt.Sprintf("%T", v), Err: err}
	}

	data, err := xml.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Type: t.String(), Err: err}
	}
	return append([]byte(xml.Header), data...), nil
}

// rootName parses data and returns the name of its root element
func rootName(data []byte) (xml.Name, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return xml.Name{}, ErrNoRootElement
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return xml.Name{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	root := doc.Root()
	if root == nil {
		return xml.Name{}, ErrNoRootElement
	}
	return xml.Name{Space: root.NamespaceURI(), Local: root.Tag}, nil
}

func (m *Marshaller) typeFor(name xml.Name) (reflect.Type, bool) {
	if t, ok := m.byName[name]; ok {
		return t, true
	}
	// types registered without a namespace match on local name
	t, ok := m.byName[xml.Name{Local: name.Local}]
	return t, ok
}

// Unmarshal decodes a document into a new value of the type registered for
// its root element and returns a pointer to it
func (m *Marshaller) Unmarshal(data []byte) (any, error) {
	name, err := rootName(data)
	if err != nil {
		return nil, &DeserializationError{Err: err}
	}
	t, ok := m.typeFor(name)
	if !ok {
		return nil, &DeserializationError{Element: formatName(name), Err: ErrUnexpectedElement}
	}

	v := reflect.New(t)
	if err := xml.Unmarshal(data, v.Interface()); err != nil {
		return nil, &DeserializationError{Element: formatName(name), Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return v.Interface(), nil
}

// UnmarshalInto decodes a document into v, which must point to a registered
// type bound to the document's root element
func (m *Marshaller) UnmarshalInto(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &DeserializationError{Err: fmt.Errorf("%w: target must be a non-nil pointer", ErrNilValue)}
	}
	t, err := m.lookupType(v)
	if err != nil {
		return &DeserializationError{Err: err}
	}

	name, err := rootName(data)
	if err != nil {
		return &DeserializationError{Err: err}
	}
	if bound, ok := m.typeFor(name); !ok || bound != t {
		return &DeserializationError{
			Element: formatName(name),
			Err:     fmt.Errorf("%w: want %s", ErrUnexpectedElement, formatName(m.byType[t])),
		}
	}

	if err := xml.Unmarshal(data, v); err != nil {
		return &DeserializationError{Element: formatName(name), Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return nil
}
