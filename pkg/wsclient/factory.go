package wsclient

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-wsclient/pkg/transport"
)

// NsSOAP11 is the SOAP 1.1 envelope namespace
const NsSOAP11 = "http://schemas.xmlsoap.org/soap/envelope/"

// ContentTypeSOAP11 is the content type of SOAP 1.1 messages
const ContentTypeSOAP11 = "text/xml; charset=utf-8"

// SOAP 1.1 fault codes
const (
	FaultClient = "Client"
	FaultServer = "Server"
)

// MessageFactory frames marshalled payloads for the wire
type MessageFactory interface {
	// Envelope turns a payload document into an outbound message
	Envelope(payload []byte) ([]byte, error)

	// Payload extracts the payload document from an inbound message
	Payload(message []byte) ([]byte, error)

	// SendOptions returns the per-request options the style requires
	SendOptions() []transport.SendOption
}

// POXFactory sends the payload document as the message body
type POXFactory struct{}

// SOAP11Factory wraps payloads in a SOAP 1.1 Envelope/Body
type SOAP11Factory struct{}

// Message styles
var (
	POX    = POXFactory{}
	SOAP11 = SOAP11Factory{}
)

// FactoryFor returns the message factory for a style name
func FactoryFor(style string) (MessageFactory, error) {
	switch strings.ToLower(strings.TrimSpace(style)) {
	case "", "pox":
		return POX, nil
	case "soap11", "soap":
		return SOAP11, nil
	default:
		return nil, fmt.Errorf("unknown message style %q", style)
	}
}

func (POXFactory) Envelope(payload []byte) ([]byte, error) {
	return payload, nil
}

func (POXFactory) Payload(message []byte) ([]byte, error) {
	return message, nil
}

func (POXFactory) SendOptions() []transport.SendOption {
	return []transport.SendOption{transport.WithContentType(transport.ContentTypeXML)}
}

func readRoot(data []byte) (*etree.Element, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoRootElement
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNoRootElement
	}
	return root, nil
}

func newEnvelope() (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", NsSOAP11)
	env.CreateElement("soapenv:Header")
	return doc, env.CreateElement("soapenv:Body")
}

func (SOAP11Factory) Envelope(payload []byte) ([]byte, error) {
	root, err := readRoot(payload)
	if err != nil {
		return nil, err
	}

	doc, body := newEnvelope()
	body.AddChild(root.Copy())
	return doc.WriteToBytes()
}

// Fault builds a SOAP 1.1 Fault message. code is FaultClient or FaultServer.
func (SOAP11Factory) Fault(code, reason string) ([]byte, error) {
	doc, body := newEnvelope()
	fault := body.CreateElement("soapenv:Fault")
	fault.CreateElement("faultcode").SetText("soapenv:" + code)
	fault.CreateElement("faultstring").SetText(reason)
	return doc.WriteToBytes()
}

func (SOAP11Factory) Payload(message []byte) ([]byte, error) {
	root, err := readRoot(message)
	if err != nil {
		return nil, err
	}
	if root.Tag != "Envelope" || root.NamespaceURI() != NsSOAP11 {
		return nil, fmt.Errorf("%w: %s is not a SOAP 1.1 Envelope", ErrUnexpectedElement, root.FullTag())
	}

	var body *etree.Element
	for _, child := range root.ChildElements() {
		if child.Tag == "Body" && child.NamespaceURI() == NsSOAP11 {
			body = child
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: envelope has no Body", ErrUnexpectedElement)
	}

	children := body.ChildElements()
	if len(children) == 0 {
		return nil, ErrNoRootElement
	}
	payload := children[0]
	if payload.Tag == "Fault" && payload.NamespaceURI() == NsSOAP11 {
		return nil, parseFault(payload)
	}
	return detach(payload)
}

func (SOAP11Factory) SendOptions() []transport.SendOption {
	return []transport.SendOption{
		transport.WithContentType(ContentTypeSOAP11),
		transport.WithHeader("SOAPAction", `""`),
	}
}

func parseFault(el *etree.Element) *FaultError {
	f := &FaultError{}
	if c := el.SelectElement("faultcode"); c != nil {
		f.Code = strings.TrimSpace(c.Text())
	}
	if s := el.SelectElement("faultstring"); s != nil {
		f.String = strings.TrimSpace(s.Text())
	}
	if a := el.SelectElement("faultactor"); a != nil {
		f.Actor = strings.TrimSpace(a.Text())
	}
	if d := el.SelectElement("detail"); d != nil {
		if children := d.ChildElements(); len(children) > 0 {
			if data, err := detach(children[0]); err == nil {
				f.Detail = string(data)
			}
		} else {
			f.Detail = strings.TrimSpace(d.Text())
		}
	}
	return f
}

// detach serializes el as a standalone document, carrying over the
// namespace declarations it inherits from its ancestors
func detach(el *etree.Element) ([]byte, error) {
	c := el.Copy()
	for p := el.Parent(); p != nil; p = p.Parent() {
		for i := range p.Attr {
			a := &p.Attr[i]
			if a.Space != "xmlns" && !(a.Space == "" && a.Key == "xmlns") {
				continue
			}
			if c.SelectAttr(a.FullKey()) == nil {
				c.CreateAttr(a.FullKey(), a.Value)
			}
		}
	}

	doc := etree.NewDocument()
	doc.SetRoot(c)
	return doc.WriteToBytes()
}
