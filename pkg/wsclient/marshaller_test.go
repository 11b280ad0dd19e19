package wsclient

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNS = "urn:example:orders"

type orderRequest struct {
	XMLName xml.Name `xml:"urn:example:orders orderRequest"`
	ID      string   `xml:"id"`
}

type orderResponse struct {
	XMLName xml.Name `xml:"urn:example:orders orderResponse"`
	ID      string   `xml:"id"`
	Status  string   `xml:"status"`
}

type Ping struct {
	Seq int `xml:"seq"`
}

func newTestMarshaller(t *testing.T) *Marshaller {
	t.Helper()
	m, err := NewMarshaller(orderRequest{}, &orderResponse{}, Ping{})
	require.NoError(t, err)
	return m
}

func TestNewMarshaller_ElementNames(t *testing.T) {
	m := newTestMarshaller(t)

	name, err := m.ElementName(&orderRequest{})
	require.NoError(t, err)
	assert.Equal(t, xml.Name{Space: testNS, Local: "orderRequest"}, name)

	name, err = m.ElementName(Ping{})
	require.NoError(t, err)
	assert.Equal(t, xml.Name{Local: "Ping"}, name)

	_, err = m.ElementName(struct{}{})
	assert.ErrorIs(t, err, ErrUnregisteredType)
}

func TestNewMarshaller_Rejects(t *testing.T) {
	_, err := NewMarshaller(nil)
	assert.ErrorIs(t, err, ErrNilValue)

	_, err = NewMarshaller("not a struct")
	assert.Error(t, err)

	type otherRequest struct {
		XMLName xml.Name `xml:"urn:example:orders orderRequest"`
	}
	_, err = NewMarshaller(orderRequest{}, otherRequest{})
	assert.Error(t, err)
}

func TestMarshal(t *testing.T) {
	m := newTestMarshaller(t)

	data, err := m.Marshal(&orderRequest{ID: "42"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, string(data), `<orderRequest xmlns="urn:example:orders"><id>42</id></orderRequest>`)
}

func TestMarshal_Errors(t *testing.T) {
	m := newTestMarshaller(t)

	var serr *SerializationError

	_, err := m.Marshal(nil)
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrNilValue)

	_, err = m.Marshal((*orderRequest)(nil))
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrNilValue)

	_, err = m.Marshal(struct{ A string }{"x"})
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrUnregisteredType)
}

func TestUnmarshal(t *testing.T) {
	m := newTestMarshaller(t)

	v, err := m.Unmarshal([]byte(`<o:orderResponse xmlns:o="urn:example:orders"><o:id>7</o:id><o:status>shipped</o:status></o:orderResponse>`))
	require.NoError(t, err)

	resp, ok := v.(*orderResponse)
	require.True(t, ok, "got %T", v)
	assert.Equal(t, "7", resp.ID)
	assert.Equal(t, "shipped", resp.Status)

	// types without a namespace match on local name
	v, err = m.Unmarshal([]byte(`<Ping xmlns="urn:any"><seq>3</seq></Ping>`))
	require.NoError(t, err)
	assert.Equal(t, 3, v.(*Ping).Seq)
}

func TestUnmarshal_Errors(t *testing.T) {
	m := newTestMarshaller(t)

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"mismatched tags", `<orderResponse xmlns="urn:example:orders"><id></orderResponse>`, ErrMalformed},
		{"no root", ``, ErrNoRootElement},
		{"unknown element", `<invoice xmlns="urn:example:orders"/>`, ErrUnexpectedElement},
		{"wrong namespace", `<orderResponse xmlns="urn:example:other"/>`, ErrUnexpectedElement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Unmarshal([]byte(tt.input))
			var derr *DeserializationError
			require.ErrorAs(t, err, &derr)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUnmarshalInto(t *testing.T) {
	m := newTestMarshaller(t)
	doc := []byte(`<orderResponse xmlns="urn:example:orders"><id>9</id><status>open</status></orderResponse>`)

	var resp orderResponse
	require.NoError(t, m.UnmarshalInto(doc, &resp))
	assert.Equal(t, "9", resp.ID)

	var req orderRequest
	err := m.UnmarshalInto(doc, &req)
	assert.ErrorIs(t, err, ErrUnexpectedElement)

	err = m.UnmarshalInto(doc, resp)
	assert.ErrorIs(t, err, ErrNilValue)

	var unknown struct{ ID string }
	err = m.UnmarshalInto(doc, &unknown)
	assert.ErrorIs(t, err, ErrUnregisteredType)
}

func TestRoundTrip(t *testing.T) {
	m := newTestMarshaller(t)

	data, err := m.Marshal(orderResponse{ID: "1", Status: "new"})
	require.NoError(t, err)

	v, err := m.Unmarshal(data)
	require.NoError(t, err)
	got := v.(*orderResponse)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "new", got.Status)
}
