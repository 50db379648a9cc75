// Package email defines the data model shared by the forwarding pipeline:
// the captured standard input, its optional parsed view, the invocation
// arguments and the assembled outgoing message.
package email

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
)

// Field is a single header field of the original message.
type Field struct {
	Name  string
	Value string
}

// Encoding classifies the Content-Transfer-Encoding of a message body.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	Encoding7Bit
	Encoding8Bit
	EncodingBinary
	EncodingQuotedPrintable
	EncodingBase64
)

func (e Encoding) String() string {
	switch e {
	case Encoding7Bit:
		return "7bit"
	case Encoding8Bit:
		return "8bit"
	case EncodingBinary:
		return "binary"
	case EncodingQuotedPrintable:
		return "quoted-printable"
	case EncodingBase64:
		return "base64"
	default:
		return "unknown"
	}
}

// ParseEncoding maps a Content-Transfer-Encoding header value to an Encoding.
// An empty value means 7bit (RFC 2045 section 6.1).
func ParseEncoding(v string) Encoding {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "7bit":
		return Encoding7Bit
	case "8bit":
		return Encoding8Bit
	case "binary":
		return EncodingBinary
	case "quoted-printable":
		return EncodingQuotedPrintable
	case "base64":
		return EncodingBase64
	default:
		return EncodingUnknown
	}
}

// Message is a structured view over the bytes of an Input. It never copies
// the body; Body re-reads it from the borrowed slice on every call.
type Message struct {
	header      textproto.Header
	fields      []Field
	mediaType   string
	mediaParams map[string]string
	encoding    Encoding
	body        []byte
}

// NewMessage builds a Message from an already parsed header and the body
// bytes following it. fields must list the header fields top to bottom.
func NewMessage(header textproto.Header, fields []Field, mediaType string, params map[string]string, body []byte) *Message {
	return &Message{
		header:      header,
		fields:      fields,
		mediaType:   mediaType,
		mediaParams: params,
		encoding:    ParseEncoding(header.Get("Content-Transfer-Encoding")),
		body:        body,
	}
}

// Fields returns the header fields in their original order, duplicates included.
func (m *Message) Fields() []Field {
	return m.fields
}

// Values returns the values of every field named key, compared
// case-insensitively, in original order.
func (m *Message) Values(key string) []string {
	var values []string
	for _, f := range m.fields {
		if strings.EqualFold(f.Name, key) {
			values = append(values, f.Value)
		}
	}
	return values
}

// MediaType returns the lower-cased media type, e.g. "text/plain".
func (m *Message) MediaType() string {
	return m.mediaType
}

// MediaParams returns the Content-Type parameters.
func (m *Message) MediaParams() map[string]string {
	return m.mediaParams
}

// Encoding returns the transfer-encoding classification of the body.
func (m *Message) Encoding() Encoding {
	return m.encoding
}

// RawBody returns the undecoded body bytes.
func (m *Message) RawBody() []byte {
	return m.body
}

// Body returns the body with its transfer encoding removed. The charset is
// left untouched, so the declared Content-Type charset still applies.
func (m *Message) Body() ([]byte, error) {
	if m.encoding == EncodingUnknown {
		return nil, fmt.Errorf("unknown transfer encoding %q", m.header.Get("Content-Transfer-Encoding"))
	}

	entity, err := message.New(message.Header{Header: m.header}, bytes.NewReader(m.body))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	return body, nil
}

// Input is the captured standard input. It is either the bytes that were
// read or the description of the read failure, plus at most one parsed view.
type Input struct {
	raw     []byte
	readErr error
	parsed  *Message
}

// NewInput wraps bytes read successfully from standard input.
func NewInput(raw []byte, parsed *Message) *Input {
	if raw == nil {
		raw = []byte{}
	}
	return &Input{raw: raw, parsed: parsed}
}

// NewFailedInput records a failure to read standard input. The failure text
// takes the place of the message so the operator still receives a report.
func NewFailedInput(err error) *Input {
	return &Input{
		raw:     []byte(fmt.Sprintf("forward-as-attachment-mta failed to read stdin: %v", err)),
		readErr: err,
	}
}

// Raw returns the payload to attach: the bytes read, or the failure text.
func (in *Input) Raw() []byte {
	return in.raw
}

// ReadErr returns the error that interrupted reading standard input, if any.
func (in *Input) ReadErr() error {
	return in.readErr
}

// Message returns the parsed view and whether the input could be parsed.
func (in *Input) Message() (*Message, bool) {
	return in.parsed, in.parsed != nil
}
