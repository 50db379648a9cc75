// Package parser reads the message handed to sendmail on standard input and
// classifies it as a parseable RFC 5322 message or as opaque bytes.
package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/emersion/go-message/textproto"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

// defaultContentType is the implicit type of a message without a
// Content-Type header (RFC 2045 section 5.2).
const defaultContentType = "text/plain"

// ReadInput reads r to EOF. A read error never fails the run: it is
// captured in the returned Input and reported to the operator instead.
func ReadInput(r io.Reader) *email.Input {
	raw, err := io.ReadAll(r)
	if err != nil {
		slog.Warn("failed to read standard input", "error", err)
		return email.NewFailedInput(err)
	}
	return Classify(raw)
}

// Classify attaches a parsed view to raw when it is a parseable message.
// Malformed input yields an Input without a view, not an error.
func Classify(raw []byte) *email.Input {
	msg, err := Parse(raw)
	if err != nil {
		slog.Debug("input is not a parseable message", "error", err)
		return email.NewInput(raw, nil)
	}
	slog.Debug("parsed input message",
		"headers", len(msg.Fields()),
		"content_type", msg.MediaType(),
		"encoding", msg.Encoding().String(),
	)
	return email.NewInput(raw, msg)
}

// Parse parses the header block of raw. The body is not copied: the
// returned Message refers to the tail of raw.
func Parse(raw []byte) (*email.Message, error) {
	src := bytes.NewReader(raw)
	br := bufio.NewReader(src)

	header, err := textproto.ReadHeader(br)
	if err != nil {
		// ReadHeader refuses field names outside printable US-ASCII. Such a
		// message is still a message; only its header cannot be re-rendered.
		fields, offset, scanErr := scanHeader(raw)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to parse message header: %w", err)
		}
		slog.Debug("header read leniently", "error", err)
		header = buildHeader(fields)
		mediaType, params := parseContentType(header.Get("Content-Type"))
		return email.NewMessage(header, fields, mediaType, params, raw[offset:]), nil
	}

	offset := len(raw) - src.Len() - br.Buffered()
	body := raw[offset:]

	mediaType, params := parseContentType(header.Get("Content-Type"))

	return email.NewMessage(header, collectFields(header), mediaType, params, body), nil
}

// scanHeader splits the header block of raw into unfolded fields, keeping
// each name as written. It returns the offset of the body. A line that is
// neither a continuation nor holds a colon after a non-empty name fails.
func scanHeader(raw []byte) ([]email.Field, int, error) {
	var fields []email.Field
	pos := 0
	for pos < len(raw) {
		line, next := raw[pos:], len(raw)
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line, next = line[:i], pos+i+1
		}
		line = bytes.TrimSuffix(line, []byte("\r"))

		switch {
		case len(line) == 0:
			return fields, next, nil
		case line[0] == ' ' || line[0] == '\t':
			if len(fields) == 0 {
				return nil, 0, errors.New("continuation line before the first field")
			}
			fields[len(fields)-1].Value += string(line)
		default:
			name, value, ok := bytes.Cut(line, []byte(":"))
			name = bytes.TrimRight(name, " \t")
			if !ok || !lenientFieldName(name) {
				return nil, 0, fmt.Errorf("malformed header line %q", line)
			}
			fields = append(fields, email.Field{
				Name:  string(name),
				Value: string(bytes.TrimLeft(value, " \t")),
			})
		}
		pos = next
	}
	return fields, len(raw), nil
}

// lenientFieldName accepts any non-empty name free of control characters.
func lenientFieldName(name []byte) bool {
	if len(name) == 0 {
		return false
	}
	for _, c := range name {
		if c < ' ' || c == 0x7f {
			return false
		}
	}
	return true
}

// buildHeader turns fields into a header for lookups and body decoding.
func buildHeader(fields []email.Field) textproto.Header {
	var h textproto.Header
	// Add inserts at the top, so walk the fields bottom-up.
	for i := len(fields) - 1; i >= 0; i-- {
		h.Add(fields[i].Name, fields[i].Value)
	}
	return h
}

// collectFields lists header fields top to bottom with folding removed.
func collectFields(header textproto.Header) []email.Field {
	fields := make([]email.Field, 0, header.Len())
	it := header.Fields()
	for it.Next() {
		fields = append(fields, email.Field{
			Name:  it.Key(),
			Value: unfold(it.Value()),
		})
	}
	return fields
}

var unfolder = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")

func unfold(v string) string {
	return unfolder.Replace(v)
}

// parseContentType returns the lower-cased media type. An unparseable value
// yields an empty media type so it never matches a concrete type.
func parseContentType(v string) (string, map[string]string) {
	if strings.TrimSpace(v) == "" {
		return defaultContentType, map[string]string{"charset": "us-ascii"}
	}

	mediaType, params, err := mime.ParseMediaType(v)
	if err != nil {
		if errors.Is(err, mime.ErrInvalidMediaParameter) {
			// The type itself is fine, only a parameter is broken.
			return mediaType, map[string]string{}
		}
		slog.Debug("failed to parse content type", "content_type", v, "error", err)
		return "", map[string]string{}
	}
	return mediaType, params
}
