package wrapper

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

// Rerender rebuilds msg as a standalone message with a base64 body, safe to
// embed unencoded in an 8bit part. Only text/plain messages whose header
// fields all survive the round trip are accepted: a partial header set could
// be rendered misleadingly.
func Rerender(msg *email.Message) ([]byte, error) {
	if mt := msg.MediaType(); mt != "text/plain" {
		return nil, fmt.Errorf("content type %q is not text/plain", mt)
	}

	fields := msg.Fields()
	for _, f := range fields {
		if !validFieldName(f.Name) {
			return nil, fmt.Errorf("header name %q is not printable ASCII", f.Name)
		}
		if !utf8.ValidString(f.Value) {
			return nil, fmt.Errorf("value of header %q is not valid UTF-8", f.Name)
		}
	}

	body, err := msg.Body()
	if err != nil {
		return nil, fmt.Errorf("cannot get body: %w", err)
	}

	// CreateWriter puts MIME-Version: 1.0 on top when the header lacks one.
	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, renderHeader(fields))
	if err != nil {
		return nil, fmt.Errorf("failed to create writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return buf.Bytes(), nil
}

// renderHeader turns fields back into a header, keeping their order and
// replacing the transfer encoding with base64.
func renderHeader(fields []email.Field) message.Header {
	var h message.Header
	h.Set("Content-Transfer-Encoding", "base64")
	// Add inserts at the top, so walk the fields bottom-up.
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		if strings.EqualFold(f.Name, "Content-Transfer-Encoding") {
			continue
		}
		h.Add(f.Name, f.Value)
	}
	return h
}

// validFieldName reports whether name is an RFC 5322 field name: printable
// US-ASCII except colon.
func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 33 || c > 126 || c == ':' {
			return false
		}
	}
	return true
}
