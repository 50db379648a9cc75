// Package wrapper assembles the outgoing message: a diagnostic text part,
// a best-effort inline rendering of the original message and the original
// bytes as an attachment.
package wrapper

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

const (
	// AttachmentName is the file name of the raw attachment.
	AttachmentName = "stdin.eml"

	summaryAmbiguous   = "(multiple Subject headers)"
	summaryUnparseable = "(unparseable message)"
)

// Params holds everything Build needs.
type Params struct {
	// From and To are the configured sender and recipient mailboxes.
	From string
	To   string

	// Hostname and Sender make up the subject prefix "<Sender>@<Hostname>".
	Hostname string
	Sender   string

	// Report is the diagnostic text of the first part.
	Report string

	Input *email.Input

	// Date defaults to the current time.
	Date time.Time
}

// Build assembles the wrapper message. Errors are only returned for the
// mandatory parts; a failed inline rendering is logged and skipped.
func Build(p Params) (*email.Outgoing, error) {
	msg, parsed := p.Input.Message()
	subject := fmt.Sprintf("%s@%s: %s", p.Sender, p.Hostname, Summary(msg, parsed))

	date := p.Date
	if date.IsZero() {
		date = time.Now()
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: p.From}})
	h.SetAddressList("To", []*mail.Address{{Address: p.To}})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}
	h.Set("MIME-Version", "1.0")
	h.SetContentType("multipart/mixed", nil)

	var inline []byte
	if parsed {
		var err error
		if inline, err = Rerender(msg); err != nil {
			slog.Debug("can't inline the original message, attaching it only", "error", err)
			inline = nil
		}
	} else {
		slog.Debug("can't inline the original message: not parseable")
	}

	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	if err := writeReport(w, p.Report); err != nil {
		return nil, fmt.Errorf("failed to write report part: %w", err)
	}

	if inline != nil {
		if err := writeInline(w, inline); err != nil {
			return nil, fmt.Errorf("failed to write inline part: %w", err)
		}
	}

	if err := writeAttachment(w, p.Input.Raw()); err != nil {
		return nil, fmt.Errorf("failed to attach original message: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return &email.Outgoing{
		From:    p.From,
		To:      p.To,
		Subject: subject,
		Inline:  inline != nil,
		Raw:     buf.Bytes(),
	}, nil
}

// Summary returns the subject of the original message, or a placeholder
// when it is missing, repeated or the message could not be parsed.
func Summary(msg *email.Message, parsed bool) string {
	if !parsed {
		return summaryUnparseable
	}

	values := msg.Values("Subject")
	if len(values) != 1 {
		return summaryAmbiguous
	}

	var h mail.Header
	h.Set("Subject", values[0])
	subject, err := h.Subject()
	if err != nil {
		return values[0]
	}
	return subject
}

func writeReport(w *message.Writer, report string) error {
	var h message.Header
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(part, report); err != nil {
		return err
	}
	return part.Close()
}

// writeInline embeds an already base64-safe message. message/rfc822 parts
// may only declare 7bit, 8bit or binary (RFC 2045 section 6.4), so the
// wrapper is 8bit and the payload is copied as is.
func writeInline(w *message.Writer, inline []byte) error {
	var h message.Header
	h.SetContentType("message/rfc822", nil)
	h.SetContentDisposition("inline", nil)
	h.Set("Content-Transfer-Encoding", "8bit")

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(inline); err != nil {
		return err
	}
	return part.Close()
}

// writeAttachment attaches raw byte for byte. Standard input is not
// guaranteed to be a valid message, hence the generic type.
func writeAttachment(w *message.Writer, raw []byte) error {
	var h message.Header
	h.SetContentType("application/octet-stream", nil)
	h.SetContentDisposition("attachment", map[string]string{"filename": AttachmentName})
	h.Set("Content-Transfer-Encoding", "base64")

	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(raw); err != nil {
		return err
	}
	return part.Close()
}
