// Package stdout implements a Provider that prints the assembled message
// instead of delivering it.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

const separator = "========================================\n"

// Provider prints messages to a writer in a human-readable format.
type Provider struct {
	// writer is the output destination, defaulting to os.Stderr since
	// stdout carries the status line.
	writer io.Writer
}

// New creates a new Provider that writes to os.Stderr.
func New() *Provider {
	return &Provider{writer: os.Stderr}
}

// NewWithWriter creates a new Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send prints the envelope summary followed by the raw MIME message.
func (p *Provider) Send(_ context.Context, msg *email.Outgoing) error {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&b, "Inline: %t\n", msg.Inline)
	fmt.Fprintf(&b, "Size: %s\n", formatSize(len(msg.Raw)))
	b.WriteString(separator)
	b.Write(msg.Raw)
	if len(msg.Raw) > 0 && msg.Raw[len(msg.Raw)-1] != '\n' {
		b.WriteString("\n")
	}
	b.WriteString(separator)

	if _, err := io.WriteString(p.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
