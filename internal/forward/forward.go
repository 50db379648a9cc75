// Package forward runs one forwarding: read the message, resolve the
// sender, build the report and the wrapper, deliver it.
package forward

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
	"github.com/shineum/forward-as-attachment-mta/internal/parser"
	"github.com/shineum/forward-as-attachment-mta/internal/provider"
	"github.com/shineum/forward-as-attachment-mta/internal/report"
	"github.com/shineum/forward-as-attachment-mta/internal/sender"
	"github.com/shineum/forward-as-attachment-mta/internal/wrapper"
)

// fallbackHostname stands in for a host name that cannot be determined,
// matching the placeholder used for an unknown sender.
const fallbackHostname = "???"

// Forwarder wraps messages and hands them to a provider.
type Forwarder struct {
	provider provider.Provider
	from     string
	to       string
	now      func() time.Time
}

// New creates a Forwarder sending from the from mailbox to the to mailbox.
func New(p provider.Provider, from, to string) *Forwarder {
	return &Forwarder{
		provider: p,
		from:     from,
		to:       to,
		now:      time.Now,
	}
}

// Invocation describes one run of the binary.
type Invocation struct {
	Args  email.Args
	Stdin io.Reader

	ConfigMode    fs.FileMode
	ConfigModeErr error

	Env report.Environment
}

// Run forwards the message read from inv.Stdin. Only assembly of the
// mandatory parts and delivery can fail; a bad or unreadable input is
// forwarded as is. The assembled message is returned even when delivery
// fails.
func (f *Forwarder) Run(ctx context.Context, inv Invocation) (*email.Outgoing, error) {
	input := parser.ReadInput(inv.Stdin)
	msg, _ := input.Message()

	identity := sender.Resolve(inv.Args, msg)

	hostname := inv.Env.Hostname
	if hostname == "" {
		hostname = fallbackHostname
	}

	text := report.Build(report.Report{
		Hostname:      hostname,
		Args:          inv.Args,
		ConfigMode:    inv.ConfigMode,
		ConfigModeErr: inv.ConfigModeErr,
		Env:           inv.Env,
	})

	out, err := wrapper.Build(wrapper.Params{
		From:     f.from,
		To:       f.to,
		Hostname: hostname,
		Sender:   identity,
		Report:   text,
		Input:    input,
		Date:     f.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	slog.Info("forwarding message",
		"provider", f.provider.Name(),
		"subject", out.Subject,
		"inline", out.Inline,
		"size", len(out.Raw),
	)

	if err := f.provider.Send(ctx, out); err != nil {
		slog.Error("failed to deliver message",
			"provider", f.provider.Name(),
			"error", err,
		)
		return out, err
	}

	return out, nil
}
