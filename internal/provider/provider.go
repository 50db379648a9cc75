// Package provider defines the interface for delivery backends.
package provider

import (
	"context"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

// Provider is the interface that delivery backends must implement.
// Each provider hands an assembled message to one transport
// (an SMTP relay, AWS SES, Microsoft Graph or standard output).
type Provider interface {
	// Send delivers msg exactly once. It returns an error if the delivery
	// fails; callers do not retry.
	Send(ctx context.Context, msg *email.Outgoing) error

	// Name returns the human-readable name of this provider.
	Name() string
}
