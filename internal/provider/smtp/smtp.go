// Package smtp implements a Provider that relays messages through an
// authenticated SMTP submission server.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
	smtptls "github.com/shineum/forward-as-attachment-mta/internal/tls"
)

// submissionPort is used when the configured host carries no port.
const submissionPort = "587"

// SMTPProviderConfig holds the configuration for creating a SMTPProvider.
type SMTPProviderConfig struct {
	// Host is "host" or "host:port".
	Host     string
	Username string
	Password string

	// CAFile optionally names extra trusted CA certificates.
	CAFile string

	// LocalName is sent in EHLO. Defaults to "localhost".
	LocalName string

	// TLSConfig overrides the configuration derived from Host and CAFile.
	TLSConfig *tls.Config
}

// SMTPProvider relays messages over SMTP with mandatory STARTTLS and
// AUTH PLAIN.
type SMTPProvider struct {
	addr      string
	username  string
	password  string
	localName string
	tlsConfig *tls.Config
}

// New creates a new SMTPProvider with the given configuration.
func New(cfg SMTPProviderConfig) (*SMTPProvider, error) {
	addr, host, err := splitAddr(cfg.Host)
	if err != nil {
		return nil, err
	}

	tlsConfig := cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig, err = smtptls.ClientConfig(host, cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS: %w", err)
		}
	}

	localName := cfg.LocalName
	if localName == "" {
		localName = "localhost"
	}

	return &SMTPProvider{
		addr:      addr,
		username:  cfg.Username,
		password:  cfg.Password,
		localName: localName,
		tlsConfig: tlsConfig,
	}, nil
}

// Send delivers msg in a single SMTP session. Failures are returned as is;
// nothing is retried. Cancelling ctx aborts the session at any stage.
func (p *SMTPProvider) Send(ctx context.Context, msg *email.Outgoing) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	slog.Debug("connecting to SMTP server", "addr", p.addr)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.addr, err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		if !stop() && err != nil {
			err = fmt.Errorf("SMTP session with %s aborted: %w", p.addr, context.Cause(ctx))
		}
	}()

	c := gosmtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(p.localName); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); !ok {
		return fmt.Errorf("server %s does not support STARTTLS", p.addr)
	}
	if err := c.StartTLS(p.tlsConfig); err != nil {
		return fmt.Errorf("STARTTLS failed: %w", err)
	}

	if err := c.Auth(sasl.NewPlainClient("", p.username, p.password)); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := c.SendMail(msg.From, []string{msg.To}, bytes.NewReader(msg.Raw)); err != nil {
		return fmt.Errorf("failed to submit message: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message was accepted before QUIT.
		slog.Warn("SMTP QUIT failed", "error", err)
	}

	return nil
}

// Name returns the provider name.
func (p *SMTPProvider) Name() string {
	return "smtp"
}

// splitAddr returns the dial address and the host name to verify.
func splitAddr(hostport string) (addr, host string, err error) {
	if hostport == "" {
		return "", "", fmt.Errorf("SMTP host is empty")
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return hostport, h, nil
	}
	return net.JoinHostPort(hostport, submissionPort), hostport, nil
}
