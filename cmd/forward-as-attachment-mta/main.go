// Package main is the entry point of the sendmail replacement that forwards
// every message it is given as an attachment.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/forward-as-attachment-mta/internal/config"
	"github.com/shineum/forward-as-attachment-mta/internal/email"
	"github.com/shineum/forward-as-attachment-mta/internal/forward"
	"github.com/shineum/forward-as-attachment-mta/internal/provider"
	"github.com/shineum/forward-as-attachment-mta/internal/provider/graph"
	"github.com/shineum/forward-as-attachment-mta/internal/provider/ses"
	"github.com/shineum/forward-as-attachment-mta/internal/provider/smtp"
	"github.com/shineum/forward-as-attachment-mta/internal/provider/stdout"
	"github.com/shineum/forward-as-attachment-mta/internal/report"
)

const progName = "forward-as-attachment-mta"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	code := run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run performs one invocation and returns the exit status. Configuration
// problems abort before stdin is touched.
func run(ctx context.Context, args []string, stdin io.Reader, out, errOut io.Writer) int {
	setupLogger(errOut, config.LevelFromEnv())

	path, err := config.Path()
	if err != nil {
		return fatal(errOut, err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fatal(errOut, err)
	}

	setupLogger(errOut, cfg.LogLevel)

	prov, err := selectProvider(ctx, cfg, errOut)
	if err != nil {
		return fatal(errOut, err)
	}

	mode, modeErr := config.Mode(path)
	if modeErr != nil {
		slog.Debug("failed to stat config file", "path", path, "error", modeErr)
	}

	fwd := forward.New(prov, cfg.SenderEmail, cfg.RecipientEmail)
	_, err = fwd.Run(ctx, forward.Invocation{
		Args:          email.NewArgs(args),
		Stdin:         stdin,
		ConfigMode:    mode,
		ConfigModeErr: modeErr,
		Env:           report.Collect(),
	})
	if err != nil {
		fmt.Fprintf(out, "Failed to send email: %v\n", err)
		return 1
	}

	fmt.Fprintln(out, "Email sent successfully")
	return 0
}

func fatal(w io.Writer, err error) int {
	fmt.Fprintf(w, "%s: %v\n", progName, err)
	return 1
}

// setupLogger configures the global slog logger with JSON output on w and
// the specified log level.
func setupLogger(w io.Writer, level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectProvider builds the delivery backend named in the configuration.
func selectProvider(ctx context.Context, cfg *config.Config, errOut io.Writer) (provider.Provider, error) {
	switch cfg.Provider {
	case "smtp", "":
		slog.Debug("using SMTP provider", "host", cfg.SMTPHost, "username", cfg.SMTPUsername)
		p, err := smtp.New(smtp.SMTPProviderConfig{
			Host:     cfg.SMTPHost,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			CAFile:   cfg.SMTPCAFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SMTP provider: %w", err)
		}
		return p, nil

	case "ses":
		slog.Debug("using AWS SES provider", "region", cfg.SES.Region)
		p, err := ses.New(ctx, ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES provider: %w", err)
		}
		return p, nil

	case "graph":
		slog.Debug("using Microsoft Graph provider", "tenant_id", cfg.Graph.TenantID)
		return graph.New(graph.GraphProviderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		}), nil

	case "stdout":
		slog.Debug("using stdout provider")
		return stdout.NewWithWriter(errOut), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
