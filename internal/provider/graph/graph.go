// Package graph implements a Provider that submits the wrapper message to
// the Microsoft Graph sendMail endpoint in MIME format.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// GraphProvider sends messages via Microsoft Graph using OAuth2 client
// credentials. The mailbox is the envelope sender of each message.
type GraphProvider struct {
	baseURL    string
	httpClient *http.Client
	token      *tokenCache
}

// New creates a new GraphProvider with the given configuration.
func New(cfg GraphProviderConfig) *GraphProvider {
	tokenURL := fmt.Sprintf(
		"https://login.microsoftonline.com/%s/oauth2/v2.0/token",
		url.PathEscape(cfg.TenantID),
	)

	client := &http.Client{Timeout: 30 * time.Second}

	return newWithOverrides(cfg, "https://graph.microsoft.com/v1.0", tokenURL, client)
}

// newWithOverrides creates a GraphProvider with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg GraphProviderConfig, baseURL, tokenURL string, client *http.Client) *GraphProvider {
	return &GraphProvider{
		baseURL:    baseURL,
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Send posts the base64-encoded MIME message to /users/{from}/sendMail. Any
// response other than 202 Accepted is an error; nothing is retried.
func (g *GraphProvider) Send(ctx context.Context, msg *email.Outgoing) error {
	token, err := g.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	body := base64.StdEncoding.EncodeToString(msg.Raw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sendMailURL(msg.From), bytes.NewReader([]byte(body)))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		slog.Debug("Graph accepted message", "request_id", resp.Header.Get("request-id"))
		return nil
	}

	return responseError(resp)
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}

func (g *GraphProvider) sendMailURL(mailbox string) string {
	return g.baseURL + "/users/" + url.PathEscape(mailbox) + "/sendMail"
}

// responseError turns a non-202 response into an error carrying the Graph
// error message when the body has one.
func responseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return fmt.Errorf("Graph API error (HTTP %d): %s: %s", resp.StatusCode, er.Error.Code, er.Error.Message)
	}

	return fmt.Errorf("Graph API error (HTTP %d): %s", resp.StatusCode, bytes.TrimSpace(body))
}
