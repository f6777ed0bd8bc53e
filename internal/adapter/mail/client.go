// Package mail provides the mail-sending collaborator. Messages are sent
// as the caller: the request-scoped credential travels in the context and
// there is no service-identity fallback.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sdap/playbook/internal/domain"
)

// Message is one outbound email.
type Message struct {
	To      []string `json:"to"`
	CC      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Sender sends mail on behalf of the current request identity.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client posts messages to the mail relay endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a mail client for the given relay URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ Sender = (*Client)(nil)

// Send posts the message using the caller's bearer token. It fails when
// no request identity is attached to the context.
func (c *Client) Send(ctx context.Context, msg Message) error {
	token, ok := domain.RequestIdentityFrom(ctx)
	if !ok {
		return fmt.Errorf("no request identity available: sending mail requires request-scoped credentials")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mail relay returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
