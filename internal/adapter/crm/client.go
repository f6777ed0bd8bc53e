// Package crm provides the CRM Web API client. Records live in entity
// collections addressed as {entitySet}(id); writes are partial-field
// patches and relationship fields use the "@odata.bind" convention.
package crm

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

// WebAPI is the record-write surface the executors depend on.
type WebAPI interface {
	// UpdateRecord patches the named fields of one record.
	UpdateRecord(ctx context.Context, entityLogicalName, recordID string, fields map[string]any) error

	// CreateRecord creates a record and returns its id.
	CreateRecord(ctx context.Context, entityLogicalName string, fields map[string]any) (string, error)
}

// Client is the HTTP implementation of WebAPI.
type Client struct {
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewClient creates a CRM Web API client for the given organization URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: "v9.2",
		httpClient: &http.Client{Timeout: timeout},
	}
}

var _ WebAPI = (*Client)(nil)

// entitySetOverrides lists logical names whose collection name is not
// formed by appending "s".
var entitySetOverrides = map[string]string{
	"opportunity": "opportunities",
	"activity":    "activities",
	"category":    "categories",
}

// EntitySetName returns the collection name for an entity logical name.
func EntitySetName(logicalName string) string {
	name := strings.ToLower(strings.TrimSpace(logicalName))
	if set, ok := entitySetOverrides[name]; ok {
		return set
	}
	if strings.HasSuffix(name, "s") {
		return name + "es"
	}
	return name + "s"
}

// BindLookup formats a relationship binding value: "/<entitySet>(<id>)".
func BindLookup(entitySet, recordID string) string {
	return fmt.Sprintf("/%s(%s)", entitySet, recordID)
}

func (c *Client) UpdateRecord(ctx context.Context, entityLogicalName, recordID string, fields map[string]any) error {
	url := fmt.Sprintf("%s/api/data/%s/%s(%s)", c.baseURL, c.apiVersion, EntitySetName(entityLogicalName), recordID)
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal record fields: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("patch %s(%s): %w", entityLogicalName, recordID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return nil
}

func (c *Client) CreateRecord(ctx context.Context, entityLogicalName string, fields map[string]any) (string, error) {
	url := fmt.Sprintf("%s/api/data/%s/%s", c.baseURL, c.apiVersion, EntitySetName(entityLogicalName))
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal record fields: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", entityLogicalName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}

	// The created record id comes back in the OData-EntityId header as
	// ".../{entitySet}(guid)".
	entityID := resp.Header.Get("OData-EntityId")
	if open := strings.LastIndex(entityID, "("); open >= 0 && strings.HasSuffix(entityID, ")") {
		return entityID[open+1 : len(entityID)-1], nil
	}
	return "", nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if token, ok := domain.RequestIdentityFrom(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("crm api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
