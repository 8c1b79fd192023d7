// Package backend is the HTTP client for the messaging backend: the poll
// endpoint, the session command endpoints, and campaign submission. Push
// events arrive separately over the event stream, not through this client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sendwren/wren/internal/model"
)

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a backend client. token may be empty when the backend
// does not require authentication (local development).
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// ListAccounts fetches the full current account list (the poll endpoint).
func (c *Client) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var out struct {
		Accounts []model.Account `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/accounts", nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// Connect asks the backend to start a pairing attempt for a new account and
// returns the account id the push events will be keyed by.
func (c *Client) Connect(ctx context.Context, name string) (string, error) {
	req := map[string]string{"name": name}
	var out struct {
		AccountID string `json:"account_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/accounts", req, &out); err != nil {
		return "", err
	}
	return out.AccountID, nil
}

// Reconnect starts a new pairing attempt for an existing account.
func (c *Client) Reconnect(ctx context.Context, accountID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/accounts/"+url.PathEscape(accountID)+"/connect", nil, nil)
}

// Disconnect asks the backend to close the account's live session.
func (c *Client) Disconnect(ctx context.Context, accountID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/accounts/"+url.PathEscape(accountID)+"/disconnect", nil, nil)
}

// Delete removes the account server-side.
func (c *Client) Delete(ctx context.Context, accountID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/accounts/"+url.PathEscape(accountID), nil, nil)
}

// StartCampaign submits a send campaign and returns its id. Progress for the
// returned id arrives via the push channel.
func (c *Client) StartCampaign(ctx context.Context, req model.CampaignRequest) (string, error) {
	var out struct {
		CampaignID string `json:"campaign_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/campaigns", req, &out); err != nil {
		return "", err
	}
	return out.CampaignID, nil
}

// CampaignHistory fetches completed campaigns, newest first.
func (c *Client) CampaignHistory(ctx context.Context) ([]model.CampaignSummary, error) {
	var out struct {
		Campaigns []model.CampaignSummary `json:"campaigns"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/campaigns/history", nil, &out); err != nil {
		return nil, err
	}
	return out.Campaigns, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return serverError(resp)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("backend: decode response: %w", err)
		}
	}
	return nil
}

// serverError extracts the server-reported reason so it can be surfaced
// verbatim in a notification.
func serverError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s", payload.Error)
	}
	return fmt.Errorf("backend: unexpected status %d", resp.StatusCode)
}
