package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sendwren/wren/internal/model"
)

// Client implements model.ReadAPI over a Unix domain socket using JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

var _ model.ReadAPI = (*Client)(nil)

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(commandTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) Accounts() ([]model.AccountStatus, error) {
	var result []model.AccountStatus
	err := c.call("Accounts", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) AccountStatus(accountID string) (model.AccountStatus, error) {
	var result model.AccountStatus
	err := c.call("AccountStatus", map[string]interface{}{"AccountID": accountID}, &result)
	return result, err
}

func (c *Client) Notifications() ([]model.Notification, error) {
	var result []model.Notification
	err := c.call("Notifications", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) ActiveCampaign() (*model.CampaignSnapshot, error) {
	var result *model.CampaignSnapshot
	err := c.call("ActiveCampaign", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) CampaignHistory() ([]model.CampaignSummary, error) {
	var result []model.CampaignSummary
	err := c.call("CampaignHistory", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) RecentActivity(limit int) ([]model.Transition, error) {
	var result []model.Transition
	err := c.call("RecentActivity", map[string]interface{}{"Limit": limit}, &result)
	return result, err
}

func (c *Client) Connect(_ context.Context, name string) (string, error) {
	var result string
	err := c.call("Connect", map[string]interface{}{"Name": name}, &result)
	return result, err
}

func (c *Client) Reconnect(_ context.Context, accountID string) error {
	return c.call("Reconnect", map[string]interface{}{"AccountID": accountID}, nil)
}

func (c *Client) Disconnect(_ context.Context, accountID string) error {
	return c.call("Disconnect", map[string]interface{}{"AccountID": accountID}, nil)
}

func (c *Client) Delete(_ context.Context, accountID string) error {
	return c.call("Delete", map[string]interface{}{"AccountID": accountID}, nil)
}

func (c *Client) DismissPairing(accountID string) error {
	return c.call("DismissPairing", map[string]interface{}{"AccountID": accountID}, nil)
}

func (c *Client) StartCampaign(_ context.Context, req model.CampaignRequest) (string, error) {
	var result string
	err := c.call("StartCampaign", map[string]interface{}{"Req": req}, &result)
	return result, err
}

func (c *Client) DismissNotification(id string) {
	c.call("DismissNotification", map[string]interface{}{"ID": id}, nil)
}
