package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes model.ReadAPI over a Unix domain socket.
// Each method maps 1:1 to the interface.
//
//   Method                 Params                                   Result
//   ────────────────────   ──────────────────────────────────────   ─────────────────────
//   Accounts               (none)                                   []AccountStatus
//   AccountStatus          {AccountID: string}                      AccountStatus
//   Notifications          (none)                                   []Notification
//   ActiveCampaign         (none)                                   *CampaignSnapshot
//   CampaignHistory        (none)                                   []CampaignSummary
//   RecentActivity         {Limit: int}                             []Transition
//   Connect                {Name: string}                           string (account id)
//   Reconnect              {AccountID: string}                      null
//   Disconnect             {AccountID: string}                      null
//   Delete                 {AccountID: string}                      null
//   DismissPairing         {AccountID: string}                      null
//   StartCampaign          {Req: CampaignRequest}                   string (campaign id)
//   DismissNotification    {ID: string}                             null
//
// Methods with no params accept empty or null params gracefully.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (command refused or backend failure)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/wren/wren.sock, falling back to
// ~/.local/state/wren/wren.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "wren", "wren.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/wren.sock"
	}
	return filepath.Join(home, ".local", "state", "wren", "wren.sock")
}
