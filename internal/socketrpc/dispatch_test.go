package socketrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sendwren/wren/internal/model"
)

// stubAPI returns fixed values for dispatch unit testing.
type stubAPI struct{}

func (a *stubAPI) Accounts() ([]model.AccountStatus, error) {
	return []model.AccountStatus{{
		Account:   model.Account{ID: "acc1", Name: "sales"},
		Effective: model.StateReady,
	}}, nil
}
func (a *stubAPI) AccountStatus(accountID string) (model.AccountStatus, error) {
	return model.AccountStatus{
		Account:     model.Account{ID: accountID},
		Effective:   model.StateConnecting,
		Overlaid:    true,
		PairingCode: "AB-12",
	}, nil
}
func (a *stubAPI) Notifications() ([]model.Notification, error) {
	return []model.Notification{{ID: "n1", Severity: model.SeverityInfo, Message: "hi"}}, nil
}
func (a *stubAPI) ActiveCampaign() (*model.CampaignSnapshot, error) {
	return &model.CampaignSnapshot{
		CampaignID: "c1",
		Progress:   model.CampaignProgress{Total: 10, Sent: 4},
	}, nil
}
func (a *stubAPI) CampaignHistory() ([]model.CampaignSummary, error) {
	return []model.CampaignSummary{{ID: "c0", Name: "spring"}}, nil
}
func (a *stubAPI) RecentActivity(limit int) ([]model.Transition, error) {
	return []model.Transition{{
		AccountID: "acc1",
		To:        model.StateReady,
		At:        time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}}, nil
}
func (a *stubAPI) Connect(ctx context.Context, name string) (string, error) { return "acc9", nil }
func (a *stubAPI) Reconnect(ctx context.Context, accountID string) error    { return nil }
func (a *stubAPI) Disconnect(ctx context.Context, accountID string) error   { return nil }
func (a *stubAPI) Delete(ctx context.Context, accountID string) error       { return nil }
func (a *stubAPI) DismissPairing(accountID string) error                    { return nil }
func (a *stubAPI) StartCampaign(ctx context.Context, req model.CampaignRequest) (string, error) {
	return "c2", nil
}
func (a *stubAPI) DismissNotification(id string) {}

// failingAPI rejects every command the way the issuer would.
type failingAPI struct {
	stubAPI
}

func (a *failingAPI) Disconnect(ctx context.Context, accountID string) error {
	return errors.New("disconnect not allowed in state \"connecting\"")
}

func newTestDispatcher() *Server {
	return &Server{api: &stubAPI{}}
}

func TestDispatch_AllMethods(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	tests := []struct {
		method string
		params string
	}{
		{"Accounts", `{}`},
		{"AccountStatus", `{"AccountID":"acc1"}`},
		{"Notifications", `{}`},
		{"ActiveCampaign", `{}`},
		{"CampaignHistory", `{}`},
		{"RecentActivity", `{"Limit":50}`},
		{"Connect", `{"Name":"sales"}`},
		{"Reconnect", `{"AccountID":"acc1"}`},
		{"Disconnect", `{"AccountID":"acc1"}`},
		{"Delete", `{"AccountID":"acc1"}`},
		{"DismissPairing", `{"AccountID":"acc1"}`},
		{"StartCampaign", `{"Req":{"name":"spring","account_id":"acc1"}}`},
		{"DismissNotification", `{"ID":"n1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()
			req := Request{
				JSONRPC: "2.0",
				ID:      1,
				Method:  tt.method,
				Params:  json.RawMessage(tt.params),
			}
			resp := srv.dispatch(req)
			if resp.Error != nil {
				t.Fatalf("dispatch(%s) error: %s", tt.method, resp.Error.Message)
			}
			if resp.JSONRPC != "2.0" {
				t.Errorf("JSONRPC = %q, want 2.0", resp.JSONRPC)
			}
			if resp.ID != 1 {
				t.Errorf("ID = %d, want 1", resp.ID)
			}
		})
	}
}

func TestDispatch_MethodNotFound(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "NonExistentMethod",
		Params:  json.RawMessage(`{}`),
	})
	if resp.Error == nil {
		t.Fatal("expected error for unknown method")
	}
	if resp.Error.Code != -32601 {
		t.Errorf("error code = %d, want -32601", resp.Error.Code)
	}
}

func TestDispatch_InvalidParams(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	resp := srv.dispatch(Request{
		JSONRPC: "2.0",
		ID:      2,
		Method:  "Connect",
		Params:  json.RawMessage(`not json`),
	})
	if resp.Error == nil {
		t.Fatal("expected error for malformed params")
	}
	if resp.Error.Code != -32602 {
		t.Errorf("error code = %d, want -32602 (invalid params)", resp.Error.Code)
	}
}

func TestDispatch_EmptyParamsOnReadMethods(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	methods := []string{"Accounts", "Notifications", "ActiveCampaign", "CampaignHistory", "RecentActivity"}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			t.Parallel()
			resp := srv.dispatch(Request{
				JSONRPC: "2.0",
				ID:      1,
				Method:  method,
				Params:  nil,
			})
			if resp.Error != nil {
				t.Fatalf("dispatch(%s) with nil params: %s", method, resp.Error.Message)
			}
		})
	}
}

func TestDispatch_CommandFailureIsApplicationError(t *testing.T) {
	t.Parallel()
	srv := &Server{api: &failingAPI{}}

	resp := srv.dispatch(Request{
		JSONRPC: "2.0",
		ID:      3,
		Method:  "Disconnect",
		Params:  json.RawMessage(`{"AccountID":"acc1"}`),
	})
	if resp.Error == nil {
		t.Fatal("expected application error")
	}
	if resp.Error.Code != -32000 {
		t.Errorf("error code = %d, want -32000", resp.Error.Code)
	}
}

func TestDispatch_PreservesRequestID(t *testing.T) {
	t.Parallel()
	srv := newTestDispatcher()

	for _, id := range []int{0, 1, 42, 9999} {
		resp := srv.dispatch(Request{
			JSONRPC: "2.0",
			ID:      id,
			Method:  "Accounts",
			Params:  json.RawMessage(`{}`),
		})
		if resp.ID != id {
			t.Errorf("request ID %d: response ID = %d", id, resp.ID)
		}
	}
}
