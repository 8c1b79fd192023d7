package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sendwren/wren/internal/campaign"
	"github.com/sendwren/wren/internal/command"
	"github.com/sendwren/wren/internal/model"
	"github.com/sendwren/wren/internal/notify"
	"github.com/sendwren/wren/internal/overlay"
	"github.com/sendwren/wren/internal/registry"
	"github.com/sendwren/wren/internal/syncer"
	"github.com/sendwren/wren/internal/watchdog"
)

type fakeBackend struct{ err error }

func (f *fakeBackend) Connect(context.Context, string) (string, error) { return "new1", f.err }
func (f *fakeBackend) Reconnect(context.Context, string) error        { return f.err }
func (f *fakeBackend) Disconnect(context.Context, string) error       { return f.err }
func (f *fakeBackend) Delete(context.Context, string) error           { return f.err }
func (f *fakeBackend) StartCampaign(context.Context, model.CampaignRequest) (string, error) {
	return "c1", f.err
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate() {}

func newTestServer(t *testing.T) (*Server, *registry.Registry, *overlay.Store) {
	t.Helper()

	reg := registry.NewRegistry()
	ov := overlay.NewStore()
	notes := notify.NewStream(time.Minute)
	campaigns := campaign.NewTracker(nil)
	dog := watchdog.New(time.Hour, func(string, uint64) {})
	view := syncer.NewView(reg, ov, notes, campaigns, nil)
	issuer := command.NewIssuer(&fakeBackend{}, ov, reg, dog, notes, noopInvalidator{})

	srv := NewServer("127.0.0.1:0", view, issuer)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		srv.Stop()
		dog.Close()
		notes.Close()
	})
	return srv, reg, ov
}

func getJSON(t *testing.T, url string, dest interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	srv, reg, _ := newTestServer(t)
	reg.ReplaceAll([]model.Account{{ID: "a1"}, {ID: "a2"}})

	var body struct {
		Status   string `json:"status"`
		Accounts int    `json:"accounts"`
	}
	if code := getJSON(t, "http://"+srv.Addr()+"/api/health", &body); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if body.Status != "ok" || body.Accounts != 2 {
		t.Fatalf("unexpected health: %+v", body)
	}
}

func TestAccountsReturnMergedStatus(t *testing.T) {
	srv, reg, ov := newTestServer(t)
	reg.ReplaceAll([]model.Account{{ID: "a1", Name: "sales", Status: model.StateDisconnected}})
	ov.SetPairingCode("a1", "AB-12")

	var body struct {
		Accounts []model.AccountStatus `json:"accounts"`
	}
	if code := getJSON(t, "http://"+srv.Addr()+"/api/accounts", &body); code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	if len(body.Accounts) != 1 {
		t.Fatalf("unexpected accounts: %+v", body.Accounts)
	}
	got := body.Accounts[0]
	if got.Effective != model.StateConnecting || got.PairingCode != "AB-12" {
		t.Fatalf("overlay not merged: %+v", got)
	}
}

func TestConnectEndpoint(t *testing.T) {
	srv, _, ov := newTestServer(t)

	payload, _ := json.Marshal(map[string]string{"name": "sales"})
	resp, err := http.Post("http://"+srv.Addr()+"/api/accounts", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var body struct {
		AccountID string `json:"account_id"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.AccountID != "new1" {
		t.Fatalf("unexpected id %q", body.AccountID)
	}
	if e, ok := ov.Entry("new1"); !ok || e.State != model.StateConnecting {
		t.Fatalf("optimistic write missing: %+v", e)
	}
}

func TestDeleteMidHandshakeIsConflict(t *testing.T) {
	srv, reg, ov := newTestServer(t)
	reg.ReplaceAll([]model.Account{{ID: "a1", Status: model.StateDisconnected}})
	ov.SetPairingCode("a1", "AB-12")

	req, _ := http.NewRequest(http.MethodDelete, "http://"+srv.Addr()+"/api/accounts/a1", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestUnknownAccountIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post("http://"+srv.Addr()+"/api/accounts/nope/disconnect", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
