package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sendwren/wren/internal/model"
)

func TestListAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/v1/accounts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accounts": []model.Account{
				{ID: "a1", Name: "sales", Status: model.StateReady},
				{ID: "a2", Name: "support", Status: model.StateDisconnected},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	accounts, err := c.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0].Status != model.StateReady {
		t.Fatalf("unexpected accounts: %+v", accounts)
	}
}

func TestConnectReturnsAccountID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "sales" {
			t.Errorf("wrong name: %q", body["name"])
		}
		json.NewEncoder(w).Encode(map[string]string{"account_id": "a9"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	id, err := c.Connect(context.Background(), "sales")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if id != "a9" {
		t.Fatalf("got id %q", id)
	}
}

func TestServerErrorSurfacesVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "session is mid-handshake"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.Delete(context.Background(), "a1")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "session is mid-handshake" {
		t.Fatalf("server reason not verbatim: %q", err.Error())
	}
}

func TestDisconnectHitsAccountPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.Disconnect(context.Background(), "a1"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if gotPath != "/api/v1/accounts/a1/disconnect" {
		t.Fatalf("wrong path: %s", gotPath)
	}
}

func TestStartCampaign(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.CampaignRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.AccountID != "a1" || len(req.Recipients) != 2 {
			t.Errorf("request lost fields: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"campaign_id": "c7"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	id, err := c.StartCampaign(context.Background(), model.CampaignRequest{
		Name:       "launch",
		AccountID:  "a1",
		Message:    "hello",
		Recipients: []string{"+15550001", "+15550002"},
	})
	if err != nil {
		t.Fatalf("StartCampaign: %v", err)
	}
	if id != "c7" {
		t.Fatalf("got id %q", id)
	}
}
