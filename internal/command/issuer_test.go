package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sendwren/wren/internal/model"
	"github.com/sendwren/wren/internal/notify"
	"github.com/sendwren/wren/internal/overlay"
	"github.com/sendwren/wren/internal/registry"
	"github.com/sendwren/wren/internal/watchdog"
)

type call struct {
	op string
	id string
}

type fakeBackend struct {
	calls     []call
	connectID string
	err       error
}

func (f *fakeBackend) Connect(_ context.Context, name string) (string, error) {
	f.calls = append(f.calls, call{"connect", name})
	return f.connectID, f.err
}

func (f *fakeBackend) Reconnect(_ context.Context, id string) error {
	f.calls = append(f.calls, call{"reconnect", id})
	return f.err
}

func (f *fakeBackend) Disconnect(_ context.Context, id string) error {
	f.calls = append(f.calls, call{"disconnect", id})
	return f.err
}

func (f *fakeBackend) Delete(_ context.Context, id string) error {
	f.calls = append(f.calls, call{"delete", id})
	return f.err
}

func (f *fakeBackend) StartCampaign(_ context.Context, req model.CampaignRequest) (string, error) {
	f.calls = append(f.calls, call{"send", req.AccountID})
	return "c1", f.err
}

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) Invalidate() { f.calls++ }

type fixture struct {
	backend *fakeBackend
	overlay *overlay.Store
	reg     *registry.Registry
	dog     *watchdog.Watchdog
	notes   *notify.Stream
	poller  *fakeInvalidator
	issuer  *Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		backend: &fakeBackend{connectID: "new1"},
		overlay: overlay.NewStore(),
		reg:     registry.NewRegistry(),
		dog:     watchdog.New(time.Hour, func(string, uint64) {}),
		notes:   notify.NewStream(time.Minute),
		poller:  &fakeInvalidator{},
	}
	f.issuer = NewIssuer(f.backend, f.overlay, f.reg, f.dog, f.notes, f.poller)
	t.Cleanup(func() {
		f.dog.Close()
		f.notes.Close()
	})
	return f
}

func (f *fixture) seed(id string, status model.ConnectionState) {
	accounts := append(f.reg.Accounts(), model.Account{ID: id, Name: id, Status: status})
	f.reg.ReplaceAll(accounts)
}

func TestConnectSetsOptimisticConnecting(t *testing.T) {
	f := newFixture(t)

	id, err := f.issuer.Connect(context.Background(), "sales")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if id != "new1" {
		t.Fatalf("got id %q", id)
	}
	e, ok := f.overlay.Entry("new1")
	if !ok || e.State != model.StateConnecting {
		t.Fatalf("no optimistic connecting entry: %+v", e)
	}
	if !f.dog.Pending("new1") {
		t.Fatal("watchdog not armed")
	}
	if f.poller.calls != 1 {
		t.Fatal("connect should force a poll to pick up the new account")
	}
}

func TestConnectSweepsAbandonedAttempts(t *testing.T) {
	f := newFixture(t)

	stale := f.overlay.BeginConnecting("old1")
	f.dog.Arm("old1", stale)

	if _, err := f.issuer.Connect(context.Background(), "sales"); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, ok := f.overlay.Entry("old1"); ok {
		t.Fatal("abandoned connecting entry not swept")
	}
	if f.dog.Pending("old1") {
		t.Fatal("abandoned attempt's watchdog not disarmed")
	}
}

func TestConnectFailureOnlyNotifies(t *testing.T) {
	f := newFixture(t)
	f.backend.err = errors.New("quota exceeded")

	if _, err := f.issuer.Connect(context.Background(), "sales"); err == nil {
		t.Fatal("expected error")
	}
	notes := f.notes.Snapshot()
	if len(notes) != 1 || notes[0].Message != "quota exceeded" {
		t.Fatalf("server reason not surfaced verbatim: %+v", notes)
	}
	if _, ok := f.overlay.Entry("new1"); ok {
		t.Fatal("rejected connect wrote an overlay entry")
	}
}

func TestReconnectPreconditions(t *testing.T) {
	cases := []struct {
		state   model.ConnectionState
		allowed bool
	}{
		{model.StateDisconnected, true},
		{model.StateFailed, true},
		{model.StateReady, false},
		{model.StateAuthenticated, false},
		{model.StateConnecting, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.state), func(t *testing.T) {
			f := newFixture(t)
			f.seed("a1", tc.state)

			err := f.issuer.Reconnect(context.Background(), "a1")
			var pe *PreconditionError
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected reconnect to pass: %v", err)
				}
				if len(f.backend.calls) != 1 {
					t.Fatal("backend not called")
				}
			} else {
				if !errors.As(err, &pe) {
					t.Fatalf("expected precondition error, got %v", err)
				}
				if len(f.backend.calls) != 0 {
					t.Fatal("request issued despite precondition violation")
				}
				if f.notes.Len() != 0 {
					t.Fatal("precondition violation must not notify")
				}
			}
		})
	}
}

func TestDisconnectOptimisticWriteAndRollbackOnFailure(t *testing.T) {
	f := newFixture(t)
	f.seed("a1", model.StateReady)
	f.backend.err = errors.New("session is busy")

	err := f.issuer.Disconnect(context.Background(), "a1")
	if err == nil {
		t.Fatal("expected error")
	}

	// The optimistic entry is dropped and a reconciling poll scheduled.
	if _, ok := f.overlay.Entry("a1"); ok {
		t.Fatal("optimistic entry kept after server refusal")
	}
	if f.poller.calls == 0 {
		t.Fatal("failed disconnect should force a reconciling poll")
	}
	notes := f.notes.Snapshot()
	if len(notes) != 1 || notes[0].Message != "session is busy" {
		t.Fatalf("server reason not surfaced: %+v", notes)
	}
}

func TestDisconnectSuccessKeepsOptimisticState(t *testing.T) {
	f := newFixture(t)
	f.seed("a1", model.StateReady)

	if err := f.issuer.Disconnect(context.Background(), "a1"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	e, ok := f.overlay.Entry("a1")
	if !ok || e.State != model.StateDisconnected {
		t.Fatalf("optimistic disconnected entry missing: %+v", e)
	}
}

func TestDeletePreconditions(t *testing.T) {
	cases := []struct {
		state   model.ConnectionState
		allowed bool
	}{
		{model.StateDisconnected, true},
		{model.StateFailed, true},
		{model.StateReady, true},
		{model.StateConnecting, false},
		{model.StateAuthenticated, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.state), func(t *testing.T) {
			f := newFixture(t)
			f.seed("a1", model.StateDisconnected)
			if tc.state != model.StateDisconnected {
				f.overlay.Advance("a1", tc.state)
			}

			err := f.issuer.Delete(context.Background(), "a1")
			if tc.allowed {
				if err != nil {
					t.Fatalf("expected delete to pass: %v", err)
				}
				if _, ok := f.reg.Account("a1"); ok {
					t.Fatal("account not removed from registry")
				}
				if _, ok := f.overlay.Entry("a1"); ok {
					t.Fatal("overlay entry not cleared on delete")
				}
			} else {
				var pe *PreconditionError
				if !errors.As(err, &pe) {
					t.Fatalf("expected precondition error, got %v", err)
				}
				if len(f.backend.calls) != 0 {
					t.Fatal("delete request issued mid-handshake")
				}
			}
		})
	}
}

func TestStartCampaignRequiresReadySession(t *testing.T) {
	f := newFixture(t)
	f.seed("a1", model.StateDisconnected)

	_, err := f.issuer.StartCampaign(context.Background(), model.CampaignRequest{AccountID: "a1"})
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	f.overlay.Advance("a1", model.StateReady)
	id, err := f.issuer.StartCampaign(context.Background(), model.CampaignRequest{AccountID: "a1"})
	if err != nil || id != "c1" {
		t.Fatalf("StartCampaign: id=%q err=%v", id, err)
	}
}

func TestDismissPairingClearsAttempt(t *testing.T) {
	f := newFixture(t)

	gen := f.overlay.SetPairingCode("a1", "AB-12")
	f.dog.Arm("a1", gen)

	if err := f.issuer.DismissPairing("a1"); err != nil {
		t.Fatalf("DismissPairing: %v", err)
	}
	if _, ok := f.overlay.Entry("a1"); ok {
		t.Fatal("dismissed attempt still in overlay")
	}
	if f.dog.Pending("a1") {
		t.Fatal("watchdog still armed after dismissal")
	}
}
