// Package command translates user intents (connect, disconnect, delete,
// reconnect, send) into backend requests, guarded by precondition checks
// against the merged effective status.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendwren/wren/internal/model"
	"github.com/sendwren/wren/internal/notify"
	"github.com/sendwren/wren/internal/overlay"
	"github.com/sendwren/wren/internal/registry"
	"github.com/sendwren/wren/internal/watchdog"
)

// Backend is the command-endpoint contract against the messaging backend.
type Backend interface {
	Connect(ctx context.Context, name string) (string, error)
	Reconnect(ctx context.Context, accountID string) error
	Disconnect(ctx context.Context, accountID string) error
	Delete(ctx context.Context, accountID string) error
	StartCampaign(ctx context.Context, req model.CampaignRequest) (string, error)
}

// Invalidator schedules a poll refresh.
type Invalidator interface {
	Invalidate()
}

// ErrUnknownAccount is returned when a command names an account that neither
// the registry nor the overlay knows about.
var ErrUnknownAccount = errors.New("unknown account")

// PreconditionError reports a command refused locally, before any request was
// issued. The UI is expected to disable the action instead of showing this:
// precondition violations never become notifications.
type PreconditionError struct {
	Op        string
	AccountID string
	State     model.ConnectionState
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("command: %s not allowed for account %s in state %q", e.Op, e.AccountID, e.State)
}

// Issuer checks preconditions on effective status, performs the documented
// optimistic overlay pre-writes, and surfaces server rejections verbatim as
// error notifications. State changes otherwise come only from push events.
type Issuer struct {
	backend Backend
	overlay *overlay.Store
	reg     *registry.Registry
	dog     *watchdog.Watchdog
	notes   *notify.Stream
	poller  Invalidator
}

// NewIssuer creates a command issuer.
func NewIssuer(backend Backend, ov *overlay.Store, reg *registry.Registry, dog *watchdog.Watchdog, notes *notify.Stream, poller Invalidator) *Issuer {
	return &Issuer{
		backend: backend,
		overlay: ov,
		reg:     reg,
		dog:     dog,
		notes:   notes,
		poller:  poller,
	}
}

// Connect issues a pairing attempt for a new account. Allowed from any
// state. On acceptance the overlay is optimistically set to connecting, the
// watchdog armed, and any connecting entries left over from abandoned
// attempts are swept.
func (i *Issuer) Connect(ctx context.Context, name string) (string, error) {
	accountID, err := i.backend.Connect(ctx, name)
	if err != nil {
		i.notes.Error(err.Error())
		return "", err
	}

	i.beginAttempt(accountID)
	i.poller.Invalidate() // pick up the new account before the next scheduled poll
	return accountID, nil
}

// Reconnect starts a new pairing attempt for an existing account. Offered
// only when the effective status is disconnected or failed.
func (i *Issuer) Reconnect(ctx context.Context, accountID string) error {
	state, err := i.effective(accountID)
	if err != nil {
		return err
	}
	if state != model.StateDisconnected && state != model.StateFailed {
		return &PreconditionError{Op: "reconnect", AccountID: accountID, State: state}
	}

	if err := i.backend.Reconnect(ctx, accountID); err != nil {
		i.notes.Error(err.Error())
		return err
	}

	i.beginAttempt(accountID)
	return nil
}

// Disconnect closes a live session. Allowed only from ready or
// authenticated. The overlay is optimistically set to disconnected before
// the server confirms, to avoid a flash of a stale ready badge; if the
// server refuses, the optimistic entry is dropped and a poll is forced so
// the true state reconciles.
func (i *Issuer) Disconnect(ctx context.Context, accountID string) error {
	state, err := i.effective(accountID)
	if err != nil {
		return err
	}
	if state != model.StateReady && state != model.StateAuthenticated {
		return &PreconditionError{Op: "disconnect", AccountID: accountID, State: state}
	}

	i.overlay.Advance(accountID, model.StateDisconnected)
	i.dog.Disarm(accountID)

	if err := i.backend.Disconnect(ctx, accountID); err != nil {
		i.notes.Error(err.Error())
		i.overlay.Remove(accountID)
		i.poller.Invalidate()
		return err
	}
	return nil
}

// Delete removes the account. Blocked while connecting or authenticated so a
// mid-handshake session is never orphaned server-side. The registry entry is
// removed only after the server confirms.
func (i *Issuer) Delete(ctx context.Context, accountID string) error {
	state, err := i.effective(accountID)
	if err != nil {
		return err
	}
	if state == model.StateConnecting || state == model.StateAuthenticated {
		return &PreconditionError{Op: "delete", AccountID: accountID, State: state}
	}

	if err := i.backend.Delete(ctx, accountID); err != nil {
		i.notes.Error(err.Error())
		return err
	}

	i.reg.Remove(accountID)
	i.overlay.Remove(accountID)
	i.dog.Disarm(accountID)
	i.notes.Success("Account removed")
	return nil
}

// StartCampaign submits a send campaign on an account whose session is ready.
func (i *Issuer) StartCampaign(ctx context.Context, req model.CampaignRequest) (string, error) {
	state, err := i.effective(req.AccountID)
	if err != nil {
		return "", err
	}
	if state != model.StateReady {
		return "", &PreconditionError{Op: "send", AccountID: req.AccountID, State: state}
	}

	campaignID, err := i.backend.StartCampaign(ctx, req)
	if err != nil {
		i.notes.Error(err.Error())
		return "", err
	}
	i.notes.Info("Campaign started")
	return campaignID, nil
}

// DismissPairing drops the pairing code the user closed, cancels the
// attempt's watchdog, and lets the account fall back to its persisted status.
func (i *Issuer) DismissPairing(accountID string) error {
	i.overlay.ClearPairing(accountID)
	i.dog.Disarm(accountID)
	return nil
}

// DismissNotification removes a toast early. Idempotent.
func (i *Issuer) DismissNotification(id string) {
	i.notes.Dismiss(id)
}

// beginAttempt applies the optimistic connecting write for a freshly accepted
// pairing attempt: sweep stale connecting entries, write the new one, arm the
// watchdog for its generation.
func (i *Issuer) beginAttempt(accountID string) {
	for _, stale := range i.overlay.SweepConnecting(accountID) {
		i.dog.Disarm(stale)
	}
	gen := i.overlay.BeginConnecting(accountID)
	i.dog.Arm(accountID, gen)
}

func (i *Issuer) effective(accountID string) (model.ConnectionState, error) {
	if e, ok := i.overlay.Entry(accountID); ok {
		return e.State, nil
	}
	acc, ok := i.reg.Account(accountID)
	if !ok {
		return "", fmt.Errorf("command: %w: %q", ErrUnknownAccount, accountID)
	}
	return acc.Status, nil
}
