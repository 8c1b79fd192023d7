// Package syncer reconciles the three racing information sources — the
// poll-based account registry, the server-pushed lifecycle events, and
// locally-initiated session commands — into one consistent per-account
// status. It is the only writer of the status overlay besides the command
// issuer's optimistic pre-writes.
package syncer

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sendwren/wren/internal/campaign"
	"github.com/sendwren/wren/internal/journal"
	"github.com/sendwren/wren/internal/model"
	"github.com/sendwren/wren/internal/notify"
	"github.com/sendwren/wren/internal/overlay"
	"github.com/sendwren/wren/internal/registry"
	"github.com/sendwren/wren/internal/watchdog"
)

// Invalidator schedules a poll refresh so the persisted status catches up
// with overlay-confirmed reality.
type Invalidator interface {
	Invalidate()
}

// Config wires the synchronizer's collaborators.
type Config struct {
	Overlay       *overlay.Store
	Registry      *registry.Registry
	Poller        Invalidator
	Notifications *notify.Stream
	Campaigns     *campaign.Tracker
	Journal       *journal.Journal // optional

	// ConnectTimeout overrides the pairing watchdog timeout (tests).
	ConnectTimeout time.Duration
	// HintGrace overrides the state-hint promotion delay (tests).
	HintGrace time.Duration
}

// Syncer consumes the push channel strictly in receipt order and applies the
// lifecycle state machine. Events for different accounts are independent;
// events for the same account are serialized by the single consumer loop.
type Syncer struct {
	overlay   *overlay.Store
	reg       *registry.Registry
	poller    Invalidator
	notes     *notify.Stream
	campaigns *campaign.Tracker
	jrnl      *journal.Journal

	dog  *watchdog.Watchdog // pairing timeout, 30 s
	hint *watchdog.Watchdog // state-hint promotion grace, 2 s

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

// New creates a synchronizer. Close must be called on teardown so no timer
// fires afterwards.
func New(cfg Config) *Syncer {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = model.ConnectTimeout
	}
	hintGrace := cfg.HintGrace
	if hintGrace <= 0 {
		hintGrace = model.StateHintGrace
	}

	s := &Syncer{
		overlay:   cfg.Overlay,
		reg:       cfg.Registry,
		poller:    cfg.Poller,
		notes:     cfg.Notifications,
		campaigns: cfg.Campaigns,
		jrnl:      cfg.Journal,
	}
	s.dog = watchdog.New(connectTimeout, s.onConnectTimeout)
	s.hint = watchdog.New(hintGrace, s.onHintGrace)
	return s
}

// Watchdog exposes the pairing watchdog so the command issuer can arm and
// disarm timers around its optimistic writes.
func (s *Syncer) Watchdog() *watchdog.Watchdog { return s.dog }

// Run consumes events until the channel closes or the context is canceled.
func (s *Syncer) Run(ctx context.Context, events <-chan model.PushEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.HandleEvent(ev)
		}
	}
}

// Close cancels all outstanding timers. Events handled after Close are
// ignored.
func (s *Syncer) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.dog.Close()
		s.hint.Close()
	})
}

// HandleEvent applies one push event. Handlers never block: anything slow
// (the poll refresh, the history fetch) is only scheduled here.
func (s *Syncer) HandleEvent(ev model.PushEvent) {
	if s.isClosed() {
		return
	}

	switch ev.Type {
	case model.EventPairingCode:
		s.handlePairingCode(ev)
	case model.EventAuthenticated:
		s.handleAuthenticated(ev)
	case model.EventReady:
		s.handleReady(ev)
	case model.EventDisconnected:
		s.handleDisconnected(ev)
	case model.EventAuthFailed, model.EventSessionError:
		s.handleFailed(ev)
	case model.EventStateHint:
		s.handleStateHint(ev)
	case model.EventProgressUpdate:
		if ev.Progress != nil {
			s.campaigns.Apply(ev.CampaignID, *ev.Progress)
		}
	case model.EventCampaignCompleted:
		s.campaigns.Complete(ev.CampaignID, ev.Final)
	default:
		log.Printf("syncer: ignoring unknown event type %q", ev.Type)
	}
}

func (s *Syncer) handlePairingCode(ev model.PushEvent) {
	from := s.stateOf(ev.AccountID)
	gen := s.overlay.SetPairingCode(ev.AccountID, ev.Code)
	s.dog.Arm(ev.AccountID, gen)
	s.hint.Disarm(ev.AccountID)
	s.record(ev.AccountID, from, model.StateConnecting, "pairing code issued")
}

func (s *Syncer) handleAuthenticated(ev model.PushEvent) {
	if !s.overlay.Promote(ev.AccountID, model.StateConnecting, model.StateAuthenticated) {
		// No local attempt in the overlay. After a restart mid-handshake the
		// poll can still report connecting with an empty overlay; accept the
		// event on the persisted status so the handshake is not lost.
		acc, ok := s.reg.Account(ev.AccountID)
		if !ok || acc.Status != model.StateConnecting {
			return
		}
		s.overlay.Advance(ev.AccountID, model.StateAuthenticated)
	}
	s.dog.Disarm(ev.AccountID)
	s.notes.Info("Scan accepted — finishing session handshake")
	s.record(ev.AccountID, model.StateConnecting, model.StateAuthenticated, "")
}

func (s *Syncer) handleReady(ev model.PushEvent) {
	from := s.stateOf(ev.AccountID)
	s.overlay.Advance(ev.AccountID, model.StateReady)
	s.dog.Disarm(ev.AccountID)
	s.hint.Disarm(ev.AccountID)

	name := s.accountName(ev.AccountID)
	if ev.PhoneNumber != "" {
		s.notes.Success(name + " connected as " + ev.PhoneNumber)
	} else {
		s.notes.Success(name + " connected")
	}
	s.record(ev.AccountID, from, model.StateReady, "")
	s.poller.Invalidate()
}

func (s *Syncer) handleDisconnected(ev model.PushEvent) {
	from := s.stateOf(ev.AccountID)
	s.overlay.Advance(ev.AccountID, model.StateDisconnected)
	s.dog.Disarm(ev.AccountID)
	s.hint.Disarm(ev.AccountID)

	msg := s.accountName(ev.AccountID) + " disconnected"
	if ev.Reason != "" {
		msg += ": " + ev.Reason
	}
	s.notes.Error(msg)
	s.record(ev.AccountID, from, model.StateDisconnected, ev.Reason)
	s.poller.Invalidate()
}

func (s *Syncer) handleFailed(ev model.PushEvent) {
	from := s.stateOf(ev.AccountID)
	s.overlay.Advance(ev.AccountID, model.StateFailed)
	s.dog.Disarm(ev.AccountID)
	s.hint.Disarm(ev.AccountID)

	msg := s.accountName(ev.AccountID) + " failed"
	if ev.Error != "" {
		msg += ": " + ev.Error
	}
	s.notes.Error(msg)
	s.record(ev.AccountID, from, model.StateFailed, ev.Error)
	s.poller.Invalidate()
}

// handleStateHint handles the advisory raw-state hint: when the transport
// reports full connectivity while the overlay is still authenticated, a
// session_ready was probably missed. After a short grace the account is
// promoted defensively.
func (s *Syncer) handleStateHint(ev model.PushEvent) {
	if !fullConnectivity(ev.RawState) {
		return
	}
	e, ok := s.overlay.Entry(ev.AccountID)
	if !ok || e.State != model.StateAuthenticated {
		return
	}
	s.hint.Arm(ev.AccountID, e.Generation)
}

func (s *Syncer) onConnectTimeout(accountID string, generation uint64) {
	if s.isClosed() {
		return
	}
	if !s.overlay.ForceDisconnect(accountID, generation) {
		// A push event won the race; the timeout is stale.
		return
	}
	s.notes.Error("Connection timeout — please try again")
	s.record(accountID, model.StateConnecting, model.StateDisconnected, "pairing timeout")
}

func (s *Syncer) onHintGrace(accountID string, _ uint64) {
	if s.isClosed() {
		return
	}
	if !s.overlay.Promote(accountID, model.StateAuthenticated, model.StateReady) {
		return
	}
	s.record(accountID, model.StateAuthenticated, model.StateReady, "promoted on state hint")
	s.poller.Invalidate()
}

func (s *Syncer) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// stateOf returns the account's current effective state for journaling.
func (s *Syncer) stateOf(accountID string) model.ConnectionState {
	if e, ok := s.overlay.Entry(accountID); ok {
		return e.State
	}
	if acc, ok := s.reg.Account(accountID); ok {
		return acc.Status
	}
	return ""
}

func (s *Syncer) accountName(accountID string) string {
	if acc, ok := s.reg.Account(accountID); ok && acc.Name != "" {
		return acc.Name
	}
	return "Account " + accountID
}

func (s *Syncer) record(accountID string, from, to model.ConnectionState, reason string) {
	if s.jrnl == nil {
		return
	}
	err := s.jrnl.Append(model.Transition{
		AccountID: accountID,
		From:      from,
		To:        to,
		Reason:    reason,
		At:        time.Now().UTC(),
	})
	if err != nil {
		log.Printf("syncer: journal append: %v", err)
	}
}

func fullConnectivity(raw string) bool {
	switch strings.ToLower(raw) {
	case "open", "connected", "online":
		return true
	}
	return false
}
