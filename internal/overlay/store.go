package overlay

import (
	"sync"
	"time"

	"github.com/sendwren/wren/internal/model"
)

// Entry is the locally-observed lifecycle status for one account. Absence of
// an entry means "defer to the persisted status from the poll".
type Entry struct {
	State       model.ConnectionState
	Generation  uint64 // pairing attempt counter, advanced on each entry into connecting
	PairingCode string // live only while a pairing attempt is in flight
	UpdatedAt   time.Time
}

// Store owns the status overlay: a per-account map of locally-observed
// lifecycle states that takes precedence over the poll snapshot until
// explicitly confirmed. All mutations are per-key merges under one lock so a
// write for one account can never lose a concurrent write for another.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

// NewStore creates an empty overlay store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// BeginConnecting writes a fresh connecting entry for the account and returns
// the new attempt generation. Any previous entry for the account, including a
// stale pairing code, is superseded.
func (s *Store) BeginConnecting(accountID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.entries[accountID].Generation + 1
	s.entries[accountID] = Entry{
		State:      model.StateConnecting,
		Generation: gen,
		UpdatedAt:  s.now(),
	}
	return gen
}

// SetPairingCode records the scannable pairing code for the account's current
// connecting attempt. If the account is not already connecting (the backend
// can open an attempt on its own), a fresh attempt generation is started.
// Returns the generation the code belongs to.
func (s *Store) SetPairingCode(accountID, code string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[accountID]
	if e.State != model.StateConnecting {
		e.Generation++
	}
	e.State = model.StateConnecting
	e.PairingCode = code
	e.UpdatedAt = s.now()
	s.entries[accountID] = e
	return e.Generation
}

// Advance moves the account's overlay state forward from a push event.
// Terminal states clear the pairing artifact; the attempt generation is kept
// so a stale watchdog can still recognise itself.
func (s *Store) Advance(accountID string, state model.ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entries[accountID]
	e.State = state
	if state.Terminal() {
		e.PairingCode = ""
	}
	e.UpdatedAt = s.now()
	s.entries[accountID] = e
}

// Promote advances the account from one specific state to another and reports
// whether it did. Used for the deferred authenticated-to-ready promotion: if
// the account has meanwhile moved anywhere else, the promotion is a no-op.
func (s *Store) Promote(accountID string, from, to model.ConnectionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[accountID]
	if !ok || e.State != from {
		return false
	}
	e.State = to
	if to.Terminal() {
		e.PairingCode = ""
	}
	e.UpdatedAt = s.now()
	s.entries[accountID] = e
	return true
}

// ForceDisconnect is the watchdog write path: it forces the account to
// disconnected only if the entry still belongs to the given attempt
// generation and is still connecting. A stale timer firing after a newer
// attempt started, or after the attempt already terminated, is a no-op.
// Unlike push-event terminations, the pairing code stays in place so the
// dashboard keeps showing it next to the timeout notice until the user
// dismisses it.
func (s *Store) ForceDisconnect(accountID string, generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[accountID]
	if !ok || e.Generation != generation || e.State != model.StateConnecting {
		return false
	}
	e.State = model.StateDisconnected
	e.UpdatedAt = s.now()
	s.entries[accountID] = e
	return true
}

// ClearPairing drops the pairing artifact and, when the attempt was still
// connecting, the whole entry, so the account falls back to its persisted
// status. Used when the user dismisses the pairing code.
func (s *Store) ClearPairing(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[accountID]
	if !ok {
		return
	}
	if e.State == model.StateConnecting {
		delete(s.entries, accountID)
		return
	}
	e.PairingCode = ""
	s.entries[accountID] = e
}

// Remove deletes the account's overlay entry entirely.
func (s *Store) Remove(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, accountID)
}

// SweepConnecting drops connecting entries left behind by abandoned attempts,
// keeping the one for exceptID. Returns the ids that were dropped.
func (s *Store) SweepConnecting(exceptID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []string
	for id, e := range s.entries {
		if id == exceptID || e.State != model.StateConnecting {
			continue
		}
		delete(s.entries, id)
		dropped = append(dropped, id)
	}
	return dropped
}

// Confirm drops overlay entries that a fresh poll snapshot agrees with.
// Only terminal states are confirmable: a poll result must never displace an
// in-flight connecting or authenticated overlay.
func (s *Store) Confirm(accounts []model.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range accounts {
		e, ok := s.entries[acc.ID]
		if !ok || !e.State.Terminal() {
			continue
		}
		if e.State == acc.Status {
			delete(s.entries, acc.ID)
		}
	}
}

// Entry returns the overlay entry for the account, if present.
func (s *Store) Entry(accountID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[accountID]
	return e, ok
}

// Effective merges one polled account with its overlay entry. The overlay
// wins whenever an entry is present.
func (s *Store) Effective(acc model.Account) model.AccountStatus {
	s.mu.Lock()
	e, ok := s.entries[acc.ID]
	s.mu.Unlock()

	st := model.AccountStatus{Account: acc, Effective: acc.Status}
	if ok {
		st.Effective = e.State
		st.Overlaid = true
		st.PairingCode = e.PairingCode
	}
	return st
}

// Snapshot returns a copy of all overlay entries keyed by account id.
func (s *Store) Snapshot() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Entry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}
