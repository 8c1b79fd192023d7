// Package watchdog enforces the pairing timeout: one timer per account in
// connecting, forcing a terminal status when no advancing event arrives.
package watchdog

import (
	"sync"
	"time"
)

// TimeoutFunc is invoked when an account's pairing attempt times out. The
// generation identifies which attempt expired so the receiver can ignore a
// firing that a newer attempt has already superseded.
type TimeoutFunc func(accountID string, generation uint64)

type armed struct {
	generation uint64
	timer      *time.Timer
}

// Watchdog keeps at most one timer per account id, alive only while that
// account is in connecting. Arming an account cancels any prior timer for the
// same id, so a stale firing can never downgrade a fresher attempt.
type Watchdog struct {
	mu        sync.Mutex
	timeout   time.Duration
	onTimeout TimeoutFunc
	timers    map[string]armed
	closed    bool
}

// New creates a watchdog firing onTimeout after timeout of inactivity.
func New(timeout time.Duration, onTimeout TimeoutFunc) *Watchdog {
	return &Watchdog{
		timeout:   timeout,
		onTimeout: onTimeout,
		timers:    make(map[string]armed),
	}
}

// Arm starts (or restarts) the timer for an account's pairing attempt.
func (w *Watchdog) Arm(accountID string, generation uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if prev, ok := w.timers[accountID]; ok {
		prev.timer.Stop()
	}
	t := time.AfterFunc(w.timeout, func() { w.fire(accountID, generation) })
	w.timers[accountID] = armed{generation: generation, timer: t}
}

// Disarm cancels the account's timer, if any. Called on every terminating
// transition (ready, failed, explicit disconnect, dismissal, delete).
func (w *Watchdog) Disarm(accountID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if a, ok := w.timers[accountID]; ok {
		a.timer.Stop()
		delete(w.timers, accountID)
	}
}

// Pending reports whether the account currently has an armed timer.
func (w *Watchdog) Pending(accountID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.timers[accountID]
	return ok
}

// Close cancels all outstanding timers. No timeout callback runs after Close
// returns a quiesced watchdog.
func (w *Watchdog) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	for id, a := range w.timers {
		a.timer.Stop()
		delete(w.timers, id)
	}
}

func (w *Watchdog) fire(accountID string, generation uint64) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	a, ok := w.timers[accountID]
	if !ok || a.generation != generation {
		// A newer attempt re-armed (or a transition disarmed) between the
		// timer expiring and this callback taking the lock.
		w.mu.Unlock()
		return
	}
	delete(w.timers, accountID)
	w.mu.Unlock()

	w.onTimeout(accountID, generation)
}
