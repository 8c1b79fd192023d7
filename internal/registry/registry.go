// Package registry holds the poll-backed account list: the authoritative
// snapshot of accounts as last known from the backend, replaced wholesale on
// every refresh and never mutated in place.
package registry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sendwren/wren/internal/model"
)

// Source is the poll endpoint contract.
type Source interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// Registry is the account snapshot store. Readers always see a consistent
// snapshot: the slice is replaced, never appended to or edited, so a stale
// reference held by a renderer stays internally consistent.
type Registry struct {
	mu       sync.RWMutex
	accounts []model.Account
	byID     map[string]model.Account
	polledAt time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]model.Account)}
}

// ReplaceAll installs a fresh snapshot.
func (r *Registry) ReplaceAll(accounts []model.Account) {
	byID := make(map[string]model.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	r.mu.Lock()
	r.accounts = accounts
	r.byID = byID
	r.polledAt = time.Now()
	r.mu.Unlock()
}

// Remove drops one account by building a filtered snapshot. Used when a
// delete command succeeds before the next poll catches up.
func (r *Registry) Remove(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filtered := make([]model.Account, 0, len(r.accounts))
	byID := make(map[string]model.Account, len(r.accounts))
	for _, a := range r.accounts {
		if a.ID == accountID {
			continue
		}
		filtered = append(filtered, a)
		byID[a.ID] = a
	}
	r.accounts = filtered
	r.byID = byID
}

// Accounts returns the current snapshot.
func (r *Registry) Accounts() []model.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts
}

// Account looks up one account by id.
func (r *Registry) Account(accountID string) (model.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[accountID]
	return a, ok
}

// PolledAt returns when the snapshot was last replaced.
func (r *Registry) PolledAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.polledAt
}

// RefreshFunc observes a completed poll refresh. invalidated is true when the
// refresh was forced through Invalidate rather than the periodic timer; only
// then may the caller re-trust the poll snapshot over its overlay.
type RefreshFunc func(accounts []model.Account, invalidated bool)

// Poller refreshes the registry on a fixed interval and on explicit
// invalidation. Invalidation points are the lifecycle transitions that make
// the persisted status catch up with overlay-confirmed reality.
type Poller struct {
	reg        *Registry
	source     Source
	interval   time.Duration
	onRefresh  RefreshFunc
	invalidate chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewPoller creates a poller. onRefresh may be nil.
func NewPoller(reg *Registry, source Source, interval time.Duration, onRefresh RefreshFunc) *Poller {
	if interval <= 0 {
		interval = model.DefaultPollInterval
	}
	return &Poller{
		reg:        reg,
		source:     source,
		interval:   interval,
		onRefresh:  onRefresh,
		invalidate: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Start performs an initial refresh and begins the poll loop.
func (p *Poller) Start() {
	p.refresh(false)

	p.wg.Add(1)
	go p.loop()
}

// Invalidate schedules an immediate refresh. Coalesces when one is already
// pending.
func (p *Poller) Invalidate() {
	select {
	case p.invalidate <- struct{}{}:
	default:
	}
}

// Stop halts the poll loop and waits for it to finish.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.refresh(false)
		case <-p.invalidate:
			p.refresh(true)
		case <-p.done:
			return
		}
	}
}

func (p *Poller) refresh(invalidated bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	accounts, err := p.source.ListAccounts(ctx)
	if err != nil {
		// Keep the previous snapshot; the next tick or invalidation retries.
		log.Printf("registry: poll failed: %v", err)
		return
	}
	p.reg.ReplaceAll(accounts)
	if p.onRefresh != nil {
		p.onRefresh(accounts, invalidated)
	}
}
