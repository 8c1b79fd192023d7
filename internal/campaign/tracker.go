// Package campaign accumulates streamed send-progress events into the live
// campaign snapshot shown on the dashboard.
package campaign

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sendwren/wren/internal/model"
)

// HistorySource provides the one-shot historical campaign refresh performed
// after a campaign completes.
type HistorySource interface {
	CampaignHistory(ctx context.Context) ([]model.CampaignSummary, error)
}

// Tracker tracks the active campaign's progress. The server is the source of
// truth for counts: every progress event replaces the tracked snapshot
// wholesale, so replaying the same payload cannot double-count. There is no
// watchdog here; a campaign with no further updates simply stays at its last
// known snapshot until completion.
type Tracker struct {
	mu      sync.Mutex
	active  *model.CampaignSnapshot
	history []model.CampaignSummary
	source  HistorySource
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewTracker creates a tracker. source may be nil when no history backend is
// available (tests).
func NewTracker(source HistorySource) *Tracker {
	return &Tracker{
		source: source,
		now:    time.Now,
	}
}

// Apply records a progress update for the campaign, replacing any previous
// counters. A progress event for a different campaign id supersedes the
// current snapshot: only one campaign is live at a time.
func (t *Tracker) Apply(campaignID string, p model.CampaignProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.active == nil || t.active.CampaignID != campaignID {
		t.active = &model.CampaignSnapshot{
			CampaignID: campaignID,
			StartedAt:  now,
		}
	}
	t.active.Progress = p
	t.active.UpdatedAt = now
}

// Complete clears the live snapshot for the campaign after a final
// reconciliation pass and kicks off a one-shot refresh of campaign history.
// A completion for a campaign that is not the live one only refreshes history.
func (t *Tracker) Complete(campaignID string, final *model.CampaignProgress) {
	t.mu.Lock()
	if t.active != nil && t.active.CampaignID == campaignID {
		if final != nil {
			// Final reconciliation: the completion payload wins over the last
			// streamed update before the snapshot is cleared.
			t.active.Progress = *final
			t.active.UpdatedAt = t.now()
		}
		t.active = nil
	}
	t.mu.Unlock()

	t.refreshHistory()
}

// Active returns a copy of the live snapshot, or nil when no campaign runs.
func (t *Tracker) Active() *model.CampaignSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return nil
	}
	cp := *t.active
	return &cp
}

// History returns the cached historical campaigns, newest first as delivered
// by the backend.
func (t *Tracker) History() []model.CampaignSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]model.CampaignSummary, len(t.history))
	copy(out, t.history)
	return out
}

// SetHistory replaces the cached history wholesale.
func (t *Tracker) SetHistory(list []model.CampaignSummary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = list
}

// Wait blocks until in-flight history refreshes finish. Used on teardown and
// by tests.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) refreshHistory() {
	if t.source == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		list, err := t.source.CampaignHistory(ctx)
		if err != nil {
			log.Printf("campaign: history refresh failed: %v", err)
			return
		}
		t.SetHistory(list)
	}()
}
