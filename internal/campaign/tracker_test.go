package campaign

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/sendwren/wren/internal/model"
)

type fakeHistory struct {
	calls atomic.Int64
	list  []model.CampaignSummary
	err   error
}

func (f *fakeHistory) CampaignHistory(_ context.Context) ([]model.CampaignSummary, error) {
	f.calls.Add(1)
	return f.list, f.err
}

func TestApplyReplacesSnapshotWholesale(t *testing.T) {
	tr := NewTracker(nil)

	tr.Apply("c1", model.CampaignProgress{Total: 100, Sent: 10, Pending: 90})
	tr.Apply("c1", model.CampaignProgress{Total: 100, Sent: 40, Failed: 2, Pending: 58})

	snap := tr.Active()
	if snap == nil || snap.CampaignID != "c1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Progress.Sent != 40 || snap.Progress.Failed != 2 {
		t.Fatalf("counters not replaced: %+v", snap.Progress)
	}
}

func TestReplaySamePayloadIsIdempotent(t *testing.T) {
	tr := NewTracker(nil)

	p := model.CampaignProgress{Total: 50, Sent: 25, Pending: 25}
	tr.Apply("c1", p)
	tr.Apply("c1", p)

	snap := tr.Active()
	if snap.Progress.Sent != 25 || snap.Progress.Done() != 25 {
		t.Fatalf("replay double-counted: %+v", snap.Progress)
	}
}

func TestNewCampaignSupersedesOldSnapshot(t *testing.T) {
	tr := NewTracker(nil)

	tr.Apply("c1", model.CampaignProgress{Total: 10, Sent: 10})
	tr.Apply("c2", model.CampaignProgress{Total: 5, Sent: 1, Pending: 4})

	snap := tr.Active()
	if snap.CampaignID != "c2" || snap.Progress.Total != 5 {
		t.Fatalf("old campaign leaked into snapshot: %+v", snap)
	}
}

func TestCompleteClearsLiveSnapshotAndRefreshesHistory(t *testing.T) {
	src := &fakeHistory{list: []model.CampaignSummary{{ID: "c1"}}}
	tr := NewTracker(src)

	tr.Apply("c1", model.CampaignProgress{Total: 10, Sent: 9, Pending: 1})
	tr.Complete("c1", &model.CampaignProgress{Total: 10, Sent: 10})
	tr.Wait()

	if tr.Active() != nil {
		t.Fatal("completion did not clear live snapshot")
	}
	if src.calls.Load() != 1 {
		t.Fatalf("expected one history refresh, got %d", src.calls.Load())
	}
	if h := tr.History(); len(h) != 1 || h[0].ID != "c1" {
		t.Fatalf("history not refreshed: %+v", h)
	}
}

func TestCompleteForOtherCampaignKeepsSnapshot(t *testing.T) {
	tr := NewTracker(nil)

	tr.Apply("c2", model.CampaignProgress{Total: 5, Sent: 1, Pending: 4})
	tr.Complete("c1", nil)

	if snap := tr.Active(); snap == nil || snap.CampaignID != "c2" {
		t.Fatalf("unrelated completion cleared snapshot: %+v", snap)
	}
}
