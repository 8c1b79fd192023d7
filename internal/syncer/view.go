package syncer

import (
	"fmt"
	"sort"

	"github.com/sendwren/wren/internal/campaign"
	"github.com/sendwren/wren/internal/journal"
	"github.com/sendwren/wren/internal/model"
	"github.com/sendwren/wren/internal/notify"
	"github.com/sendwren/wren/internal/overlay"
	"github.com/sendwren/wren/internal/registry"
)

// View is the in-process read surface: it merges the registry snapshot with
// the overlay on every read, so effective status is always a pure function of
// (persisted status, overlay entry). It implements model.StatusReader for the
// HTTP API and socket RPC server.
type View struct {
	reg       *registry.Registry
	overlay   *overlay.Store
	notes     *notify.Stream
	campaigns *campaign.Tracker
	jrnl      *journal.Journal // optional
}

// NewView creates the read surface over the synchronizer's stores.
func NewView(reg *registry.Registry, ov *overlay.Store, notes *notify.Stream, campaigns *campaign.Tracker, jrnl *journal.Journal) *View {
	return &View{
		reg:       reg,
		overlay:   ov,
		notes:     notes,
		campaigns: campaigns,
		jrnl:      jrnl,
	}
}

// Accounts returns the merged per-account view: every polled account with
// its effective status, plus accounts the overlay knows about before the
// poll has caught up (a connect attempt for a brand-new account).
func (v *View) Accounts() ([]model.AccountStatus, error) {
	accounts := v.reg.Accounts()
	seen := make(map[string]bool, len(accounts))

	out := make([]model.AccountStatus, 0, len(accounts))
	for _, acc := range accounts {
		seen[acc.ID] = true
		out = append(out, v.overlay.Effective(acc))
	}

	for id, e := range v.overlay.Snapshot() {
		if seen[id] {
			continue
		}
		out = append(out, model.AccountStatus{
			Account:     model.Account{ID: id},
			Effective:   e.State,
			Overlaid:    true,
			PairingCode: e.PairingCode,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Account.ID < out[j].Account.ID })
	return out, nil
}

// AccountStatus returns the merged view for one account.
func (v *View) AccountStatus(accountID string) (model.AccountStatus, error) {
	acc, ok := v.reg.Account(accountID)
	if !ok {
		e, found := v.overlay.Entry(accountID)
		if !found {
			return model.AccountStatus{}, fmt.Errorf("syncer: unknown account %q", accountID)
		}
		return model.AccountStatus{
			Account:     model.Account{ID: accountID},
			Effective:   e.State,
			Overlaid:    true,
			PairingCode: e.PairingCode,
		}, nil
	}
	return v.overlay.Effective(acc), nil
}

// Notifications returns the live toast list in creation order.
func (v *View) Notifications() ([]model.Notification, error) {
	return v.notes.Snapshot(), nil
}

// ActiveCampaign returns the live campaign snapshot, nil when idle.
func (v *View) ActiveCampaign() (*model.CampaignSnapshot, error) {
	return v.campaigns.Active(), nil
}

// CampaignHistory returns cached historical campaigns.
func (v *View) CampaignHistory() ([]model.CampaignSummary, error) {
	return v.campaigns.History(), nil
}

// RecentActivity returns the newest lifecycle transitions.
func (v *View) RecentActivity(limit int) ([]model.Transition, error) {
	if v.jrnl == nil {
		return nil, nil
	}
	return v.jrnl.Recent(limit), nil
}
