package model

import "context"

// StatusReader is the unified read contract for the dashboard surfaces
// (HTTP API, socket RPC, TUI). The in-process view implements it directly;
// the socket RPC client implements it over the wire.
type StatusReader interface {
	Accounts() ([]AccountStatus, error)
	AccountStatus(accountID string) (AccountStatus, error)
	Notifications() ([]Notification, error)
	ActiveCampaign() (*CampaignSnapshot, error)
	CampaignHistory() ([]CampaignSummary, error)
	RecentActivity(limit int) ([]Transition, error)
}

// CommandAPI is the user-intent surface: every method issues at most one
// asynchronous request against the backend after checking preconditions on
// the current effective status. State changes arrive via push events, not
// via these return values, except for the documented optimistic pre-writes.
type CommandAPI interface {
	Connect(ctx context.Context, name string) (accountID string, err error)
	Reconnect(ctx context.Context, accountID string) error
	Disconnect(ctx context.Context, accountID string) error
	Delete(ctx context.Context, accountID string) error
	DismissPairing(accountID string) error
	StartCampaign(ctx context.Context, req CampaignRequest) (campaignID string, err error)
	DismissNotification(id string)
}

// ReadAPI combines the read and command contracts for surfaces that need both.
type ReadAPI interface {
	StatusReader
	CommandAPI
}
