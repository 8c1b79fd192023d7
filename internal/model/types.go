package model

import "time"

// ConnectionState is the lifecycle status of a messaging account session.
type ConnectionState string

const (
	StateDisconnected  ConnectionState = "disconnected"
	StateConnecting    ConnectionState = "connecting"
	StateAuthenticated ConnectionState = "authenticated"
	StateReady         ConnectionState = "ready"
	StateFailed        ConnectionState = "failed"
)

// Terminal reports whether the state ends a pairing attempt. A watchdog timer
// only runs while the state is non-terminal.
func (s ConnectionState) Terminal() bool {
	switch s {
	case StateDisconnected, StateReady, StateFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the five known lifecycle states.
func (s ConnectionState) Valid() bool {
	switch s {
	case StateDisconnected, StateConnecting, StateAuthenticated, StateReady, StateFailed:
		return true
	}
	return false
}

// Account is one messaging account as last reported by the poll endpoint.
// The registry replaces accounts wholesale on every refresh; an Account value
// is never mutated in place.
type Account struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	PhoneNumber  string          `json:"phone_number,omitempty"` // empty until paired
	Status       ConnectionState `json:"status"`                 // persisted status from poll
	LastActivity time.Time       `json:"last_activity"`
}

// AccountStatus is the merged per-account view shown to the user: the polled
// account plus the effective status after applying the local overlay.
type AccountStatus struct {
	Account     Account         `json:"account"`
	Effective   ConnectionState `json:"effective"`
	Overlaid    bool            `json:"overlaid"` // true when the overlay, not the poll, decided Effective
	PairingCode string          `json:"pairing_code,omitempty"`
}

// Severity classifies a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is one ephemeral user-facing message. Notifications expire on
// their own five seconds after creation and are never merged or deduplicated.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// CampaignProgress is the server-reported send counters for one campaign.
// Each progress event replaces the previous counters wholesale.
type CampaignProgress struct {
	Total   int64 `json:"total"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}

// Done returns how many sends have reached a final state.
func (p CampaignProgress) Done() int64 { return p.Sent + p.Failed }

// CampaignSnapshot is the live progress of the active campaign.
type CampaignSnapshot struct {
	CampaignID string           `json:"campaign_id"`
	Progress   CampaignProgress `json:"progress"`
	StartedAt  time.Time        `json:"started_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CampaignSummary is one historical campaign as returned by the backend.
type CampaignSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	AccountID   string           `json:"account_id"`
	Final       CampaignProgress `json:"final"`
	CompletedAt time.Time        `json:"completed_at"`
}

// CampaignRequest describes a send campaign to start.
type CampaignRequest struct {
	Name       string   `json:"name"`
	AccountID  string   `json:"account_id"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

// Transition records one lifecycle state change for the activity journal.
type Transition struct {
	AccountID string          `json:"account_id"`
	From      ConnectionState `json:"from,omitempty"`
	To        ConnectionState `json:"to"`
	Reason    string          `json:"reason,omitempty"`
	At        time.Time       `json:"at"`
}
