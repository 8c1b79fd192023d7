package model

// EventType names a push-channel event.
type EventType string

const (
	EventPairingCode       EventType = "pairing_code_issued"
	EventAuthenticated     EventType = "session_authenticated"
	EventReady             EventType = "session_ready"
	EventDisconnected      EventType = "session_disconnected"
	EventAuthFailed        EventType = "session_auth_failed"
	EventSessionError      EventType = "session_error"
	EventStateHint         EventType = "state_hint"
	EventProgressUpdate    EventType = "progress_update"
	EventCampaignCompleted EventType = "campaign_completed"
)

// PushEvent is one server-pushed event from the backend event channel.
// It is the transport contract between the event stream and the synchronizer.
// Which optional fields are set depends on Type.
type PushEvent struct {
	Type        EventType         `json:"type"`
	AccountID   string            `json:"account_id,omitempty"`
	Code        string            `json:"code,omitempty"`         // pairing_code_issued
	PhoneNumber string            `json:"phone_number,omitempty"` // session_ready
	Reason      string            `json:"reason,omitempty"`       // session_disconnected
	Error       string            `json:"error,omitempty"`        // session_auth_failed, session_error
	RawState    string            `json:"raw_state,omitempty"`    // state_hint
	CampaignID  string            `json:"campaign_id,omitempty"`  // campaign events
	Progress    *CampaignProgress `json:"progress,omitempty"`     // progress_update
	Final       *CampaignProgress `json:"final,omitempty"`        // campaign_completed
}

// SessionEvent reports whether the event is keyed by an account id and feeds
// the lifecycle state machine rather than the campaign tracker.
func (e PushEvent) SessionEvent() bool {
	switch e.Type {
	case EventPairingCode, EventAuthenticated, EventReady,
		EventDisconnected, EventAuthFailed, EventSessionError, EventStateHint:
		return true
	}
	return false
}
