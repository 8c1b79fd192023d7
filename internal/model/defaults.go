package model

import "time"

// Shared defaults used by both the service and TUI binaries.
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultUpdateInterval = 2 * time.Second
	DefaultSkin           = "default"

	// ConnectTimeout is how long an account may sit in connecting before the
	// watchdog forces it back to disconnected.
	ConnectTimeout = 30 * time.Second

	// StateHintGrace is how long an advisory full-connectivity hint waits
	// before defensively promoting a still-authenticated session to ready.
	StateHintGrace = 2 * time.Second

	// NotificationTTL is how long a notification stays visible.
	NotificationTTL = 5 * time.Second
)
