package main

import (
	"time"

	"github.com/sendwren/wren/internal/journal"
	"github.com/sendwren/wren/internal/model"
)

const (
	defaultPollInterval  = model.DefaultPollInterval
	defaultBindHost      = "127.0.0.1"
	defaultAPIPort       = 3900
	defaultBackendURL    = "http://127.0.0.1:8080"
	defaultEventsAddr    = "127.0.0.1:4100"
	defaultJournalRetain = journal.DefaultRetain
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	PollInterval   time.Duration `mapstructure:"poll-interval"`
	BackendURL     string        `mapstructure:"backend-url"`
	BackendToken   string        `mapstructure:"backend-token"`
	EventsAddr     string        `mapstructure:"events-addr"`
	APIEnabled     bool          `mapstructure:"api-enabled"`
	APIPort        int           `mapstructure:"api-port"`
	APIAddr        string        `mapstructure:"api-addr"`
	SocketPath     string        `mapstructure:"socket-path"`
	JournalEnabled bool          `mapstructure:"journal-enabled"`
	JournalPath    string        `mapstructure:"journal-path"`
	JournalRetain  int           `mapstructure:"journal-retain"`
	ConfigPath     string        `mapstructure:"-"` // not from config file
}
