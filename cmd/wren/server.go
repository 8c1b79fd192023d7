package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/sendwren/wren/internal/backend"
	"github.com/sendwren/wren/internal/campaign"
	"github.com/sendwren/wren/internal/command"
	"github.com/sendwren/wren/internal/eventstream"
	"github.com/sendwren/wren/internal/httpserver"
	"github.com/sendwren/wren/internal/journal"
	"github.com/sendwren/wren/internal/model"
	"github.com/sendwren/wren/internal/notify"
	"github.com/sendwren/wren/internal/overlay"
	"github.com/sendwren/wren/internal/registry"
	"github.com/sendwren/wren/internal/socketrpc"
	"github.com/sendwren/wren/internal/syncer"
	"golang.org/x/sync/errgroup"
)

// readAPI combines the status view and the command issuer into the surface
// the socket RPC server exposes.
type readAPI struct {
	model.StatusReader
	model.CommandAPI
}

// runServer starts the headless session synchronizer with the HTTP API and
// the socket RPC endpoint for the TUI.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	client := backend.NewClient(cfg.BackendURL, cfg.BackendToken)

	// Open the transition journal for the recent-activity surface.
	var activityJournal *journal.Journal
	if cfg.JournalEnabled {
		var err error
		activityJournal, err = journal.Open(cfg.JournalPath, cfg.JournalRetain)
		if err != nil {
			return fmt.Errorf("failed to open activity journal: %w", err)
		}
		defer activityJournal.Close()
	}

	ov := overlay.NewStore()
	reg := registry.NewRegistry()
	notes := notify.NewStream(model.NotificationTTL)
	defer notes.Close()
	campaigns := campaign.NewTracker(client)

	// Forced refreshes confirm the overlay against fresh poll data; periodic
	// refreshes never drop overlay entries on their own.
	poller := registry.NewPoller(reg, client, cfg.PollInterval, func(accounts []model.Account, invalidated bool) {
		if invalidated {
			ov.Confirm(accounts)
		}
	})

	syn := syncer.New(syncer.Config{
		Overlay:       ov,
		Registry:      reg,
		Poller:        poller,
		Notifications: notes,
		Campaigns:     campaigns,
		Journal:       activityJournal,
	})
	defer syn.Close()

	issuer := command.NewIssuer(client, ov, reg, syn.Watchdog(), notes, poller)
	view := syncer.NewView(reg, ov, notes, campaigns, activityJournal)

	// Seed campaign history so the dashboard is not empty until the first
	// campaign completes.
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if history, err := client.CampaignHistory(seedCtx); err != nil {
		log.Printf("server: initial campaign history fetch failed: %v", err)
	} else {
		campaigns.SetHistory(history)
	}
	seedCancel()

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, view, issuer)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for TUI IPC
	sockServer := socketrpc.NewServer(cfg.SocketPath, readAPI{view, issuer})
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	// A dropped event connection means missed transitions: force a poll as
	// soon as the stream is back.
	stream := eventstream.NewStream(cfg.EventsAddr, eventstream.Config{
		OnReconnect: poller.Invalidate,
	})

	poller.Start()
	defer poller.Stop()

	stream.Start()
	defer stream.Stop()

	printStartupBanner(cfg)

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return syn.Run(gctx, stream.Events())
	})

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	campaigns.Wait()

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "wren")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "wren.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦ ╦╦═╗╔═╗╔╗╔
    ║║║╠╦╝║╣ ║║║
    ╚╩╝╩╚═╚═╝╝╚╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	lines = append(lines, "")

	// Upstream
	lines = append(lines, bold.Render("    Upstream"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Backend        %s", check, cyan.Render(cfg.BackendURL)))
	lines = append(lines, fmt.Sprintf("    %s  Event Stream   %s", check, cyan.Render(cfg.EventsAddr)))
	lines = append(lines, fmt.Sprintf("    %s  Poll Interval  %s", check, dim.Render(cfg.PollInterval.String())))
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")
	if cfg.JournalEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", check, dim.Render(shortenPath(cfg.JournalPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
